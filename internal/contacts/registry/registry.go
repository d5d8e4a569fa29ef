// Package registry implements the contact registry: an ordered slot array of
// contacts, an id->slot index and a never-reused id counter.
//
// Occupied slots are always exactly [0, Len()). Delete keeps them contiguous by
// moving the last occupied record into the freed slot (swap-and-shrink), so
// every mutation is O(1). Mutations are serialized by a write lock; reads share
// a read lock and never observe a half-applied swap.
package registry

import (
	"fmt"
	"sync"

	"github.com/zjrosen/rolodex/internal/contacts/domain"
	"github.com/zjrosen/rolodex/internal/log"
)

// Observer receives registry events synchronously, in commit order, while the
// registry's write lock is held. Observers must not call Add, Update, Delete
// or Reload on the same registry.
type Observer func(domain.Event)

// Option configures a Registry.
type Option func(*Registry)

// WithObserver registers an observer. Observers run in registration order.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// WithStore makes the registry write through to store before every mutation.
func WithStore(store domain.ContactStore) Option {
	return func(r *Registry) {
		r.store = store
	}
}

// Registry is the contact registry. The zero value is not usable; use New or Open.
type Registry struct {
	mu sync.RWMutex

	// slots[0:count] are occupied. slots[count:] are cleared and reused by Add.
	slots  []domain.Contact
	count  int
	nextID domain.ID
	index  map[domain.ID]int

	seq       uint64
	store     domain.ContactStore
	observers []Observer
}

// New creates an empty registry whose first issued id is 1.
// If a store is configured it is assumed to be empty; use Open to resume from it.
func New(opts ...Option) *Registry {
	r := &Registry{
		nextID: 1,
		index:  make(map[domain.ID]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open creates a registry backed by store and restores its persisted state.
func Open(store domain.ContactStore, opts ...Option) (*Registry, error) {
	r := New(append(opts, WithStore(store))...)
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the in-memory state with the store's snapshot.
// It is a no-op for registries without a store. No events are emitted.
func (r *Registry) Reload() error {
	if r.store == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("loading registry snapshot: %w", err)
	}
	if err := r.restore(snap); err != nil {
		return err
	}
	log.Debug(log.CatRegistry, "Registry restored", "count", r.count, "nextID", r.nextID)
	return nil
}

// restore validates snap and installs it. Caller holds the write lock.
func (r *Registry) restore(snap *domain.Snapshot) error {
	if snap.NextID < 1 {
		return fmt.Errorf("%w: next id %d", domain.ErrCorruptSnapshot, snap.NextID)
	}
	index := make(map[domain.ID]int, len(snap.Contacts))
	for pos, c := range snap.Contacts {
		if !c.Exists() {
			return fmt.Errorf("%w: empty slot %d", domain.ErrCorruptSnapshot, pos)
		}
		if c.ID >= snap.NextID {
			return fmt.Errorf("%w: id %d not below next id %d", domain.ErrCorruptSnapshot, c.ID, snap.NextID)
		}
		if _, dup := index[c.ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", domain.ErrCorruptSnapshot, c.ID)
		}
		index[c.ID] = pos
	}

	r.slots = append([]domain.Contact(nil), snap.Contacts...)
	r.count = len(r.slots)
	r.nextID = snap.NextID
	r.index = index
	return nil
}

// Add appends a new contact with the next id and returns it.
// The only failure is a store error, in which case nothing changes.
func (r *Registry) Add(fields domain.Fields) (domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := domain.Contact{ID: r.nextID, Fields: fields}
	pos := r.count

	if r.store != nil {
		if err := r.store.Insert(pos, c, r.nextID+1); err != nil {
			return domain.Contact{}, fmt.Errorf("storing contact %d: %w", c.ID, err)
		}
	}

	if pos < len(r.slots) {
		r.slots[pos] = c
	} else {
		r.slots = append(r.slots, c)
	}
	r.index[c.ID] = pos
	r.count++
	r.nextID++

	log.Debug(log.CatRegistry, "Contact added", "id", c.ID, "slot", pos)
	r.emit(domain.Event{Type: domain.EventCreated, Contact: domain.NewContactPayload(c)})
	return c, nil
}

// Update replaces every field of the contact with the given id.
// The id and slot position are unchanged.
func (r *Registry) Update(id domain.ID, fields domain.Fields) (domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[id]
	if !ok {
		return domain.Contact{}, &domain.ContactNotFoundError{ID: id}
	}

	c := domain.Contact{ID: id, Fields: fields}
	if r.store != nil {
		if err := r.store.Update(pos, c); err != nil {
			return domain.Contact{}, fmt.Errorf("storing contact %d: %w", id, err)
		}
	}
	r.slots[pos] = c

	log.Debug(log.CatRegistry, "Contact updated", "id", id, "slot", pos)
	r.emit(domain.Event{Type: domain.EventUpdated, Contact: domain.NewContactPayload(c)})
	return c, nil
}

// Delete removes the contact with the given id and retires the id.
// If the contact was not in the last occupied slot, the last record moves into
// its slot and is reported as ReplacedByID.
func (r *Registry) Delete(id domain.ID) (domain.Deletion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[id]
	if !ok {
		return domain.Deletion{}, &domain.ContactNotFoundError{ID: id}
	}

	last := r.count - 1
	var moved *domain.Contact
	if pos != last {
		m := r.slots[last]
		moved = &m
	}

	if r.store != nil {
		if err := r.store.Remove(id, pos, moved); err != nil {
			return domain.Deletion{}, fmt.Errorf("removing contact %d: %w", id, err)
		}
	}

	result := domain.Deletion{ID: id}
	if moved != nil {
		r.slots[pos] = *moved
		r.index[moved.ID] = pos
		result.ReplacedByID = moved.ID
	}
	r.slots[last] = domain.Contact{}
	delete(r.index, id)
	r.count--

	log.Debug(log.CatRegistry, "Contact deleted", "id", id, "slot", pos, "replacedBy", result.ReplacedByID)
	r.emit(domain.Event{Type: domain.EventDeleted, Deletion: result})
	return result, nil
}

// Get returns the contact with the given id.
func (r *Registry) Get(id domain.ID) (domain.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.index[id]
	if !ok {
		return domain.Contact{}, &domain.ContactNotFoundError{ID: id}
	}
	return r.slots[pos], nil
}

// List returns a copy of the occupied slots in slot order.
func (r *Registry) List() []domain.Contact {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Contact, r.count)
	copy(out, r.slots[:r.count])
	return out
}

// Len returns the number of occupied slots.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// NextID returns the id the next Add will issue.
func (r *Registry) NextID() domain.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextID
}

// Slot returns the slot position of the contact with the given id.
func (r *Registry) Slot(id domain.ID) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.index[id]
	return pos, ok
}

// emit stamps the event with the next sequence number and notifies observers.
// Caller holds the write lock.
func (r *Registry) emit(ev domain.Event) {
	r.seq++
	ev.Seq = r.seq
	for _, o := range r.observers {
		o(ev)
	}
}
