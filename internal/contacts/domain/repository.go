package domain

// Snapshot is the persisted registry state.
// Contacts are ordered by slot: Contacts[i] occupies slot i.
type Snapshot struct {
	Contacts []Contact
	NextID   ID
}

// ContactStore defines the persistence port used by the registry.
// The registry calls it before touching memory, so a returned error means the
// operation had no effect. Implementations may use SQLite or other backends.
type ContactStore interface {
	// Load returns the full registry state.
	// An empty store returns an empty snapshot with NextID 1.
	Load() (*Snapshot, error)

	// Insert stores contact at slot and records nextID as the next id to issue.
	Insert(slot int, contact Contact, nextID ID) error

	// Update replaces the fields of the contact at slot.
	Update(slot int, contact Contact) error

	// Remove deletes the contact with the given id from slot.
	// If moved is non-nil, that record (previously the last occupied slot)
	// now occupies slot. Both changes must apply atomically.
	Remove(id ID, slot int, moved *Contact) error

	// Close releases any resources held by the store.
	Close() error
}
