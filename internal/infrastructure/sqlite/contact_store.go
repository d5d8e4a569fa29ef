package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/zjrosen/rolodex/internal/contacts/domain"
	"github.com/zjrosen/rolodex/internal/log"
)

// contactColumns is the list of columns to select for contact queries.
const contactColumns = `id, slot, first_name, last_name, telephone_number, email, account, created_at, updated_at`

// errSlotMismatch is returned when a write names a slot the row does not occupy.
var errSlotMismatch = fmt.Errorf("%w: contact does not occupy slot", domain.ErrStoreConflict)

// contactStore implements domain.ContactStore using SQLite.
type contactStore struct {
	db  *sql.DB
	now func() time.Time
}

// newContactStore creates a new contactStore instance.
func newContactStore(db *sql.DB) *contactStore {
	return &contactStore{db: db, now: time.Now}
}

// Ensure contactStore implements domain.ContactStore.
var _ domain.ContactStore = (*contactStore)(nil)

// scanContact scans a row into a ContactModel.
func scanContact(scanner interface{ Scan(...any) error }) (*ContactModel, error) {
	var model ContactModel
	err := scanner.Scan(
		&model.ID, &model.Slot, &model.FirstName, &model.LastName,
		&model.TelephoneNumber, &model.Email, &model.Account,
		&model.CreatedAt, &model.UpdatedAt,
	)
	return &model, err
}

// Load returns the persisted registry state, contacts ordered by slot.
func (s *contactStore) Load() (*domain.Snapshot, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var nextID int64
	if err := tx.QueryRow(`SELECT next_id FROM registry_state WHERE singleton = 1`).Scan(&nextID); err != nil {
		return nil, fmt.Errorf("failed to read registry state: %w", err)
	}

	rows, err := tx.Query(`SELECT ` + contactColumns + ` FROM contacts ORDER BY slot`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snap := &domain.Snapshot{NextID: domain.ID(nextID)}
	for rows.Next() {
		model, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		if model.Slot != len(snap.Contacts) {
			return nil, fmt.Errorf("%w: contact %d at slot %d, expected slot %d",
				domain.ErrCorruptSnapshot, model.ID, model.Slot, len(snap.Contacts))
		}
		c, err := model.toDomain()
		if err != nil {
			return nil, fmt.Errorf("%w: contact %d: %v", domain.ErrCorruptSnapshot, model.ID, err)
		}
		snap.Contacts = append(snap.Contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}

	log.Debug(log.CatDB, "Loaded contacts", "count", len(snap.Contacts), "nextID", snap.NextID)
	return snap, nil
}

// Insert stores contact at slot and advances the persisted id counter.
func (s *contactStore) Insert(slot int, contact domain.Contact, nextID domain.ID) error {
	model := toContactModel(contact, slot, s.now())

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO contacts (`+contactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		model.ID, model.Slot, model.FirstName, model.LastName,
		model.TelephoneNumber, model.Email, model.Account,
		model.CreatedAt, model.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}

	if _, err := tx.Exec(`UPDATE registry_state SET next_id = ? WHERE singleton = 1`, int64(nextID)); err != nil {
		return fmt.Errorf("failed to update registry state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert: %w", err)
	}
	return nil
}

// Update replaces the fields of the contact at slot.
func (s *contactStore) Update(slot int, contact domain.Contact) error {
	model := toContactModel(contact, slot, s.now())

	result, err := s.db.Exec(
		`UPDATE contacts SET
			first_name = ?, last_name = ?, telephone_number = ?, email = ?, account = ?, updated_at = ?
		WHERE id = ? AND slot = ?`,
		model.FirstName, model.LastName, model.TelephoneNumber, model.Email, model.Account, model.UpdatedAt,
		model.ID, model.Slot,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	return requireOneRow(result, contact.ID, slot)
}

// Remove deletes the contact at slot and moves the former last record into it.
func (s *contactStore) Remove(id domain.ID, slot int, moved *domain.Contact) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := checkLastSlot(tx, id, slot, moved); err != nil {
		return err
	}

	result, err := tx.Exec(`DELETE FROM contacts WHERE id = ? AND slot = ?`, int64(id), slot)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	if err := requireOneRow(result, id, slot); err != nil {
		return err
	}

	if moved != nil {
		result, err := tx.Exec(
			`UPDATE contacts SET slot = ?, updated_at = ? WHERE id = ?`,
			slot, s.now().Unix(), int64(moved.ID),
		)
		if err != nil {
			return fmt.Errorf("failed to move contact %d: %w", moved.ID, err)
		}
		if err := requireOneRow(result, moved.ID, slot); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit remove: %w", err)
	}
	return nil
}

// checkLastSlot verifies that the rows on disk are dense and that the record
// being moved (or, without a move, the one being removed) holds the highest slot.
func checkLastSlot(tx *sql.Tx, id domain.ID, slot int, moved *domain.Contact) error {
	var count int
	var maxSlot sql.NullInt64
	if err := tx.QueryRow(`SELECT COUNT(*), MAX(slot) FROM contacts`).Scan(&count, &maxSlot); err != nil {
		return fmt.Errorf("failed to read slot bounds: %w", err)
	}
	if !maxSlot.Valid || int(maxSlot.Int64) != count-1 {
		return fmt.Errorf("%w: %d contacts, highest slot %d", domain.ErrStoreConflict, count, maxSlot.Int64)
	}
	last := count - 1

	if moved == nil {
		if slot != last {
			return fmt.Errorf("%w: removing contact %d at slot %d, last slot is %d",
				domain.ErrStoreConflict, id, slot, last)
		}
		return nil
	}

	var lastID int64
	if err := tx.QueryRow(`SELECT id FROM contacts WHERE slot = ?`, last).Scan(&lastID); err != nil {
		return fmt.Errorf("failed to read last contact: %w", err)
	}
	if domain.ID(lastID) != moved.ID {
		return fmt.Errorf("%w: expected contact %d in last slot %d, found %d",
			domain.ErrStoreConflict, moved.ID, last, lastID)
	}
	return nil
}

// Close closes the underlying connection.
func (s *contactStore) Close() error {
	return s.db.Close()
}

func requireOneRow(result sql.Result, id domain.ID, slot int) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: id %d, slot %d", errSlotMismatch, id, slot)
	}
	return nil
}
