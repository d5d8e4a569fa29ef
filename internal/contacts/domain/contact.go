// Package domain provides the pure domain layer for contacts with no infrastructure dependencies.
//
// It defines the Contact record, the opaque Account identifier, the events a
// registry emits, the NotFound error and the ContactStore persistence port.
// Nothing in this package knows about databases, HTTP or files.
package domain

import "strconv"

// ID identifies a contact. IDs are issued by the registry starting at 1 and
// are never reused; the zero ID means "no contact".
type ID uint64

// NoID is the zero ID. It never refers to a contact.
const NoID ID = 0

// String returns the decimal form of the id.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses a decimal contact id.
// Zero is accepted here; the registry reports it as not found.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return NoID, err
	}
	return ID(n), nil
}

// Fields holds the mutable part of a contact. Add and Update always take a
// complete Fields value; there is no partial update.
type Fields struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Account   Account
}

// Contact is a registry record.
// A Contact with ID == NoID marks an empty slot.
type Contact struct {
	ID ID
	Fields
}

// Exists reports whether c holds a live record.
func (c Contact) Exists() bool {
	return c.ID != NoID
}
