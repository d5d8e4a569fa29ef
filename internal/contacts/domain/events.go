package domain

import "encoding/json"

// EventType names a registry mutation.
type EventType string

const (
	// EventCreated is emitted by Add.
	EventCreated EventType = "created"
	// EventUpdated is emitted by Update with the new field values.
	EventUpdated EventType = "updated"
	// EventDeleted is emitted by Delete.
	EventDeleted EventType = "deleted"
)

// ContactPayload is the wire shape of Created and Updated events.
type ContactPayload struct {
	ID              ID      `json:"id"`
	FirstName       string  `json:"firstName"`
	LastName        string  `json:"lastName"`
	TelephoneNumber string  `json:"telephoneNumber"`
	Email           string  `json:"email"`
	Account         Account `json:"account"`
}

// NewContactPayload flattens a contact into its event payload.
func NewContactPayload(c Contact) ContactPayload {
	return ContactPayload{
		ID:              c.ID,
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		TelephoneNumber: c.Phone,
		Email:           c.Email,
		Account:         c.Account,
	}
}

// Deletion is the result of Delete and the wire shape of Deleted events.
// ReplacedByID is the id of the record moved into the freed slot, or NoID
// when the deleted record was the last occupied one.
type Deletion struct {
	ID           ID `json:"id"`
	ReplacedByID ID `json:"replacedByID"`
}

// Replaced reports whether another record moved into the freed slot.
func (d Deletion) Replaced() bool {
	return d.ReplacedByID != NoID
}

// Event is a notification produced synchronously by a registry mutation.
// Seq is the commit order within one registry, starting at 1.
// Contact is set for created and updated events, Deletion for deleted ones.
type Event struct {
	Type     EventType
	Seq      uint64
	Contact  ContactPayload
	Deletion Deletion
}

// Payload returns the type-specific payload of the event.
func (e Event) Payload() any {
	if e.Type == EventDeleted {
		return e.Deletion
	}
	return e.Contact
}

// MarshalJSON renders {"type", "seq", "data"} with data in the payload shape for the type.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type EventType `json:"type"`
		Seq  uint64    `json:"seq"`
		Data any       `json:"data"`
	}{e.Type, e.Seq, e.Payload()})
}
