package sqlite

import (
	"time"

	"github.com/zjrosen/rolodex/internal/contacts/domain"
)

// ContactModel represents the database row for the contacts table.
type ContactModel struct {
	ID              int64
	Slot            int
	FirstName       string
	LastName        string
	TelephoneNumber string
	Email           string
	Account         string // 0x-prefixed hex
	CreatedAt       int64  // Unix timestamp
	UpdatedAt       int64  // Unix timestamp
}

// toContactModel converts a domain Contact at slot to a row.
func toContactModel(c domain.Contact, slot int, now time.Time) *ContactModel {
	return &ContactModel{
		ID:              int64(c.ID),
		Slot:            slot,
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		TelephoneNumber: c.Phone,
		Email:           c.Email,
		Account:         c.Account.String(),
		CreatedAt:       now.Unix(),
		UpdatedAt:       now.Unix(),
	}
}

// toDomain converts a row to a domain Contact.
func (m *ContactModel) toDomain() (domain.Contact, error) {
	account, err := domain.ParseAccount(m.Account)
	if err != nil {
		return domain.Contact{}, err
	}
	return domain.Contact{
		ID: domain.ID(m.ID),
		Fields: domain.Fields{
			FirstName: m.FirstName,
			LastName:  m.LastName,
			Phone:     m.TelephoneNumber,
			Email:     m.Email,
			Account:   account,
		},
	}, nil
}
