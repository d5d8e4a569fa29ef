// Package testutil provides fixtures for tests that need a populated registry.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/rolodex/internal/contacts/domain"
	"github.com/zjrosen/rolodex/internal/contacts/registry"
)

// Builder accumulates contacts and adds them to a registry in order.
type Builder struct {
	t        *testing.T
	contacts []domain.Fields
}

// NewBuilder creates an empty builder.
func NewBuilder(t *testing.T) *Builder {
	t.Helper()
	return &Builder{t: t}
}

// WithContact adds a contact with optional configuration.
func (b *Builder) WithContact(first string, opts ...ContactOption) *Builder {
	fields := defaultFields(first)
	for _, opt := range opts {
		opt(&fields)
	}
	b.contacts = append(b.contacts, fields)
	return b
}

// Fields returns the accumulated contact fields in insertion order.
func (b *Builder) Fields() []domain.Fields {
	return append([]domain.Fields(nil), b.contacts...)
}

// Build adds every accumulated contact to r and returns them with their ids.
func (b *Builder) Build(r *registry.Registry) []domain.Contact {
	b.t.Helper()
	out := make([]domain.Contact, 0, len(b.contacts))
	for _, fields := range b.contacts {
		c, err := r.Add(fields)
		require.NoError(b.t, err)
		out = append(out, c)
	}
	return out
}
