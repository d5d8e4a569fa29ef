package testutil

// WithStandardContacts adds the four contacts most registry tests start from.
// Built into an empty registry they receive ids 1 to 4 in this order.
func (b *Builder) WithStandardContacts() *Builder {
	return b.
		WithContact("Rafael").
		WithContact("Karen", LastName("Lopez"), Phone("5551234567")).
		WithContact("Monserrat", Email("monse@algo.com")).
		WithContact("Marcelo", Account("0x00000000000000000000000000000000000000ff"))
}
