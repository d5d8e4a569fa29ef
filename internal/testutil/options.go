package testutil

import "github.com/zjrosen/rolodex/internal/contacts/domain"

// TestAccount is the account given to fixture contacts unless overridden.
const TestAccount = "0x9999999999999999999999999999999999999999"

// ContactOption configures a fixture contact.
type ContactOption func(*domain.Fields)

func defaultFields(first string) domain.Fields {
	return domain.Fields{
		FirstName: first,
		LastName:  "Vera",
		Phone:     "1234567890",
		Email:     first + "@algo.com",
		Account:   domain.MustParseAccount(TestAccount),
	}
}

// LastName sets the last name.
func LastName(s string) ContactOption {
	return func(f *domain.Fields) { f.LastName = s }
}

// Phone sets the telephone number.
func Phone(s string) ContactOption {
	return func(f *domain.Fields) { f.Phone = s }
}

// Email sets the email address.
func Email(s string) ContactOption {
	return func(f *domain.Fields) { f.Email = s }
}

// Account sets the account from its hex form. It panics on malformed input.
func Account(hex string) ContactOption {
	return func(f *domain.Fields) { f.Account = domain.MustParseAccount(hex) }
}

// ZeroAccount clears the account.
func ZeroAccount() ContactOption {
	return func(f *domain.Fields) { f.Account = domain.ZeroAccount }
}
