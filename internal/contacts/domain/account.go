package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AccountLength is the size of an account identifier in bytes.
const AccountLength = 20

// Account is an opaque fixed-length identifier associated with a contact,
// written as 0x followed by 40 hex digits. The registry stores it as-is and
// never validates or authorizes against it.
type Account [AccountLength]byte

// ZeroAccount is the all-zero account. It is a valid value.
var ZeroAccount Account

// ParseAccount parses the 0x-prefixed hex form of an account.
// The prefix is optional and hex digits are case insensitive.
func ParseAccount(s string) (Account, error) {
	var a Account
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != AccountLength*2 {
		return a, fmt.Errorf("account %q: want %d hex digits, got %d", s, AccountLength*2, len(raw))
	}
	if _, err := hex.Decode(a[:], []byte(raw)); err != nil {
		return a, fmt.Errorf("account %q: %w", s, err)
	}
	return a, nil
}

// MustParseAccount is like ParseAccount but panics on error.
// Intended for constants and tests.
func MustParseAccount(s string) Account {
	a, err := ParseAccount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the lowercase 0x-prefixed hex form.
func (a Account) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether a is the zero account.
func (a Account) IsZero() bool {
	return a == ZeroAccount
}

// MarshalText implements encoding.TextMarshaler.
func (a Account) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Account) UnmarshalText(text []byte) error {
	parsed, err := ParseAccount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
