package presentation

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/rolodex/internal/contacts/domain"
)

func sampleContacts() []domain.Contact {
	return []domain.Contact{
		{ID: 3, Fields: domain.Fields{FirstName: "Monserrat", LastName: "Vera", Phone: "555", Email: "m@algo.com"}},
		{ID: 2, Fields: domain.Fields{FirstName: "Karen", LastName: "Vera", Phone: "556", Email: "k@algo.com",
			Account: domain.MustParseAccount("0x9999999999999999999999999999999999999999")}},
	}
}

func TestFormatter_FormatContact(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf).FormatContact(sampleContacts()[1]))

	var p domain.ContactPayload
	require.NoError(t, json.Unmarshal(buf.Bytes(), &p))
	require.Equal(t, domain.ID(2), p.ID)
	require.Equal(t, "556", p.TelephoneNumber)
	require.Contains(t, buf.String(), "\n  \"firstName\"", "output is indented")
}

func TestFormatter_FormatDeletion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf).FormatDeletion(domain.Deletion{ID: 1, ReplacedByID: 3}))
	require.JSONEq(t, `{"id":1,"replacedByID":3}`, buf.String())
}

func TestFormatter_FormatContacts_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf).FormatContacts(sampleContacts()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, []string{
		"3\tMonserrat\tVera\t555\tm@algo.com\t0x0000000000000000000000000000000000000000",
		"2\tKaren\tVera\t556\tk@algo.com\t0x9999999999999999999999999999999999999999",
	}, lines)
}

func TestFormatter_FormatContacts_QuotesSeparators(t *testing.T) {
	contacts := []domain.Contact{
		{ID: 1, Fields: domain.Fields{FirstName: "Rafa\tel", LastName: "Ve\nra", Email: `"quoted"@algo.com`}},
	}
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf).FormatContacts(contacts))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 1, "one contact stays on one line")
	cols := strings.Split(lines[0], "\t")
	require.Len(t, cols, 6, "embedded tabs do not add columns")
	require.Equal(t, `"Rafa\tel"`, cols[1])
	require.Equal(t, `"Ve\nra"`, cols[2])
	require.Equal(t, "", cols[3])
	require.Equal(t, `"\"quoted\"@algo.com"`, cols[4])
}

func TestFormatter_FormatContacts_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf).FormatContacts(nil))
	require.Empty(t, buf.String())
}

func TestTable(t *testing.T) {
	out := Table(sampleContacts())

	require.Contains(t, out, "ACCOUNT")
	require.Contains(t, out, "Monserrat")
	require.Less(t, strings.Index(out, "Monserrat"), strings.Index(out, "Karen"), "rows keep slot order")
}
