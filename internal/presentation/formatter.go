// Package presentation renders contacts for the command line.
package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/zjrosen/rolodex/internal/contacts/domain"
)

var (
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#BBBBBB", Dark: "#696969"})
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#54A0FF")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Formatter handles output formatting
type Formatter struct {
	writer   io.Writer
	terminal bool
}

// NewFormatter creates a new formatter. Lists are drawn as a table when writer
// is a terminal.
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer:   writer,
		terminal: isTerminal(writer),
	}
}

// FormatContact formats a single contact as indented JSON.
func (f *Formatter) FormatContact(c domain.Contact) error {
	return f.encode(domain.NewContactPayload(c))
}

// FormatDeletion formats a delete result as indented JSON.
func (f *Formatter) FormatDeletion(d domain.Deletion) error {
	return f.encode(d)
}

// FormatContacts formats contacts in slot order: a table on a terminal,
// otherwise one tab-separated line per contact. In the plain form a field
// containing a tab, a line break or a leading double quote is written as a
// Go-quoted string.
func (f *Formatter) FormatContacts(contacts []domain.Contact) error {
	if f.terminal {
		_, err := fmt.Fprintln(f.writer, Table(contacts))
		return err
	}
	for _, c := range contacts {
		fields := row(c)
		for i, v := range fields {
			fields[i] = plainField(v)
		}
		if _, err := fmt.Fprintln(f.writer, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}
	return nil
}

// Table renders contacts as a bordered table.
func Table(contacts []domain.Contact) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(r, _ int) lipgloss.Style {
			if r == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("ID", "FIRST", "LAST", "PHONE", "EMAIL", "ACCOUNT")
	for _, c := range contacts {
		t.Row(row(c)...)
	}
	return t.Render()
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func row(c domain.Contact) []string {
	return []string{c.ID.String(), c.FirstName, c.LastName, c.Phone, c.Email, c.Account.String()}
}

func plainField(v string) string {
	if strings.ContainsAny(v, "\t\n\r") || strings.HasPrefix(v, `"`) {
		return strconv.Quote(v)
	}
	return v
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
