package api

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/zjrosen/rolodex/internal/contacts/domain"
)

//go:embed schema/contact.json
var contactSchemaJSON []byte

// Compiled at init time - failure here means a corrupted embedded schema.
var contactSchema = mustCompileSchema("contact.json", contactSchemaJSON)

func mustCompileSchema(name string, data []byte) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("parse %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("add %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// ContactRequest is the body of POST /contacts and PUT /contacts/{id}.
type ContactRequest struct {
	FirstName       string         `json:"firstName"`
	LastName        string         `json:"lastName"`
	TelephoneNumber string         `json:"telephoneNumber"`
	Email           string         `json:"email"`
	Account         domain.Account `json:"account"`
}

// Fields converts the request to registry fields.
func (r ContactRequest) Fields() domain.Fields {
	return domain.Fields{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.TelephoneNumber,
		Email:     r.Email,
		Account:   r.Account,
	}
}

// syntaxError marks a body that is not JSON at all.
type syntaxError struct{ err error }

func (e *syntaxError) Error() string { return e.err.Error() }
func (e *syntaxError) Unwrap() error { return e.err }

// decodeContact validates body against the contact schema and decodes it.
// A *syntaxError is returned for malformed JSON, a *jsonschema.ValidationError
// for schema violations.
func decodeContact(body []byte) (ContactRequest, error) {
	var req ContactRequest

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return req, &syntaxError{err: err}
	}
	if err := contactSchema.Validate(doc); err != nil {
		return req, err
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("decoding contact: %w", err)
	}
	return req, nil
}
