package schema

import (
	"errors"
	"fmt"
)

// ErrEmptyName is returned when a resource, field, filter, action or dashboard
// is declared without a name.
var ErrEmptyName = errors.New("name is required")

// DuplicateFieldError is returned when two fields of a resource resolve to the
// same database field.
type DuplicateFieldError struct {
	Resource      string
	Field         string
	Existing      string
	DatabaseField string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("resource %q: field %q collides with field %q on database field %q",
		e.Resource, e.Field, e.Existing, e.DatabaseField)
}

// InvalidDisplayFieldError is returned when a resource's display field does not
// name one of its declared fields.
type InvalidDisplayFieldError struct {
	Resource     string
	DisplayField string
}

func (e *InvalidDisplayFieldError) Error() string {
	return fmt.Sprintf("resource %q: display field %q is not a declared field", e.Resource, e.DisplayField)
}

// HiddenRequiredFieldError is returned when a required field is hidden on
// index, detail, creation and update alike, so no form could ever supply it.
type HiddenRequiredFieldError struct {
	Resource string
	Field    string
}

func (e *HiddenRequiredFieldError) Error() string {
	return fmt.Sprintf("resource %q: field %q is required but hidden in every context", e.Resource, e.Field)
}

// InvalidFieldError reports a field definition that cannot be compiled.
type InvalidFieldError struct {
	Resource string
	Field    string
	Reason   string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("resource %q: field %q: %s", e.Resource, e.Field, e.Reason)
}

// DuplicateCardError is returned when two cards of a dashboard share a slug.
type DuplicateCardError struct {
	Dashboard string
	Card      string
}

func (e *DuplicateCardError) Error() string {
	return fmt.Sprintf("dashboard %q: duplicate card %q", e.Dashboard, e.Card)
}
