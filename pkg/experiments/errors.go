package experiments

import (
	"errors"
	"sort"
	"strings"
)

// ErrNotFound is returned when no experiment matches the given slug.
var ErrNotFound = errors.New("experiment not found")

// FieldErrors collects user-facing validation failures keyed by field
// name. Form-level failures use the "__all__" key. It implements error so
// the save pipeline can return it directly; callers unwrap it with
// errors.As and render a 400 instead of a 500.
type FieldErrors map[string][]string

// FormLevel is the key for errors that do not belong to a single field.
const FormLevel = "__all__"

// Add appends a message to the given field's error list.
func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Has reports whether the field already carries an error.
func (e FieldErrors) Has(field string) bool {
	return len(e[field]) > 0
}

// Error summarizes all field errors in a stable order.
func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var parts []string
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e[f], "; "))
	}
	return strings.Join(parts, ", ")
}
