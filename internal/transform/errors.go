package transform

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRecord is returned for input that is not a JSON object at all
var ErrMalformedRecord = errors.New("record is not a JSON object")

// Violation describes one field that failed validation
type Violation struct {
	Field   string
	Message string
}

// String returns "field message"
func (v Violation) String() string {
	return v.Field + " " + v.Message
}

// ValidationError reports every violation found in one record
type ValidationError struct {
	// ID is the record id when one could be read, for log correlation
	ID         string
	Violations []Violation
}

// Error returns the error message
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	if e.ID == "" {
		return fmt.Sprintf("invalid record: %s", strings.Join(parts, "; "))
	}
	return fmt.Sprintf("invalid record %q: %s", e.ID, strings.Join(parts, "; "))
}
