package upstream

import (
	"errors"
	"fmt"
)

// ErrEmptyFilter is returned when no promotion channel is available to build the OR clause
var ErrEmptyFilter = errors.New("filter expression requires at least one promotion field")

// AuthError reports a failed upstream login. The cached session is always
// reset before an AuthError is returned.
type AuthError struct {
	Err error
}

// Error returns the error message
func (e *AuthError) Error() string {
	return fmt.Sprintf("upstream login failed: %v", e.Err)
}

// Unwrap returns the underlying error
func (e *AuthError) Unwrap() error {
	return e.Err
}

// FetchError reports a page request that failed after authentication.
// Records accumulated before the failure are discarded.
type FetchError struct {
	Page int
	Err  error
}

// Error returns the error message
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching page %d: %v", e.Page, e.Err)
}

// Unwrap returns the underlying error
func (e *FetchError) Unwrap() error {
	return e.Err
}
