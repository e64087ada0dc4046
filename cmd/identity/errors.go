package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no user matches the given key.
	ErrNotFound = errors.New("identity: not found")

	// ErrConflict is returned for uniqueness violations (duplicate mobile).
	ErrConflict = errors.New("identity: conflict")

	// ErrInvalidInput is returned for malformed inputs.
	ErrInvalidInput = errors.New("identity: invalid input")

	// ErrInvalidMobile is returned when a mobile number cannot be parsed or
	// is not a valid number for any region.
	ErrInvalidMobile = errors.New("identity: invalid mobile number")
)

// OpError is a typed operation error with a stable Op + Kind contract.
// Kind must be one of the sentinel errors above; Msg may add context but
// never secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err represents ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
