package cert

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateEntry  = errors.New("duplicate entry")
	ErrEmptyValue      = errors.New("empty value")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrEmptyCommonName = errors.New("common name is required")
	ErrInvalidCountry  = errors.New("country must be a 2-letter code")
	ErrWeakKey         = errors.New("key size below minimum")
	ErrUnknownSANType  = errors.New("unknown SAN type")
	ErrUnknownKind     = errors.New("unknown conversion kind")
)

// ValidationError reports a bad model state detected before any process is spawned.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %v", e.Err)
	}
	return fmt.Sprintf("validation failed: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid wraps err as a ValidationError for field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err carries a ValidationError anywhere in its chain.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
