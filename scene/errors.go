package scene

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField        = errors.New("scene: missing camera field")
	ErrMalformedField      = errors.New("scene: malformed camera field")
	ErrNonFiniteCoordinate = errors.New("scene: camera coordinates must be finite")
	ErrDegenerateCamera    = errors.New("scene: camera origin and target must not coincide")
)

// A FieldError reports which camera input field was rejected.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Err.Error(), e.Field)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
