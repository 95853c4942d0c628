package askings

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("asking not found")
	ErrForbidden   = errors.New("caller has no permission")
	ErrEmptyResult = errors.New("no askings found")
	ErrValidation  = errors.New("validation failed")

	// ErrNotMentor is the Forbidden raised by Transition.
	ErrNotMentor = fmt.Errorf("%w: caller is not the mentor of this asking", ErrForbidden)
)

// PersistenceError wraps a failure of the underlying store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s asking: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func validationErr(field, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, field, reason)
}
