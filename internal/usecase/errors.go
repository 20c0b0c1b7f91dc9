package usecase

import (
	"errors"
	"fmt"

	"github.com/xavierca1/leadsync/internal/entity"
)

// ValidationError is a missing or invalid input field. Terminal for the
// operation and reported to the caller as-is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	return errors.Is(err, entity.ErrNotFound)
}

// PersistenceError wraps a failed store read or write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, entity.ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

var (
	// ErrArmInFlight rejects an arm while another arm of the same flag is pending.
	ErrArmInFlight = errors.New("automation is already being triggered")
	// ErrAlreadyArmed rejects an arm while the flag is still raised.
	ErrAlreadyArmed = errors.New("automation is already active")
)
