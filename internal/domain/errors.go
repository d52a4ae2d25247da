package domain

import "errors"

// Error kinds. Operations wrap one of these with context using fmt.Errorf("%w: ...").
var (
	// ErrValidation is returned for malformed input, e.g. a non-positive budget
	ErrValidation = errors.New("validation error")

	// ErrPermission is returned when the actor lacks rights for the action
	ErrPermission = errors.New("permission denied")

	// ErrConflict is returned for duplicates, e.g. a second application
	ErrConflict = errors.New("conflict")

	// ErrInvalidState is returned when the job status does not allow the operation
	ErrInvalidState = errors.New("invalid state")

	// ErrCapacity is returned when a hire would exceed max_workers
	ErrCapacity = errors.New("capacity reached")

	// ErrNotFound is returned when a referenced job or application is absent
	ErrNotFound = errors.New("not found")
)

// Kind returns the error kind wrapped by err, or nil if err is not a domain error
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrPermission, ErrConflict, ErrInvalidState, ErrCapacity, ErrNotFound} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
