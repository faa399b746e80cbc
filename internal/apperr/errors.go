// Package apperr defines the sentinel error classes surfaced to callers.
//
// A line that simply is not a task is not represented here: the codec
// reports that as an absent result, never as an error.
package apperr

import "errors"

var (
	// ErrTargetNotFound means a write-back target document or line
	// vanished before the write landed.
	ErrTargetNotFound = errors.New("target not found")

	// ErrEditConflict means the write-back target line no longer looks
	// like the task being edited.
	ErrEditConflict = errors.New("concurrent edit conflict")

	// ErrDuplicate means an entity with the same identity already exists.
	ErrDuplicate = errors.New("already exists")

	// ErrInvalidInput means a caller-supplied value failed validation.
	ErrInvalidInput = errors.New("invalid input")
)
