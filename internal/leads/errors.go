package leads

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("lead not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("not authorized for this lead")
	ErrValidation = errors.New("validation failed")
	ErrParse      = errors.New("unreadable csv")
	ErrStorage    = errors.New("storage failure")

	ErrAlreadyAssigned = fmt.Errorf("%w: lead is already assigned", ErrConflict)
	ErrDuplicateFRN    = fmt.Errorf("%w: a lead with this FRN already exists", ErrConflict)
)

// Kind is the stable machine-readable error category.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindForbidden  Kind = "forbidden"
	KindValidation Kind = "validation"
	KindParse      Kind = "parse"
	KindStorage    Kind = "storage"
)

// KindOf classifies err. Unknown errors are reported as storage failures.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrParse):
		return KindParse
	default:
		return KindStorage
	}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
