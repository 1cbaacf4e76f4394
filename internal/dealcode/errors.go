package dealcode

import (
	"errors"
	"fmt"
)

var (
	// ErrLookupFailed is returned when the most recent deal code cannot be read.
	ErrLookupFailed = errors.New("retrieving last deal code failed")

	// ErrSaveFailed is matched by every SaveError.
	ErrSaveFailed = errors.New("saving deal code failed")

	// ErrDuplicateCode is returned by stores when the code already exists.
	ErrDuplicateCode = errors.New("deal code already exists")

	// ErrInvalidIssuer is returned for issuer types that cannot create deals.
	ErrInvalidIssuer = errors.New("invalid deal issuer type")
)

// SaveError reports a failed insert of a computed code.
type SaveError struct {
	Code string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("saving deal code '%s' failed: %v", e.Code, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSaveFailed) hold for any SaveError.
func (e *SaveError) Is(target error) bool { return target == ErrSaveFailed }
