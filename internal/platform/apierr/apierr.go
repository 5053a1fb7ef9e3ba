package apierr

import (
	"errors"
	"fmt"
	"net/http"

	types "github.com/yungbote/research-evidence-backend/internal/domain"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps domain errors onto HTTP statuses. Unrecognized errors become
// a 500 carrying fallbackCode.
func FromError(err error, fallbackCode string) *Error {
	var ae *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return ae
	case types.IsInvalidPair(err):
		return New(http.StatusBadRequest, "invalid_pair", err)
	case errors.Is(err, types.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case types.IsExtractionError(err):
		return New(http.StatusUnprocessableEntity, "extraction_failed", err)
	case errors.Is(err, types.ErrConfirmationRequired):
		return New(http.StatusConflict, "confirmation_required", err)
	default:
		return New(http.StatusInternalServerError, fallbackCode, err)
	}
}
