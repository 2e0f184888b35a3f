package api

import (
	"errors"
	"net/http"

	"github.com/okian/cupping/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrMissingIdentity = errors.New("missing X-User-ID header")
	ErrMissingGroup    = errors.New("missing X-Group-ID header")
)

// statusFor maps a service error to its HTTP status and wire code.
func statusFor(err error) (int, string) {
	switch model.KindOf(err) {
	case model.ErrNotFound:
		return http.StatusNotFound, model.KindName(err)
	case model.ErrAccessDenied, model.ErrNotInvited, model.ErrForbidden:
		return http.StatusForbidden, model.KindName(err)
	case model.ErrInvalidTransition, model.ErrCannotRecord, model.ErrNoTestResults, model.ErrDuplicateTest:
		return http.StatusConflict, model.KindName(err)
	case model.ErrSampleNotInSession, model.ErrMissingHiddenNames, model.ErrInvalidRating:
		return http.StatusUnprocessableEntity, model.KindName(err)
	case model.ErrNoTestsProvided, model.ErrInvalidSession:
		return http.StatusBadRequest, model.KindName(err)
	default:
		return http.StatusInternalServerError, "internal"
	}
}
