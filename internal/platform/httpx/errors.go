package httpx

import (
	"errors"
	"net/http"

	"github.com/garrison-ops/garrison/internal/shared"
)

type metaCarrier interface {
	Meta() map[string]any
}

// RespondError maps domain errors to HTTP responses. Stock and
// remaining-quantity conflicts surface as 400 with structured meta;
// everything unrecognised collapses to an opaque 500 so store
// internals never leak to the caller.
func RespondError(w http.ResponseWriter, err error) {
	var carrier metaCarrier
	if errors.As(err, &carrier) {
		ProblemMeta(w, http.StatusBadRequest, "State Conflict", err.Error(), carrier.Meta())
		return
	}

	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrStateConflict):
		Problem(w, http.StatusBadRequest, "State Conflict", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
