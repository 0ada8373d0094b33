// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/workforce-hq/workforce/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var e *shared.Error
	if !errors.As(err, &e) {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	switch e.Kind {
	case shared.KindAuthenticationRequired:
		Problem(w, http.StatusUnauthorized, "Unauthorized", e.Error())
	case shared.KindPermissionDenied, shared.KindAccessDenied:
		Problem(w, http.StatusForbidden, "Forbidden", e.Error())
	case shared.KindNotFound:
		Problem(w, http.StatusNotFound, "Not Found", e.Error())
	case shared.KindValidationFailed:
		JSON(w, http.StatusBadRequest, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: e.Error(),
			Errors: e.Fields,
		})
	case shared.KindConflict:
		Problem(w, http.StatusConflict, "Conflict", e.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// StatusFor returns the status code RespondError would write for err.
func StatusFor(err error) int {
	switch shared.KindOf(err) {
	case shared.KindAuthenticationRequired:
		return http.StatusUnauthorized
	case shared.KindPermissionDenied, shared.KindAccessDenied:
		return http.StatusForbidden
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindValidationFailed:
		return http.StatusBadRequest
	case shared.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
