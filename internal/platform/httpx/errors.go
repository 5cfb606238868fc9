// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

// StatusFor maps a domain error kind onto an HTTP status code.
func StatusFor(kind shared.ErrorKind) int {
	switch kind {
	case shared.KindRecordNotFound:
		return http.StatusNotFound
	case shared.KindInvalidTransition, shared.KindConflict:
		return http.StatusConflict
	case shared.KindNoAccountConfigured, shared.KindUnlinkedItem, shared.KindNegativeStock:
		return http.StatusUnprocessableEntity
	case shared.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var de *shared.Error
	if !errors.As(err, &de) {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	status := StatusFor(de.Kind)
	writeProblem(w, ProblemDetail{
		Type:   "urn:odyssey:error:" + string(de.Kind),
		Title:  http.StatusText(status),
		Status: status,
		Detail: de.Message,
		Kind:   string(de.Kind),
	})
}
