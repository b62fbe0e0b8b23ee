// Package httputil maps coded errors onto HTTP responses. Internal error
// detail never leaves the process; business rejections carry their message
// so registrar tooling can surface it.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "regcore/pkg/domain-errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the HTTP rendering of a coded error.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: errorToken(code)}
	if includeDescription(code) {
		body.Description = dErrors.MessageOf(err)
	}
	WriteJSON(w, StatusOf(code), body)
}

// StatusOf maps a coded-error code to its HTTP status.
func StatusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeDenied:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeRetryable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorToken(code dErrors.Code) string {
	if code == dErrors.CodeInternal || code == dErrors.CodeInvariantViolation {
		return "internal_error"
	}
	return string(code)
}

// includeDescription reports whether the error message is safe to expose.
func includeDescription(code dErrors.Code) bool {
	switch code {
	case dErrors.CodeInternal, dErrors.CodeInvariantViolation, dErrors.CodeRetryable:
		return false
	}
	return true
}
