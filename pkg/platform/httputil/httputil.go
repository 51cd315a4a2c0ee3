package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "walletfeed/pkg/domain-errors"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses. Errors
// without a domain code become internal errors with no description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	response := map[string]string{
		"error": DomainCodeToHTTPCode(code),
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		response["error_description"] = domainErr.Message
	}
	WriteJSON(w, DomainCodeToHTTPStatus(code), response)
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeInvalidInput, dErrors.CodeInvariantViolation, dErrors.CodeMalformedMetadata:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeClassificationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the JSON error field.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeInvalidInput, dErrors.CodeMalformedMetadata:
		return "bad_request"
	case dErrors.CodeInvariantViolation:
		return "validation_error"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeUnavailable:
		return "unavailable"
	case dErrors.CodeTimeout:
		return "timeout"
	case dErrors.CodeClassificationFailed:
		return "classification_failed"
	default:
		return "internal_error"
	}
}
