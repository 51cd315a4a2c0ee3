package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "walletfeed/pkg/domain-errors"
	"walletfeed/pkg/platform/validation"
)

// DecodeJSON decodes a JSON request body into T. On failure it writes a
// 400 response and returns nil, false.
//
// Usage:
//
//	req, ok := httputil.DecodeJSON[AckRequest](w, r, h.logger, requestID)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, validation.MaxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return nil, false
	}
	return &req, true
}

// Validatable is implemented by request types that support validation.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request types that support normalization.
type Normalizable interface {
	Normalize()
}

// PrepareRequest normalizes and then validates a request.
func PrepareRequest(req any) error {
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := req.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// DecodeAndPrepare combines DecodeJSON with PrepareRequest. Validation errors
// that are not domain errors are reported as validation_error.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, requestID string) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger, requestID)
	if !ok {
		return nil, false
	}

	if err := PrepareRequest(req); err != nil {
		logger.WarnContext(r.Context(), "invalid request",
			"error", err,
			"request_id", requestID,
		)
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			WriteError(w, err)
		} else {
			WriteError(w, dErrors.New(dErrors.CodeInvariantViolation, err.Error()))
		}
		return nil, false
	}

	return req, true
}
