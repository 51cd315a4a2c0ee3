// Package validation holds input size limits shared by the HTTP and ingest
// edges.
package validation

import (
	"fmt"

	dErrors "walletfeed/pkg/domain-errors"
)

// HTTP body limits
const (
	// MaxBodySize is the maximum allowed request body size (64 KB).
	MaxBodySize = 64 * 1024
)

// String element length limits
const (
	// MaxRecordIDLength is the maximum length of a wallet record ID.
	MaxRecordIDLength = 256

	// MaxRequestIDLength is the maximum accepted X-Request-ID length.
	MaxRequestIDLength = 128
)

// Slice element count limits
const (
	// MaxScopes is the maximum number of scopes in a feed token.
	MaxScopes = 10
)

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}
