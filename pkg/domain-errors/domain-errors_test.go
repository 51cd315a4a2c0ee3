package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives shared by the feed
// components: classification failures and metadata decoding both rely on
// code-preserving wrapping.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeNotFound, Message: "proof not found"}
		s.Equal("proof not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeClassificationFailed}
		s.Equal("classification_failed", err.Error())
	})
}

func (s *DomainErrorsSuite) TestIsMatching() {
	s.Run("matches by code only", func() {
		err1 := &Error{Code: CodeNotFound, Message: "message not found"}
		err2 := &Error{Code: CodeNotFound, Message: "credential not found"}
		s.True(err1.Is(err2))
	})

	s.Run("does not match different codes", func() {
		err1 := &Error{Code: CodeNotFound}
		err2 := &Error{Code: CodeInternal}
		s.False(err1.Is(err2))
	})

	s.Run("works with errors.Is through chain", func() {
		inner := &Error{Code: CodeTimeout, Message: "classifier deadline"}
		wrapped := fmt.Errorf("classify proof: %w", inner)
		s.True(errors.Is(wrapped, &Error{Code: CodeTimeout}))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("preserves original domain code when wrapping domain error", func() {
		original := New(CodeTimeout, "attestation service timed out")
		wrapped := Wrap(original, CodeClassificationFailed, "classify proof")

		var domainErr *Error
		s.Require().True(errors.As(wrapped, &domainErr))
		s.Equal(CodeTimeout, domainErr.Code)
		s.Equal("classify proof", domainErr.Message)
	})

	s.Run("uses provided code when wrapping non-domain error", func() {
		original := errors.New("connection refused")
		wrapped := Wrap(original, CodeClassificationFailed, "classify proof")

		s.True(HasCode(wrapped, CodeClassificationFailed))
		s.True(errors.Is(wrapped, original))
	})
}

func (s *DomainErrorsSuite) TestCodeOf() {
	s.Equal(CodeMalformedMetadata, CodeOf(New(CodeMalformedMetadata, "seen is not a boolean")))
	s.Equal(CodeInternal, CodeOf(errors.New("plain")))
	s.Equal(CodeNotFound, CodeOf(fmt.Errorf("lookup: %w", New(CodeNotFound, "gone"))))
	s.False(HasCode(nil, CodeNotFound))
}
