// Package models holds the wallet records the notification feed reads and the
// notification items it produces. Records are owned by their sources; the feed
// never mutates them.
package models

import (
	"slices"
	"time"
)

// CredentialState is the lifecycle state of a credential exchange.
type CredentialState string

const (
	CredentialOfferReceived CredentialState = "offer-received"
	CredentialReceived      CredentialState = "credential-received"
	CredentialDone          CredentialState = "done"
)

// IsValid reports whether s is a known credential state.
func (s CredentialState) IsValid() bool {
	switch s {
	case CredentialOfferReceived, CredentialReceived, CredentialDone:
		return true
	}
	return false
}

// ProofState is the lifecycle state of a proof exchange.
type ProofState string

const (
	ProofRequestReceived      ProofState = "request-received"
	ProofPresentationReceived ProofState = "presentation-received"
	ProofDone                 ProofState = "done"
)

// TerminalProofStates are the states in which a proof exchange has finished
// from the holder's point of view.
var TerminalProofStates = []ProofState{ProofDone, ProofPresentationReceived}

// IsValid reports whether s is a known proof state.
func (s ProofState) IsValid() bool {
	switch s {
	case ProofRequestReceived, ProofPresentationReceived, ProofDone:
		return true
	}
	return false
}

// IsTerminal reports whether s is done or presentation-received.
func (s ProofState) IsTerminal() bool {
	return slices.Contains(TerminalProofStates, s)
}

// MessageMetadata is the wallet-side metadata attached to a chat message.
type MessageMetadata struct {
	Seen Ack `json:"seen"`
}

// MessageRecord is an inbound chat message on a connection.
type MessageRecord struct {
	ID           string          `json:"id"`
	ConnectionID string          `json:"connection_id"`
	CreatedAt    time.Time       `json:"created_at"`
	Content      string          `json:"content,omitempty"`
	Metadata     MessageMetadata `json:"metadata"`
}

// RevocationNotification is attached to a credential when its issuer revoked it.
type RevocationNotification struct {
	RevocationDate time.Time `json:"revocation_date"`
	Comment        string    `json:"comment,omitempty"`
}

// CredentialMetadata is the wallet-side metadata attached to a credential.
type CredentialMetadata struct {
	RevokedSeen Ack `json:"revoked_seen"`
}

// CredentialRecord is a credential exchange in any lifecycle state.
type CredentialRecord struct {
	ID                     string                  `json:"id"`
	ConnectionID           string                  `json:"connection_id,omitempty"`
	CreatedAt              time.Time               `json:"created_at"`
	State                  CredentialState         `json:"state"`
	RevocationNotification *RevocationNotification `json:"revocation_notification,omitempty"`
	Metadata               CredentialMetadata      `json:"metadata"`
}

// IsRevoked reports whether the issuer sent a revocation notification.
func (c CredentialRecord) IsRevoked() bool {
	return c.RevocationNotification != nil
}

// ProofMetadata is the wallet-side metadata attached to a proof exchange.
type ProofMetadata struct {
	DetailsSeen Ack `json:"details_seen"`
}

// ProofRecord is a proof exchange. Whether it is an attestation challenge is
// not part of the record; the proof filter stage derives it per cycle.
type ProofRecord struct {
	ID           string        `json:"id"`
	ConnectionID string        `json:"connection_id,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	State        ProofState    `json:"state"`
	IsVerified   *bool         `json:"is_verified,omitempty"`
	Metadata     ProofMetadata `json:"metadata"`
}

// HasVerificationResult reports whether verification produced a result.
func (p ProofRecord) HasVerificationResult() bool {
	return p.IsVerified != nil
}
