// Package ports declares the collaborators the notification feed consumes.
//
// Every Watch method follows the same contract: the returned channel yields
// the current snapshot immediately, then a complete replacement snapshot each
// time the underlying collection changes. Delivery is latest-wins, so a slow
// reader skips intermediate snapshots. The channel is closed when ctx ends.
package ports

//go:generate mockgen -destination=mocks/mocks.go -package=mocks walletfeed/internal/notifications/ports AttestationClassifier

import (
	"context"

	"walletfeed/internal/notifications/models"
)

// MessageSource exposes the wallet's inbound chat messages.
type MessageSource interface {
	WatchMessages(ctx context.Context) <-chan []models.MessageRecord
}

// CredentialSource exposes credential exchanges filtered by lifecycle state.
type CredentialSource interface {
	WatchCredentials(ctx context.Context, states ...models.CredentialState) <-chan []models.CredentialRecord
}

// ProofSource exposes proof exchanges filtered by lifecycle state.
type ProofSource interface {
	WatchProofs(ctx context.Context, states ...models.ProofState) <-chan []models.ProofRecord
}

// IdentitySource exposes the acting agent.
type IdentitySource interface {
	WatchIdentity(ctx context.Context) <-chan models.AgentIdentity
}

// AttestationClassifier decides whether a proof request is an internal
// attestation challenge that must be hidden from the user. A non-nil error
// means no decision was made; the caller applies its failure policy.
type AttestationClassifier interface {
	IsAttestation(ctx context.Context, proof models.ProofRecord, agent models.AgentIdentity, policy models.RestrictionPolicy) (bool, error)
}
