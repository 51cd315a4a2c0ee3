package models

import "time"

// Kind tags which record an Item carries.
type Kind string

const (
	KindMessage           Kind = "message"
	KindCredentialOffer   Kind = "credential_offer"
	KindCredentialRevoked Kind = "credential_revoked"
	KindProof             Kind = "proof"
)

// Item is one entry of the notification feed. Exactly one of Message,
// Credential or Proof is set, matching Kind.
type Item struct {
	Kind       Kind
	ID         string
	CreatedAt  time.Time
	Message    *MessageRecord
	Credential *CredentialRecord
	Proof      *ProofRecord
}

// MessageItem wraps a message record.
func MessageItem(m MessageRecord) Item {
	return Item{Kind: KindMessage, ID: m.ID, CreatedAt: m.CreatedAt, Message: &m}
}

// OfferItem wraps a credential offer.
func OfferItem(c CredentialRecord) Item {
	return Item{Kind: KindCredentialOffer, ID: c.ID, CreatedAt: c.CreatedAt, Credential: &c}
}

// RevocationItem wraps a revoked credential.
func RevocationItem(c CredentialRecord) Item {
	return Item{Kind: KindCredentialRevoked, ID: c.ID, CreatedAt: c.CreatedAt, Credential: &c}
}

// ProofItem wraps a proof exchange.
func ProofItem(p ProofRecord) Item {
	return Item{Kind: KindProof, ID: p.ID, CreatedAt: p.CreatedAt, Proof: &p}
}

// ConnectionID returns the connection the underlying record belongs to.
func (i Item) ConnectionID() string {
	switch {
	case i.Message != nil:
		return i.Message.ConnectionID
	case i.Credential != nil:
		return i.Credential.ConnectionID
	case i.Proof != nil:
		return i.Proof.ConnectionID
	}
	return ""
}

// State returns the lifecycle state of the underlying record, if it has one.
func (i Item) State() string {
	switch {
	case i.Credential != nil:
		return string(i.Credential.State)
	case i.Proof != nil:
		return string(i.Proof.State)
	}
	return ""
}
