package models

// AgentIdentity is the acting wallet agent or session. It is opaque to the
// feed and passed through to the attestation classifier.
type AgentIdentity struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// IsZero reports whether no agent is set.
func (a AgentIdentity) IsZero() bool { return a.ID == "" }

// Restriction identifies credentials an attestation proof request asks for.
type Restriction struct {
	SchemaID  string `json:"schema_id,omitempty"`
	CredDefID string `json:"cred_def_id,omitempty"`
	IssuerDID string `json:"issuer_did,omitempty"`
}

// RestrictionPolicy is the set of restrictions that mark a proof request as
// an attestation challenge. The feed does not interpret it.
type RestrictionPolicy struct {
	Restrictions []Restriction `json:"restrictions"`
}
