package ingest

import (
	"encoding/json"
	"time"

	"walletfeed/internal/notifications/models"
)

// Record kinds carried on the records topic.
const (
	KindMessage    = "message"
	KindCredential = "credential"
	KindProof      = "proof"
	KindAgent      = "agent"
)

// Operations on a record.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// Envelope is one record-change event.
type Envelope struct {
	Kind   string          `json:"kind"`
	Op     string          `json:"op"`
	Record json.RawMessage `json:"record"`
}

// Metadata arrives untyped from the wallet; acknowledgement flags are read
// with models.ParseAck so a malformed flag never hides a notification.
type metadata map[string]any

type messageRecord struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connection_id"`
	CreatedAt    time.Time `json:"created_at"`
	Content      string    `json:"content"`
	Metadata     metadata  `json:"metadata"`
}

type credentialRecord struct {
	ID                     string                         `json:"id"`
	ConnectionID           string                         `json:"connection_id"`
	CreatedAt              time.Time                      `json:"created_at"`
	State                  models.CredentialState         `json:"state"`
	RevocationNotification *models.RevocationNotification `json:"revocation_notification"`
	Metadata               metadata                       `json:"metadata"`
}

type proofRecord struct {
	ID           string            `json:"id"`
	ConnectionID string            `json:"connection_id"`
	CreatedAt    time.Time         `json:"created_at"`
	State        models.ProofState `json:"state"`
	IsVerified   *bool             `json:"is_verified"`
	Metadata     metadata          `json:"metadata"`
}

type deleteRecord struct {
	ID string `json:"id"`
}
