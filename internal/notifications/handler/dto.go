package handler

import (
	"fmt"
	"strings"
	"time"

	"walletfeed/internal/notifications/feed"
	"walletfeed/internal/notifications/models"
	"walletfeed/pkg/platform/validation"
)

// ItemResponse is one feed entry on the wire.
type ItemResponse struct {
	Kind         models.Kind `json:"kind"`
	ID           string      `json:"id"`
	CreatedAt    time.Time   `json:"created_at"`
	ConnectionID string      `json:"connection_id,omitempty"`
	State        string      `json:"state,omitempty"`
}

// FeedResponse is the body of GET /notifications.
type FeedResponse struct {
	Version     uint64         `json:"version"`
	PublishedAt time.Time      `json:"published_at"`
	Items       []ItemResponse `json:"items"`
}

func toFeedResponse(snap feed.Snapshot) FeedResponse {
	items := make([]ItemResponse, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, ItemResponse{
			Kind:         item.Kind,
			ID:           item.ID,
			CreatedAt:    item.CreatedAt,
			ConnectionID: item.ConnectionID(),
			State:        item.State(),
		})
	}
	return FeedResponse{
		Version:     snap.Version,
		PublishedAt: snap.PublishedAt,
		Items:       items,
	}
}

// AckRequest records that the holder viewed a notification.
type AckRequest struct {
	Kind models.Kind `json:"kind"`
	ID   string      `json:"id"`
	// Acknowledged defaults to true. false is only meaningful for
	// revocations, where it clears an earlier acknowledgement.
	Acknowledged *bool `json:"acknowledged,omitempty"`
}

// Normalize trims identifiers.
func (r *AckRequest) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.Kind = models.Kind(strings.TrimSpace(string(r.Kind)))
}

// Validate checks the request shape.
func (r *AckRequest) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if err := validation.CheckStringLength("id", r.ID, validation.MaxRecordIDLength); err != nil {
		return err
	}
	switch r.Kind {
	case models.KindMessage, models.KindProof:
		if !r.acknowledged() {
			return fmt.Errorf("%s acknowledgements cannot be cleared", r.Kind)
		}
	case models.KindCredentialRevoked:
	case models.KindCredentialOffer:
		return fmt.Errorf("credential offers leave the feed when accepted or declined")
	default:
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	return nil
}

func (r *AckRequest) acknowledged() bool {
	return r.Acknowledged == nil || *r.Acknowledged
}
