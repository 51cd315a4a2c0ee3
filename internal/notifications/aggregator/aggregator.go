// Package aggregator reconciles the wallet's record streams into one ordered
// notification list. Everything here is a pure projection over its inputs:
// equal inputs always produce an equal feed.
package aggregator

import (
	"sort"

	"walletfeed/internal/notifications/models"
)

// Inputs is one consistent view of every port the feed is computed from.
type Inputs struct {
	Messages        []models.MessageRecord
	Offers          []models.CredentialRecord
	DoneCredentials []models.CredentialRecord
	FilteredProofs  []models.ProofRecord
}

// Compute builds the feed: reduced messages, offers, reduced proofs and
// pending revocations are concatenated in that order and then stable-sorted
// by creation time, newest first. Ties keep category order, then source order.
func Compute(in Inputs) []models.Item {
	messages := UnseenMessages(in.Messages)
	proofs := VisibleProofs(in.FilteredProofs)
	revoked := PendingRevocations(in.DoneCredentials)

	items := make([]models.Item, 0, len(messages)+len(in.Offers)+len(proofs)+len(revoked))
	for _, m := range messages {
		items = append(items, models.MessageItem(m))
	}
	for _, c := range in.Offers {
		items = append(items, models.OfferItem(c))
	}
	for _, p := range proofs {
		items = append(items, models.ProofItem(p))
	}
	for _, c := range revoked {
		items = append(items, models.RevocationItem(c))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}

// UnseenMessages keeps messages not marked seen, and of those only the first
// one encountered per connection in source order. This is first-in-iteration,
// not newest-by-timestamp.
func UnseenMessages(messages []models.MessageRecord) []models.MessageRecord {
	seenConnections := make(map[string]struct{})
	result := make([]models.MessageRecord, 0)
	for _, m := range messages {
		if m.Metadata.Seen.IsSet() {
			continue
		}
		if _, ok := seenConnections[m.ConnectionID]; ok {
			continue
		}
		seenConnections[m.ConnectionID] = struct{}{}
		result = append(result, m)
	}
	return result
}

// PendingRevocations keeps done credentials that carry a revocation
// notification the user has not acknowledged. Any recorded acknowledgement,
// including false, suppresses the notification.
func PendingRevocations(done []models.CredentialRecord) []models.CredentialRecord {
	result := make([]models.CredentialRecord, 0)
	for _, c := range done {
		if c.IsRevoked() && !c.Metadata.RevokedSeen.IsRecorded() {
			result = append(result, c)
		}
	}
	return result
}

// VisibleProofs keeps proofs still in progress, plus finished proofs that have
// a verification result whose details the user has not opened yet.
func VisibleProofs(proofs []models.ProofRecord) []models.ProofRecord {
	result := make([]models.ProofRecord, 0)
	for _, p := range proofs {
		if !p.State.IsTerminal() || (p.HasVerificationResult() && !p.Metadata.DetailsSeen.IsSet()) {
			result = append(result, p)
		}
	}
	return result
}
