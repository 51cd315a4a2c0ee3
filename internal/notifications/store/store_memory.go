// Package store provides an in-memory wallet record store that implements the
// feed's source ports. Records enumerate in insertion order; replacing a
// record keeps its position.
package store

import (
	"context"
	"reflect"
	"slices"
	"sync"

	"walletfeed/internal/notifications/models"
	"walletfeed/internal/notifications/ports"
	dErrors "walletfeed/pkg/domain-errors"
	psync "walletfeed/pkg/platform/sync"
)

// InMemoryWallet holds the records of one wallet. It is safe for concurrent use.
type InMemoryWallet struct {
	mu          sync.RWMutex
	messages    []models.MessageRecord
	credentials []models.CredentialRecord
	proofs      []models.ProofRecord
	version     uint64

	changes *psync.Latest[uint64]
	agent   *psync.Latest[models.AgentIdentity]
}

// NewInMemoryWallet creates an empty wallet acting as agent.
func NewInMemoryWallet(agent models.AgentIdentity) *InMemoryWallet {
	w := &InMemoryWallet{
		changes: psync.NewLatest[uint64](),
		agent:   psync.NewLatest[models.AgentIdentity](),
	}
	w.changes.Publish(0)
	w.agent.Publish(agent)
	return w
}

// WatchMessages implements ports.MessageSource.
func (w *InMemoryWallet) WatchMessages(ctx context.Context) <-chan []models.MessageRecord {
	return watch(ctx, w, func() []models.MessageRecord {
		return slices.Clone(w.messages)
	})
}

// WatchCredentials implements ports.CredentialSource. With no states every
// credential is returned.
func (w *InMemoryWallet) WatchCredentials(ctx context.Context, states ...models.CredentialState) <-chan []models.CredentialRecord {
	return watch(ctx, w, func() []models.CredentialRecord {
		out := make([]models.CredentialRecord, 0)
		for _, c := range w.credentials {
			if len(states) == 0 || slices.Contains(states, c.State) {
				out = append(out, c)
			}
		}
		return out
	})
}

// WatchProofs implements ports.ProofSource. With no states every proof is returned.
func (w *InMemoryWallet) WatchProofs(ctx context.Context, states ...models.ProofState) <-chan []models.ProofRecord {
	return watch(ctx, w, func() []models.ProofRecord {
		out := make([]models.ProofRecord, 0)
		for _, p := range w.proofs {
			if len(states) == 0 || slices.Contains(states, p.State) {
				out = append(out, p)
			}
		}
		return out
	})
}

// WatchIdentity implements ports.IdentitySource.
func (w *InMemoryWallet) WatchIdentity(ctx context.Context) <-chan models.AgentIdentity {
	return w.agent.Subscribe(ctx)
}

// SetAgent switches the acting agent.
func (w *InMemoryWallet) SetAgent(agent models.AgentIdentity) {
	w.agent.Publish(agent)
}

// watch re-evaluates snapshot on every store change and forwards it only
// when it differs from the last one sent, so unrelated writes do not wake
// the subscriber.
func watch[T any](ctx context.Context, w *InMemoryWallet, snapshot func() []T) <-chan []T {
	out := psync.NewLatest[[]T]()
	changes := w.changes.Subscribe(ctx)
	go func() {
		var last []T
		sent := false
		for range changes {
			w.mu.RLock()
			current := snapshot()
			w.mu.RUnlock()
			if sent && reflect.DeepEqual(last, current) {
				continue
			}
			last, sent = current, true
			out.Publish(current)
		}
	}()
	return out.Subscribe(ctx)
}

// mutate applies fn under the write lock and announces a change if fn succeeds.
func (w *InMemoryWallet) mutate(fn func() error) error {
	w.mu.Lock()
	if err := fn(); err != nil {
		w.mu.Unlock()
		return err
	}
	w.version++
	v := w.version
	w.mu.Unlock()

	w.changes.Publish(v)
	return nil
}

// UpsertMessage inserts a message or replaces the one with the same ID.
func (w *InMemoryWallet) UpsertMessage(m models.MessageRecord) error {
	if m.ID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "message ID required")
	}
	return w.mutate(func() error {
		w.messages = upsert(w.messages, m, func(r models.MessageRecord) string { return r.ID })
		return nil
	})
}

// UpsertCredential inserts a credential or replaces the one with the same ID.
func (w *InMemoryWallet) UpsertCredential(c models.CredentialRecord) error {
	if c.ID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "credential ID required")
	}
	if !c.State.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid credential state")
	}
	return w.mutate(func() error {
		w.credentials = upsert(w.credentials, c, func(r models.CredentialRecord) string { return r.ID })
		return nil
	})
}

// UpsertProof inserts a proof or replaces the one with the same ID.
func (w *InMemoryWallet) UpsertProof(p models.ProofRecord) error {
	if p.ID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "proof ID required")
	}
	if !p.State.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid proof state")
	}
	return w.mutate(func() error {
		w.proofs = upsert(w.proofs, p, func(r models.ProofRecord) string { return r.ID })
		return nil
	})
}

// DeleteMessage removes a message.
func (w *InMemoryWallet) DeleteMessage(id string) error {
	return w.mutate(func() error {
		var err error
		w.messages, err = remove(w.messages, id, "message", func(r models.MessageRecord) string { return r.ID })
		return err
	})
}

// DeleteCredential removes a credential.
func (w *InMemoryWallet) DeleteCredential(id string) error {
	return w.mutate(func() error {
		var err error
		w.credentials, err = remove(w.credentials, id, "credential", func(r models.CredentialRecord) string { return r.ID })
		return err
	})
}

// DeleteProof removes a proof.
func (w *InMemoryWallet) DeleteProof(id string) error {
	return w.mutate(func() error {
		var err error
		w.proofs, err = remove(w.proofs, id, "proof", func(r models.ProofRecord) string { return r.ID })
		return err
	})
}

// MarkMessageSeen records that the user read a message.
func (w *InMemoryWallet) MarkMessageSeen(id string) error {
	return w.mutate(func() error {
		i := slices.IndexFunc(w.messages, func(r models.MessageRecord) bool { return r.ID == id })
		if i < 0 {
			return notFound("message", id)
		}
		w.messages[i].Metadata.Seen = models.Recorded(true)
		return nil
	})
}

// AcknowledgeRevocation records that the user saw a credential's revocation.
func (w *InMemoryWallet) AcknowledgeRevocation(id string) error {
	return w.setRevokedSeen(id, models.Recorded(true))
}

// ClearRevocationAcknowledgement removes a recorded revocation acknowledgement.
func (w *InMemoryWallet) ClearRevocationAcknowledgement(id string) error {
	return w.setRevokedSeen(id, models.Unrecorded())
}

func (w *InMemoryWallet) setRevokedSeen(id string, ack models.Ack) error {
	return w.mutate(func() error {
		i := slices.IndexFunc(w.credentials, func(r models.CredentialRecord) bool { return r.ID == id })
		if i < 0 {
			return notFound("credential", id)
		}
		w.credentials[i].Metadata.RevokedSeen = ack
		return nil
	})
}

// MarkProofDetailsSeen records that the user opened a finished proof's details.
func (w *InMemoryWallet) MarkProofDetailsSeen(id string) error {
	return w.mutate(func() error {
		i := slices.IndexFunc(w.proofs, func(r models.ProofRecord) bool { return r.ID == id })
		if i < 0 {
			return notFound("proof", id)
		}
		w.proofs[i].Metadata.DetailsSeen = models.Recorded(true)
		return nil
	})
}

func upsert[T any](records []T, record T, idOf func(T) string) []T {
	i := slices.IndexFunc(records, func(r T) bool { return idOf(r) == idOf(record) })
	if i < 0 {
		return append(records, record)
	}
	records[i] = record
	return records
}

func remove[T any](records []T, id, kind string, idOf func(T) string) ([]T, error) {
	i := slices.IndexFunc(records, func(r T) bool { return idOf(r) == id })
	if i < 0 {
		return records, notFound(kind, id)
	}
	return slices.Delete(records, i, i+1), nil
}

func notFound(kind, id string) error {
	return dErrors.New(dErrors.CodeNotFound, kind+" "+id+" not found")
}

var (
	_ ports.MessageSource    = (*InMemoryWallet)(nil)
	_ ports.CredentialSource = (*InMemoryWallet)(nil)
	_ ports.ProofSource      = (*InMemoryWallet)(nil)
	_ ports.IdentitySource   = (*InMemoryWallet)(nil)
)
