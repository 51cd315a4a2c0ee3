// Package handler serves the notification feed over HTTP.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	jwttoken "walletfeed/internal/jwt_token"
	"walletfeed/internal/notifications/feed"
	"walletfeed/internal/notifications/models"
	"walletfeed/internal/platform/middleware"
	dErrors "walletfeed/pkg/domain-errors"
	"walletfeed/pkg/platform/httputil"
)

// FeedReader exposes the last published feed.
type FeedReader interface {
	Snapshot() (feed.Snapshot, bool)
}

// Acknowledger writes acknowledgement metadata back to the wallet records.
type Acknowledger interface {
	MarkMessageSeen(id string) error
	AcknowledgeRevocation(id string) error
	ClearRevocationAcknowledgement(id string) error
	MarkProofDetailsSeen(id string) error
}

// Handler serves the feed and acknowledgement endpoints.
type Handler struct {
	feed   FeedReader
	acks   Acknowledger
	logger *slog.Logger
}

// New creates a Handler.
func New(feed FeedReader, acks Acknowledger, logger *slog.Logger) *Handler {
	return &Handler{feed: feed, acks: acks, logger: logger}
}

// Register mounts the routes on r. Callers are expected to have applied
// middleware.RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.With(middleware.RequireScope(jwttoken.ScopeFeedRead, h.logger)).Get("/notifications", h.handleGetFeed)
	r.With(middleware.RequireScope(jwttoken.ScopeFeedAck, h.logger), middleware.ContentTypeJSON).Post("/notifications/acks", h.handleAck)
}

func (h *Handler) handleGetFeed(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.feed.Snapshot()
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "feed not yet available"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toFeedResponse(snap))
}

func (h *Handler) handleAck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AckRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	var err error
	switch req.Kind {
	case models.KindMessage:
		err = h.acks.MarkMessageSeen(req.ID)
	case models.KindProof:
		err = h.acks.MarkProofDetailsSeen(req.ID)
	case models.KindCredentialRevoked:
		if req.acknowledged() {
			err = h.acks.AcknowledgeRevocation(req.ID)
		} else {
			err = h.acks.ClearRevocationAcknowledgement(req.ID)
		}
	}
	if err != nil {
		h.logger.WarnContext(ctx, "failed to record acknowledgement",
			"kind", req.Kind,
			"id", req.ID,
			"agent_id", middleware.GetAgentID(ctx),
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "acknowledgement recorded",
		"kind", req.Kind,
		"id", req.ID,
		"acknowledged", req.acknowledged(),
		"agent_id", middleware.GetAgentID(ctx),
		"request_id", requestID,
	)
	w.WriteHeader(http.StatusNoContent)
}
