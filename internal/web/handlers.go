package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vidurdewan/the-digest-sub001/internal/continuity"
	"github.com/vidurdewan/the-digest-sub001/internal/store"
	"github.com/vidurdewan/the-digest-sub001/internal/types"
)

// Handlers contains the HTTP route handlers for the continuity API.
type Handlers struct {
	engine *continuity.Engine
	store  *store.LocalStore
	log    *zap.Logger
}

// HandleSnapshot handles GET /v1/continuity/snapshot.
func (h *Handlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	payload, err := h.engine.Snapshot(r.Context(), q.Get("client"), q.Get("depth"))
	if err != nil {
		h.log.Error("snapshot failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "snapshot computation failed")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

type ackRequest struct {
	Client  string     `json:"client"`
	Depth   string     `json:"depth"`
	UntilAt *time.Time `json:"untilAt"`
}

// HandleAck handles POST /v1/continuity/ack. It advances the client's
// watermark and echoes the stored state.
func (h *Handlers) HandleAck(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.engine.Acknowledge(r.Context(), req.Client, req.Depth, req.UntilAt)
	if err != nil {
		h.log.Error("acknowledge failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "acknowledge failed")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleIngest handles POST /v1/items: upsert a batch of articles.
func (h *Handlers) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var items []store.Item
	if err := decodeJSON(r, &items); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(items) == 0 {
		writeError(w, http.StatusBadRequest, "at least one item is required")
		return
	}

	for i, item := range items {
		if item.ID == "" || item.Title == "" {
			writeError(w, http.StatusBadRequest, "every item needs an id and a title")
			return
		}
		if item.PublishedAt.IsZero() {
			items[i].PublishedAt = time.Now().UTC()
		}
	}
	for _, item := range items {
		if err := h.store.PutItem(r.Context(), item); err != nil {
			h.log.Error("item upsert failed", zap.String("id", item.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "item upsert failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stored": len(items)})
}

type reactionRequest struct {
	Reaction string `json:"reaction"`
	Topic    string `json:"topic"`
}

var validReactions = map[types.Reaction]bool{
	types.ReactionUseful:       true,
	types.ReactionSurprising:   true,
	types.ReactionAlreadyKnew:  true,
	types.ReactionBadLink:      true,
	types.ReactionNotImportant: true,
}

// HandleReaction handles POST /v1/items/{id}/reactions: record feedback on an
// item and bump the topic's engagement counter when a topic is supplied.
func (h *Handlers) HandleReaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "item id is required")
		return
	}

	var req reactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reaction := types.Reaction(req.Reaction)
	if !validReactions[reaction] {
		writeError(w, http.StatusBadRequest, "unknown reaction")
		return
	}

	if err := h.store.AddReaction(r.Context(), id, reaction); err != nil {
		h.log.Error("reaction write failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reaction write failed")
		return
	}
	if req.Topic != "" {
		if err := h.store.BumpTopicEngagement(r.Context(), req.Topic, 1); err != nil {
			h.log.Warn("engagement bump failed", zap.String("topic", req.Topic), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "reaction": req.Reaction})
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
