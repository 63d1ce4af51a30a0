package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/alienxp03/botdebate/internal/debate"
)

// StreamEvent represents a server-sent event.
type StreamEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type streamMessage struct {
	Index   int    `json:"index"`
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

// handleDebateStream streams new turns of a live debate as Server-Sent
// Events until the debate stops or the client goes away.
func (h *Handler) handleDebateStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := h.manager.Snapshot(id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	h.logger.Debug("stream opened", zap.String("debate_id", id), zap.String("remote_addr", r.RemoteAddr))

	sent := h.sendNewMessages(w, flusher, snap, 0)
	if snap.Status.Terminal() {
		h.sendSSEEvent(w, flusher, "debate_complete", snap)
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := h.manager.Snapshot(id)
			if err != nil {
				h.sendSSEEvent(w, flusher, "error", map[string]string{"message": err.Error()})
				return
			}
			if snap.HistoryLen < sent {
				h.sendSSEEvent(w, flusher, "history_cleared", snap)
				sent = 0
			}
			sent = h.sendNewMessages(w, flusher, snap, sent)
			if snap.Status.Terminal() {
				h.sendSSEEvent(w, flusher, "debate_complete", snap)
				return
			}
		}
	}
}

// sendNewMessages emits the turns of snap past index sent and returns the
// new count. Turns that already left the snapshot tail are skipped.
func (h *Handler) sendNewMessages(w http.ResponseWriter, flusher http.Flusher, snap debate.Snapshot, sent int) int {
	base := snap.HistoryLen - len(snap.HistoryTail)
	for i := max(sent, base); i < snap.HistoryLen; i++ {
		m := snap.HistoryTail[i-base]
		h.sendSSEEvent(w, flusher, "turn", streamMessage{Index: i + 1, Speaker: m.Speaker, Content: m.Content})
	}
	return snap.HistoryLen
}

func (h *Handler) sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(StreamEvent{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error("failed to marshal stream event", zap.Error(err))
		return
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		h.logger.Debug("failed to write stream event", zap.Error(err))
		return
	}
	flusher.Flush()
}
