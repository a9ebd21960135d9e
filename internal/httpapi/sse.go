package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/MimeLyc/ygo-judge/internal/agent"
	"github.com/MimeLyc/ygo-judge/internal/cards"
	"github.com/MimeLyc/ygo-judge/pkg/log"
)

const maxInquiryBody = 1 << 20

type inquiryRequest struct {
	Question string       `json:"question"`
	Cards    []cards.Card `json:"cards"`
}

type streamMessage struct {
	Type      string            `json:"type"`
	InquiryID string            `json:"inquiry_id,omitempty"`
	Data      *agent.TurnResult `json:"data,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// handleInquiry runs one inquiry and streams every TurnResult as an
// agent_response event. A client disconnect cancels the request context,
// which abandons the inquiry.
func (s *Server) handleInquiry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req inquiryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInquiryBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	for _, c := range req.Cards {
		if strings.TrimSpace(c.Name) == "" {
			writeError(w, http.StatusBadRequest, "every card needs a name")
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	id, events := s.judge.Ask(r.Context(), agent.Inquiry{Question: req.Question, Cards: req.Cards})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Inquiry-ID", id)
	w.WriteHeader(http.StatusOK)

	send := func(event string, msg streamMessage) bool {
		payload, err := json.Marshal(msg)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for ev := range events {
		if ev.Err != nil {
			log.Error("Inquiry %s failed: %v", id, ev.Err)
			if !send("error", streamMessage{Type: "error", InquiryID: id, Error: ev.Err.Error()}) {
				return
			}
			continue
		}
		if !send("agent_response", streamMessage{Type: "agent_response", Data: ev.Result}) {
			return
		}
	}
	if r.Context().Err() != nil {
		return
	}
	send("done", streamMessage{Type: "done", InquiryID: id})
}
