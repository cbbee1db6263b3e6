package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/confidohealth/voice-receptionist/internal/conversation"
	"github.com/confidohealth/voice-receptionist/pkg/logging"
)

// TurnRequest is one caller utterance. A missing session_id starts a new
// session.
type TurnRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Utterance string `json:"utterance"`
}

// TurnResponse mirrors conversation.TurnResult on the wire.
type TurnResponse struct {
	SessionID  string             `json:"session_id"`
	Assistant  string             `json:"assistant"`
	DebugState conversation.State `json:"debug_state"`
	Phase      conversation.Phase `json:"phase"`
}

// ConversationHandler serves the dialogue turn endpoints.
type ConversationHandler struct {
	engine      *conversation.Engine
	transcripts *conversation.TranscriptStore
	logger      *logging.Logger
}

// NewConversationHandler creates the handler.
func NewConversationHandler(engine *conversation.Engine, transcripts *conversation.TranscriptStore, logger *logging.Logger) *ConversationHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ConversationHandler{
		engine:      engine,
		transcripts: transcripts,
		logger:      logger,
	}
}

// HandleTurn processes one utterance.
// POST /api/v1/conversation/turn
func (h *ConversationHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	res, err := h.engine.ProcessTurn(r.Context(), sessionID, req.Utterance)
	if err != nil {
		h.writeTurnError(w, sessionID, err)
		return
	}

	writeJSON(w, http.StatusOK, TurnResponse{
		SessionID:  res.SessionID,
		Assistant:  res.Reply,
		DebugState: res.State,
		Phase:      res.Phase,
	}, h.logger)
}

// writeTurnError maps the turn failure taxonomy to spoken apologies. The
// caller hears a generic sentence; the underlying error stays in the logs.
func (h *ConversationHandler) writeTurnError(w http.ResponseWriter, sessionID string, err error) {
	h.logger.Error("turn failed", "session_id", sessionID, "error", err)

	apology := "I'm sorry, I'm having trouble right now. Could you repeat that?"
	switch {
	case errors.Is(err, conversation.ErrAvailability), errors.Is(err, conversation.ErrBooking):
		apology = "I'm sorry, I'm having a problem with our scheduling system right now. Could you try again in a moment?"
	case errors.Is(err, conversation.ErrInsurance):
		apology = "I'm sorry, I couldn't reach our insurance system just now. Could you try again in a moment?"
	}

	writeJSON(w, http.StatusBadGateway, map[string]string{
		"session_id": sessionID,
		"assistant":  apology,
		"error":      "turn_failed",
	}, h.logger)
}

// HandleTranscript returns the mirrored transcript for one session.
// GET /admin/conversations/{sessionID}/transcript
func (h *ConversationHandler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, `{"error": "session_id required"}`, http.StatusBadRequest)
		return
	}
	if h.transcripts == nil {
		http.Error(w, `{"error": "transcript mirror not configured"}`, http.StatusNotImplemented)
		return
	}

	limit := int64(0)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			http.Error(w, `{"error": "invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	messages, err := h.transcripts.History(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("transcript fetch failed", "session_id", sessionID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []conversation.TranscriptMessage{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"messages":   messages,
	}, h.logger)
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *logging.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
