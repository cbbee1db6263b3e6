package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/confidohealth/voice-receptionist/internal/conversation"
	"github.com/confidohealth/voice-receptionist/pkg/logging"
)

// wsTurn is one frame in either direction on the voice socket. The client
// sends {"utterance": ...}; the server replies with the assistant text and
// state.
type wsTurn struct {
	SessionID  string              `json:"session_id,omitempty"`
	Utterance  string              `json:"utterance,omitempty"`
	Assistant  string              `json:"assistant,omitempty"`
	DebugState *conversation.State `json:"debug_state,omitempty"`
	Phase      conversation.Phase  `json:"phase,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// VoiceSocketHandler runs a whole call over one WebSocket. The session is
// pinned to the connection, so the client never resends the session id.
type VoiceSocketHandler struct {
	engine   *conversation.Engine
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewVoiceSocketHandler creates the WebSocket handler.
func NewVoiceSocketHandler(engine *conversation.Engine, logger *logging.Logger) *VoiceSocketHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &VoiceSocketHandler{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from the voice frontend's origin;
			// auth happens at the gateway, not here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// HandleVoice upgrades the connection and serves turns until the client
// disconnects.
// GET /ws/voice
func (h *VoiceSocketHandler) HandleVoice(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	h.logger.Info("voice socket opened", "session_id", sessionID)

	// Greeting turn: the assistant speaks first on a voice call.
	h.serveTurn(r, conn, sessionID, "")

	for {
		var frame wsTurn
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("voice socket read failed", "session_id", sessionID, "error", err)
			}
			h.logger.Info("voice socket closed", "session_id", sessionID)
			return
		}
		h.serveTurn(r, conn, sessionID, frame.Utterance)
	}
}

func (h *VoiceSocketHandler) serveTurn(r *http.Request, conn *websocket.Conn, sessionID, utterance string) {
	res, err := h.engine.ProcessTurn(r.Context(), sessionID, utterance)
	if err != nil {
		h.logger.Error("voice turn failed", "session_id", sessionID, "error", err)
		_ = conn.WriteJSON(wsTurn{
			SessionID: sessionID,
			Assistant: "I'm sorry, I'm having trouble right now. Could you repeat that?",
			Error:     "turn_failed",
		})
		return
	}

	state := res.State
	if err := conn.WriteJSON(wsTurn{
		SessionID:  res.SessionID,
		Assistant:  res.Reply,
		DebugState: &state,
		Phase:      res.Phase,
	}); err != nil {
		h.logger.Warn("voice socket write failed", "session_id", sessionID, "error", err)
	}
}
