package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	ws "github.com/stemsi/exstem-assessment/internal/websocket"
)

// wsOpTimeout bounds one action; the connection itself may live much longer.
const wsOpTimeout = 10 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams answer autosaves and submission over a WebSocket. It
// drives the same attempt operations as the REST endpoints.
type WSHandler struct {
	attempts AttemptEngine
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attempts AttemptEngine, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attempts: attempts,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attempt_id/stream?token=...
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}
	userID := claims.UserID

	// Ownership and liveness are checked before the upgrade so a bad request
	// gets a plain HTTP error.
	view, err := h.attempts.Get(c.Request.Context(), userID, attemptID)
	if err != nil {
		failService(c, err)
		return
	}
	if view.Status != model.AttemptStatusInProgress {
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotActive)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", userID).
		Str("attempt_id", attemptID.String()).
		Logger()

	wsLog.Info().Msg("Learner connected")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, wsLog, userID, attemptID, &msg)
		case ws.ActionSubmit:
			if done := h.handleSubmit(conn, wsLog, userID, attemptID); done {
				return
			}
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
	}
}

func (h *WSHandler) handleAutosave(conn *websocket.Conn, wsLog zerolog.Logger, userID int, attemptID uuid.UUID, msg *ws.RequestPayload) {
	qID, err := uuid.Parse(msg.QID)
	if err != nil {
		ws.WriteError(conn, string(response.ErrInvalidID), "invalid q_id format")
		return
	}
	if len(msg.Answer) == 0 {
		ws.WriteError(conn, string(response.ErrValidation), "ans is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	if err := h.attempts.RecordAnswer(ctx, userID, attemptID, qID, msg.Answer); err != nil {
		h.writeServiceError(conn, wsLog, err)
		return
	}

	ws.WriteTyped(conn, ws.AutosaveResponse{Event: ws.EventSuccess, Status: "saved", QID: msg.QID})
}

// handleSubmit finalizes the attempt. It reports whether the stream is done.
func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, userID int, attemptID uuid.UUID) bool {
	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	view, err := h.attempts.Submit(ctx, userID, attemptID, nil)
	if err != nil {
		h.writeServiceError(conn, wsLog, err)
		return false
	}

	event := ws.EventGraded
	if view.Status != model.AttemptStatusGraded {
		event = ws.EventPending
	}
	wsLog.Info().Str("status", string(view.Status)).Msg("Attempt submitted over stream")
	ws.WriteTyped(conn, ws.ResultResponse{Event: event, Result: view})
	return true
}

func (h *WSHandler) writeServiceError(conn *websocket.Conn, wsLog zerolog.Logger, err error) {
	code := codeFor(err)
	if code == response.ErrInternal {
		wsLog.Error().Err(err).Msg("Stream action failed")
	}
	ws.WriteError(conn, string(code), response.GetMessage(code))
}
