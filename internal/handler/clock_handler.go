package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/civitest/civitest-backend/internal/middleware"
	"github.com/civitest/civitest-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
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

// clockTick is one frame of the countdown stream. The client renders this
// instead of its own clock, so local clock drift never matters.
type clockTick struct {
	SessionID   string `json:"session_id"`
	Status      string `json:"status"`
	RemainingMs int64  `json:"remaining_ms"`
}

// ClockHandler streams the server-authoritative countdown over WebSocket.
type ClockHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewClockHandler creates a new ClockHandler.
func NewClockHandler(sessions *service.SessionService, log zerolog.Logger, allowedOrigins []string) *ClockHandler {
	return &ClockHandler{
		sessions: sessions,
		log:      log.With().Str("component", "clock_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionClockStream godoc
// WS /ws/v1/sessions/:session_id/clock
// Pushes the remaining time once per second. Closes after the first frame
// that carries a terminal status.
func (h *ClockHandler) SessionClockStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	// Ownership is checked before the upgrade so an IDOR attempt gets a
	// plain HTTP error, not a dangling socket.
	if _, err := h.sessions.GetSession(c.Request.Context(), sessionID, claims.UserID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", claims.UserID).
		Str("session_id", sessionID.String()).
		Logger()
	wsLog.Debug().Msg("clock stream opened")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		state, err := h.sessions.GetState(ctx, sessionID, claims.UserID)
		if err != nil {
			wsLog.Warn().Err(err).Msg("clock stream state read failed")
			return
		}

		tick := clockTick{
			SessionID:   sessionID.String(),
			Status:      string(state.Status),
			RemainingMs: state.RemainingMs,
		}
		if err := conn.WriteJSON(tick); err != nil {
			wsLog.Debug().Err(err).Msg("clock stream client gone")
			return
		}

		if state.Status.Terminal() {
			wsLog.Debug().Msg("clock stream closed on terminal status")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
