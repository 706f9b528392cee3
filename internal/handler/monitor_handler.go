package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/provalab/examguard-backend/internal/response"
	"github.com/provalab/examguard-backend/internal/service"
	ws "github.com/provalab/examguard-backend/internal/websocket"
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

// MonitorHandler streams live attempt events to proctor dashboards.
type MonitorHandler struct {
	monitorService *service.MonitorService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(monitorService *service.MonitorService, log zerolog.Logger, allowedOrigins []string) *MonitorHandler {
	return &MonitorHandler{
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionMonitorStream godoc
// WS /ws/v1/proctor/sessions/:session_id/monitor
// Sends the full session snapshot on connect, then relays live events
// from the session's pub/sub channel. The client may send pings.
func (h *MonitorHandler) SessionMonitorStream(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", sessionID.String()).Logger()

	state, err := h.monitorService.SessionState(c.Request.Context(), sessionID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Load session state failed")
		ws.SendError(conn, "failed to load session state")
		return
	}
	if err := ws.Send(conn, ws.StateResponse{Event: ws.EventState, Attempts: state}); err != nil {
		return
	}

	sub := h.monitorService.Subscribe(c.Request.Context(), sessionID)
	defer sub.Close()

	wsLog.Info().Msg("Proctor connected")

	// Reader goroutine: pings and close detection. Writes stay on this
	// goroutine; gorilla/websocket allows one concurrent writer only.
	pings := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg ws.RequestEnvelope
			if err := ws.Receive(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				} else {
					wsLog.Debug().Msg("Connection closed")
				}
				return
			}
			if msg.Action == ws.ActionPing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	events := sub.Channel()
	for {
		select {
		case <-done:
			return
		case <-pings:
			if err := ws.Send(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}
		case msg, ok := <-events:
			if !ok {
				return
			}
			var ev service.MonitorEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				wsLog.Warn().Err(err).Msg("Malformed monitor event")
				continue
			}
			if err := ws.Send(conn, ws.LiveResponse{Event: ws.EventLive, Payload: ev}); err != nil {
				return
			}
		}
	}
}
