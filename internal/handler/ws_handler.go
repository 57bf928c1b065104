package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/examdrill/internal/model"
	"github.com/stemsi/examdrill/internal/response"
	"github.com/stemsi/examdrill/internal/service"
	ws "github.com/stemsi/examdrill/internal/websocket"
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

// SessionFeed streams the updates of one session.
type SessionFeed interface {
	Watch(ctx context.Context, id string) (<-chan model.SessionUpdate, func(), error)
}

// WSHandler streams live session updates to other open devices.
type WSHandler struct {
	feed           SessionFeed
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. A nil feed disables the endpoint.
func NewWSHandler(feed SessionFeed, sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		feed:           feed,
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/session/:id
// Sends the current snapshot, then one event per mutation of the session.
func (h *WSHandler) SessionStream(c *gin.Context) {
	if h.feed == nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrLiveFeedDisabled)
		return
	}

	snap, err := h.sessionService.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		case errors.Is(err, service.ErrSessionIDRequired):
			response.Fail(c, http.StatusBadRequest, response.ErrSessionIDRequired)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	updates, stop, err := h.feed.Watch(ctx, snap.ID)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", snap.ID).Msg("Subscribe failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	defer stop()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", snap.ID).Logger()
	wsLog.Debug().Msg("Client connected")

	if err := ws.WriteTyped(conn, ws.SessionEvent{Event: ws.EventSnapshot, Session: snap, At: time.Now()}); err != nil {
		return
	}

	// The reader only signals; every write happens on this goroutine.
	pings := make(chan struct{}, 1)
	go h.readLoop(conn, wsLog, pings, cancel)

	ticker := time.NewTicker(ws.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				_ = ws.WriteError(conn, "live feed closed")
				return
			}
			err = ws.WriteTyped(conn, ws.SessionEvent{
				Event:   ws.EventUpdate,
				Action:  u.Action,
				Result:  u.Result,
				Session: u.Session,
				At:      u.At,
			})
		case <-pings:
			err = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		case <-ticker.C:
			err = ws.WritePing(conn)
		}
		if err != nil {
			wsLog.Debug().Err(err).Msg("Write failed, closing")
			return
		}
	}
}

func (h *WSHandler) readLoop(conn *websocket.Conn, wsLog zerolog.Logger, pings chan<- struct{}, cancel context.CancelFunc) {
	defer cancel()
	ws.Prepare(conn)

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			select {
			case pings <- struct{}{}:
			default:
			}
		default:
			wsLog.Debug().Str("action", string(msg.Action)).Msg("Ignoring unknown action")
		}
	}
}
