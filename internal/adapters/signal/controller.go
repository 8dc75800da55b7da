package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/astrolune/star/internal/app"
	"github.com/astrolune/star/internal/domain"
)

// Cursor frames per user per second before the limiter drops them.
const cursorRateLimit = 30

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller accepts WebSocket clients and dispatches their JSON
// envelopes to the engine. The same operations exist over REST; the
// socket path is for the high-frequency ones.
type Controller struct {
	engine     *app.Engine
	hub        *Hub
	cursors    *CursorRateLimiter
	readLimit  int64
	pingPeriod time.Duration
}

func NewController(engine *app.Engine, hub *Hub, readLimit int64, pingPeriod time.Duration) *Controller {
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	return &Controller{
		engine:     engine,
		hub:        hub,
		cursors:    NewCursorRateLimiter(cursorRateLimit, time.Second),
		readLimit:  readLimit,
		pingPeriod: pingPeriod,
	}
}

func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	uid := domain.UserID(c.GetString("client_token"))
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing client token"})
		return
	}
	log.Info().Str("module", "signal").Str("user", string(uid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}

	conn := NewConn(ws)
	ctl.hub.Register(uid, conn)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		conn.writePump(ctx, ctl.pingPeriod)
		cancel()
	}()
	go ctl.readPump(ctx, cancel, uid, conn)
}

// readPump reads envelopes until the peer goes away, then cleans up:
// the user is dropped from every session they were in, exactly as if
// they had left each one. A connection displaced by a reconnect skips
// the session cleanup; the new connection owns the user now.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, uid domain.UserID, conn *Conn) {
	defer func() {
		cancel()
		current := ctl.hub.Unregister(uid, conn)
		conn.Close()
		if !current {
			log.Info().Str("module", "signal").Str("user", string(uid)).Msg("stale connection closed")
			return
		}
		log.Info().Str("module", "signal").Str("user", string(uid)).Msg("readPump closing")
		ctl.cursors.Forget(uid)
		ctl.engine.DropUser(context.Background(), uid)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := conn.ws.ReadMessage()
			if err != nil {
				return
			}
			ctl.handleFrame(ctx, uid, conn, data)
		}
	}
}

func (ctl *Controller) handleFrame(ctx context.Context, uid domain.UserID, conn *Conn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(conn, "bad_payload")
		return
	}

	switch env.Type {
	case "ping":
		ctl.sendJSON(conn, gin.H{"type": "pong"})
	case "sync_state":
		ctl.handleSyncState(ctx, uid, conn, data)
	case "cursor_move":
		ctl.handleCursorMove(ctx, uid, conn, data)
	case "tarot_event":
		ctl.handleDomainEvent(ctx, uid, conn, data, ctl.engine.TarotEvent)
	case "numerology_event":
		ctl.handleDomainEvent(ctx, uid, conn, data, ctl.engine.NumerologyEvent)
	case "cosmos_event":
		ctl.handleDomainEvent(ctx, uid, conn, data, ctl.engine.CosmosEvent)
	case "voice":
		ctl.handleVoice(ctx, uid, conn, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown frame type")
	}
}

func (ctl *Controller) handleSyncState(ctx context.Context, uid domain.UserID, conn *Conn, data []byte) {
	var p struct {
		Type      string           `json:"type"`
		SessionID domain.SessionID `json:"session_id"`
		Updates   map[string]any   `json:"updates"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if !ctl.engine.SyncState(ctx, p.SessionID, uid, p.Updates) {
		ctl.sendError(conn, "sync_rejected")
	}
}

func (ctl *Controller) handleCursorMove(ctx context.Context, uid domain.UserID, conn *Conn, data []byte) {
	if !ctl.cursors.Allow(uid) {
		// Best-effort channel, drop silently.
		return
	}
	var p struct {
		Type      string           `json:"type"`
		SessionID domain.SessionID `json:"session_id"`
		Position  app.CursorInput  `json:"position"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		ctl.sendError(conn, "bad_payload")
		return
	}
	ctl.engine.UpdateCursor(ctx, p.SessionID, uid, p.Position)
}

func (ctl *Controller) handleDomainEvent(
	ctx context.Context,
	uid domain.UserID,
	conn *Conn,
	data []byte,
	apply func(context.Context, domain.SessionID, domain.UserID, string, []byte) bool,
) {
	var p struct {
		Type      string           `json:"type"`
		SessionID domain.SessionID `json:"session_id"`
		EventType string           `json:"event_type"`
		Payload   json.RawMessage  `json:"payload"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" || p.EventType == "" {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if !apply(ctx, p.SessionID, uid, p.EventType, p.Payload) {
		ctl.sendError(conn, "event_rejected")
	}
}

func (ctl *Controller) handleVoice(ctx context.Context, uid domain.UserID, conn *Conn, data []byte) {
	var p struct {
		Type      string             `json:"type"`
		SessionID domain.SessionID   `json:"session_id"`
		Status    domain.VoiceStatus `json:"status"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if !ctl.engine.UpdateVoice(ctx, p.SessionID, uid, p.Status) {
		ctl.sendError(conn, "voice_rejected")
	}
}

func (ctl *Controller) sendJSON(c *Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *Conn, reason string) {
	ctl.sendJSON(c, gin.H{"type": "error", "error": reason})
}
