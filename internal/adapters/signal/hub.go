package signal

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/astrolune/star/internal/domain"
)

// memberSource answers "who is in session X right now". Satisfied by
// the core store; the hub never keeps its own membership copy.
type memberSource interface {
	ParticipantsOf(id domain.SessionID) []domain.UserID
}

// Hub tracks one connection per user and fans engine events out to
// the current participants of a session. It implements
// core.Publisher.
type Hub struct {
	members memberSource

	mu    sync.RWMutex
	conns map[domain.UserID]*Conn
}

func NewHub(members memberSource) *Hub {
	return &Hub{
		members: members,
		conns:   make(map[domain.UserID]*Conn),
	}
}

// Register binds a user to a connection, displacing any previous one.
func (h *Hub) Register(uid domain.UserID, c *Conn) {
	h.mu.Lock()
	old := h.conns[uid]
	h.conns[uid] = c
	h.mu.Unlock()
	if old != nil && old != c {
		old.Close()
	}
	log.Info().Str("module", "signal.hub").Str("user", string(uid)).Msg("connection registered")
}

// Unregister drops the binding if it still points at c and reports
// whether c was still the user's current connection. A displaced
// connection must not clean up session state for its successor.
func (h *Hub) Unregister(uid domain.UserID, c *Conn) bool {
	h.mu.Lock()
	current := h.conns[uid] == c
	if current {
		delete(h.conns, uid)
	}
	h.mu.Unlock()
	log.Info().Str("module", "signal.hub").Str("user", string(uid)).Bool("current", current).Msg("connection unregistered")
	return current
}

func (h *Hub) connOf(uid domain.UserID) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[uid]
	return c, ok
}

type envelope struct {
	Event     string           `json:"event"`
	SessionID domain.SessionID `json:"session_id"`
	Data      any              `json:"data"`
}

// Publish marshals once and fans out to every current participant of
// the session, optionally excluding the acting user. Slow clients
// drop the frame instead of blocking the engine.
func (h *Hub) Publish(sid domain.SessionID, event string, payload any, exclude domain.UserID) {
	data, err := json.Marshal(envelope{Event: event, SessionID: sid, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Str("event", event).Msg("marshal broadcast")
		return
	}

	sent, dropped := 0, 0
	for _, uid := range h.members.ParticipantsOf(sid) {
		if uid == exclude {
			continue
		}
		c, ok := h.connOf(uid)
		if !ok {
			continue
		}
		if err := c.TrySend(data); err != nil {
			dropped++
			continue
		}
		sent++
	}
	log.Debug().Str("module", "signal.hub").
		Str("session", string(sid)).
		Str("event", event).
		Int("sent_to", sent).
		Int("dropped", dropped).
		Msg("broadcast result")
}

// SendTo delivers a frame to a single user, if connected.
func (h *Hub) SendTo(uid domain.UserID, v any) {
	c, ok := h.connOf(uid)
	if !ok {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Msg("marshal direct send")
		return
	}
	_ = c.TrySend(data)
}
