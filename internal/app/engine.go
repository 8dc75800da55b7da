// Package app wires the collaboration engine: lifecycle, membership,
// shared-state sync and the per-domain event handlers. Every mutation
// runs under the session's exclusive lock inside a store closure;
// broadcasts go out after the mutation completes, and durable writes
// happen on a detached goroutine so a slow or failing archive never
// blocks or rolls back the in-memory state.
package app

import (
	"context"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/astrolune/star/internal/core"
	"github.com/astrolune/star/internal/domain"
)

const persistTimeout = 5 * time.Second

type Engine struct {
	store   *core.Store
	pub     core.Publisher
	archive core.Archive
}

func NewEngine(store *core.Store, pub core.Publisher, archive core.Archive) *Engine {
	return &Engine{store: store, pub: pub, archive: archive}
}

// Store exposes the session registry for adapters that need
// read-only membership lookups (the fan-out hub).
func (e *Engine) Store() *core.Store { return e.store }

// snapshotJSON serializes a session while its lock is held, so the
// archived document is internally consistent.
func snapshotJSON(s *domain.Session) []byte {
	raw, err := json.Marshal(s)
	if err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("session", string(s.ID)).Msg("snapshot marshal failed")
		return nil
	}
	return raw
}

// persist upserts the live snapshot off the request path. Failures
// are logged and swallowed: the in-memory session stays the source
// of truth for its lifetime, the archive is a shadow copy.
func (e *Engine) persist(id domain.SessionID, doc []byte) {
	if doc == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := e.archive.SaveSession(ctx, id, doc); err != nil {
			log.Error().Err(err).Str("module", "app.engine").Str("session", string(id)).Msg("session snapshot write failed")
		}
	}()
}

// SessionSummary is the list-view projection of a session.
type SessionSummary struct {
	ID               domain.SessionID     `json:"session_id"`
	RoomCode         domain.RoomCode      `json:"room_code,omitempty"`
	Type             domain.SessionType   `json:"session_type"`
	Status           domain.SessionStatus `json:"status"`
	Title            string               `json:"title"`
	HostID           domain.UserID        `json:"host_id"`
	ParticipantCount int                  `json:"participant_count"`
	MaxParticipants  int                  `json:"max_participants"`
	IsPrivate        bool                 `json:"is_private"`
	CreatedAt        time.Time            `json:"created_at"`
}

// SessionDetail is the full read view handed to participants.
type SessionDetail struct {
	SessionSummary
	Description    string                                  `json:"description,omitempty"`
	Participants   []core.ParticipantDTO                   `json:"participants"`
	SharedState    map[string]domain.StateEntry            `json:"shared_state"`
	TarotSpread    map[string]any                          `json:"tarot_spread,omitempty"`
	NumerologyData map[string]any                          `json:"numerology_data,omitempty"`
	CosmosState    map[string]any                          `json:"cosmos_state,omitempty"`
	LiveCursors    map[domain.UserID]domain.CursorPosition `json:"live_cursors,omitempty"`
	VoiceChannels  map[domain.UserID]domain.VoiceStatus    `json:"voice_channels,omitempty"`
	StartedAt      time.Time                               `json:"started_at,omitzero"`
}

func summarize(s *domain.Session) SessionSummary {
	code := s.RoomCode
	if s.IsPrivate {
		code = ""
	}
	return SessionSummary{
		ID:               s.ID,
		RoomCode:         code,
		Type:             s.Type,
		Status:           s.Status,
		Title:            s.Title,
		HostID:           s.HostID,
		ParticipantCount: len(s.Participants),
		MaxParticipants:  s.MaxParticipants,
		IsPrivate:        s.IsPrivate,
		CreatedAt:        s.CreatedAt,
	}
}

func detail(s *domain.Session) *SessionDetail {
	parts := make([]core.ParticipantDTO, 0, len(s.Participants))
	for _, p := range s.Participants {
		parts = append(parts, core.ParticipantDTO{
			UserID:     p.UserID,
			Username:   p.Username,
			ZodiacSign: p.ZodiacSign,
			Role:       p.Role,
			IsOnline:   p.IsOnline,
		})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].UserID < parts[j].UserID })

	state := make(map[string]domain.StateEntry, len(s.SharedState))
	for k, v := range s.SharedState {
		state[k] = v
	}
	cursors := make(map[domain.UserID]domain.CursorPosition, len(s.LiveCursors))
	for k, v := range s.LiveCursors {
		cursors[k] = v
	}
	voice := make(map[domain.UserID]domain.VoiceStatus, len(s.VoiceChannels))
	for k, v := range s.VoiceChannels {
		voice[k] = v
	}

	return &SessionDetail{
		SessionSummary: summarize(s),
		Description:    s.Description,
		Participants:   parts,
		SharedState:    state,
		TarotSpread:    core.CopyDoc(s.TarotSpread),
		NumerologyData: core.CopyDoc(s.NumerologyData),
		CosmosState:    core.CopyDoc(s.CosmosState),
		LiveCursors:    cursors,
		VoiceChannels:  voice,
		StartedAt:      s.StartedAt,
	}
}

// Get returns full session detail when the session is public or the
// caller is a participant; otherwise access is denied.
func (e *Engine) Get(sid domain.SessionID, uid domain.UserID) (*SessionDetail, bool) {
	var d *SessionDetail
	ok := e.store.View(sid, func(s *domain.Session) {
		if s.IsPrivate {
			if _, member := s.Participants[uid]; !member {
				return
			}
		}
		d = detail(s)
	})
	if !ok || d == nil {
		return nil, false
	}
	return d, true
}

// List returns summaries of all live sessions, or only the caller's
// own memberships when showAll is false.
func (e *Engine) List(uid domain.UserID, showAll bool) []SessionSummary {
	out := make([]SessionSummary, 0)
	e.store.ForEach(func(s *domain.Session) {
		if !showAll {
			if _, member := s.Participants[uid]; !member {
				return
			}
		}
		out = append(out, summarize(s))
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
