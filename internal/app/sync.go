package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/astrolune/star/internal/core"
	"github.com/astrolune/star/internal/domain"
)

// SyncState applies a generic key/value update batch to the shared
// state, last-write-wins per key. The full updated state plus the
// delta is broadcast to every other participant; the actor already
// has the change locally. An empty batch is a complete no-op.
func (e *Engine) SyncState(ctx context.Context, sid domain.SessionID, uid domain.UserID, updates map[string]any) bool {
	var member bool
	var full, delta map[string]domain.StateEntry
	var doc []byte
	ok := e.store.Update(sid, func(s *domain.Session) {
		if s.Status.Terminal() {
			return
		}
		p, isMember := s.Participants[uid]
		if !isMember {
			return
		}
		member = true
		p.Touch()
		if len(updates) == 0 {
			return
		}

		now := time.Now().UTC()
		delta = make(map[string]domain.StateEntry, len(updates))
		for k, v := range updates {
			entry := domain.StateEntry{Value: v, UpdatedBy: uid, UpdatedAt: now}
			s.SharedState[k] = entry
			delta[k] = entry
		}
		full = make(map[string]domain.StateEntry, len(s.SharedState))
		for k, v := range s.SharedState {
			full[k] = v
		}
		doc = snapshotJSON(s)
	})
	if !ok || !member {
		return false
	}
	if len(delta) == 0 {
		return true
	}

	log.Debug().Str("module", "app.sync").
		Str("session", string(sid)).
		Str("user", string(uid)).
		Int("keys", len(delta)).
		Msg("state synchronized")

	e.pub.Publish(sid, core.EventStateSync, map[string]any{
		"user_id":      uid,
		"updates":      delta,
		"shared_state": full,
	}, uid)
	e.persist(sid, doc)
	return true
}

// CursorInput is one pointer sample from a client.
type CursorInput struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Element string  `json:"element,omitempty"`
}

// UpdateCursor overwrites the user's live cursor and fans it out to
// the other participants. High-frequency and best-effort: only the
// latest position is kept and nothing is persisted.
func (e *Engine) UpdateCursor(ctx context.Context, sid domain.SessionID, uid domain.UserID, in CursorInput) bool {
	var member bool
	cursor := domain.CursorPosition{X: in.X, Y: in.Y, Element: in.Element, UpdatedAt: time.Now().UTC()}
	ok := e.store.Update(sid, func(s *domain.Session) {
		if s.Status.Terminal() {
			return
		}
		p, isMember := s.Participants[uid]
		if !isMember {
			return
		}
		member = true
		s.LiveCursors[uid] = cursor
		p.CursorPosition = &cursor
		p.SelectedElement = in.Element
		p.Touch()
	})
	if !ok || !member {
		return false
	}

	e.pub.Publish(sid, core.EventCursorUpdated, map[string]any{
		"user_id":  uid,
		"position": cursor,
	}, uid)
	return true
}

// UpdateVoice records a participant's voice-channel presence and
// notifies the whole session. Disconnecting clears the entry.
func (e *Engine) UpdateVoice(ctx context.Context, sid domain.SessionID, uid domain.UserID, status domain.VoiceStatus) bool {
	switch status {
	case domain.VoiceConnected, domain.VoiceMuted, domain.VoiceDisconnected:
	default:
		return false
	}
	var member bool
	var doc []byte
	ok := e.store.Update(sid, func(s *domain.Session) {
		if s.Status.Terminal() {
			return
		}
		p, isMember := s.Participants[uid]
		if !isMember {
			return
		}
		member = true
		if status == domain.VoiceDisconnected {
			delete(s.VoiceChannels, uid)
		} else {
			s.VoiceChannels[uid] = status
		}
		p.Touch()
		doc = snapshotJSON(s)
	})
	if !ok || !member {
		return false
	}

	e.pub.Publish(sid, core.EventVoice, map[string]any{
		"user_id": uid,
		"status":  status,
	}, "")
	e.persist(sid, doc)
	return true
}
