package app

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/astrolune/star/internal/core"
	"github.com/astrolune/star/internal/domain"
)

func rawOrEmpty(payload []byte) json.RawMessage {
	if len(payload) == 0 {
		return json.RawMessage("{}")
	}
	return json.RawMessage(payload)
}

// TarotEvent applies one tarot collaboration event. The session must
// be tarot-typed and the actor a participant; a type mismatch is a
// hard rejection with no mutation and no broadcast. Unknown event
// types are silently ignored so newer clients cannot break older
// servers. Broadcasts go to every participant, the actor included,
// and carry the entire updated spread for confirmation.
func (e *Engine) TarotEvent(ctx context.Context, sid domain.SessionID, uid domain.UserID, eventType string, payload []byte) bool {
	ev, ok := core.DecodeTarotEvent(eventType, payload)
	if !ok {
		return false
	}
	if ev == nil {
		log.Debug().Str("module", "app.tarot").Str("event_type", eventType).Msg("ignoring unknown tarot event")
		return true
	}

	var applied bool
	var spread map[string]any
	var doc []byte
	ok = e.store.Update(sid, func(s *domain.Session) {
		if s.Status.Terminal() || s.Type != domain.TypeTarotReading {
			return
		}
		p, isMember := s.Participants[uid]
		if !isMember {
			return
		}
		if s.TarotSpread == nil {
			s.TarotSpread = make(map[string]any)
		}
		now := time.Now().UTC()

		switch v := ev.(type) {
		case core.TarotCardDrawn:
			s.TarotSpread[v.Position] = map[string]any{
				"card":     v.Card,
				"drawn_by": string(uid),
				"drawn_at": now,
			}
		case core.TarotInterpretationAdded:
			cell, drawn := s.TarotSpread[v.Position].(map[string]any)
			if !drawn {
				// Interpretations attach to an already-drawn position.
				return
			}
			cell["interpretation"] = map[string]any{
				"text":     v.Text,
				"added_by": string(uid),
				"added_at": now,
			}
		case core.TarotSpreadCompleted:
			s.TarotSpread["completed"] = map[string]any{
				"completed_by": string(uid),
				"completed_at": now,
			}
		}
		p.Touch()
		applied = true
		spread = core.CopyDoc(s.TarotSpread)
		doc = snapshotJSON(s)
	})
	if !ok || !applied {
		return false
	}

	e.pub.Publish(sid, core.EventTarot, map[string]any{
		"event_type":   eventType,
		"user_id":      uid,
		"payload":      rawOrEmpty(payload),
		"tarot_spread": spread,
	}, "")
	e.persist(sid, doc)
	return true
}
