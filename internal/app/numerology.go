package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/astrolune/star/internal/core"
	"github.com/astrolune/star/internal/domain"
)

// NumerologyEvent applies one numerology collaboration event under
// the same contract as the tarot handler: hard rejection on session
// type mismatch, silent no-op on unknown event types, broadcast of
// the whole updated document to all participants.
func (e *Engine) NumerologyEvent(ctx context.Context, sid domain.SessionID, uid domain.UserID, eventType string, payload []byte) bool {
	ev, ok := core.DecodeNumerologyEvent(eventType, payload)
	if !ok {
		return false
	}
	if ev == nil {
		log.Debug().Str("module", "app.numerology").Str("event_type", eventType).Msg("ignoring unknown numerology event")
		return true
	}

	var applied bool
	var data map[string]any
	var doc []byte
	ok = e.store.Update(sid, func(s *domain.Session) {
		if s.Status.Terminal() || s.Type != domain.TypeNumerologySession {
			return
		}
		p, isMember := s.Participants[uid]
		if !isMember {
			return
		}
		if s.NumerologyData == nil {
			s.NumerologyData = make(map[string]any)
		}
		now := time.Now().UTC()

		switch v := ev.(type) {
		case core.NumerologyPersonalCalculation:
			personal, _ := s.NumerologyData["personal"].(map[string]any)
			if personal == nil {
				personal = make(map[string]any)
				s.NumerologyData["personal"] = personal
			}
			personal[string(uid)] = map[string]any{
				"profile":       v.Profile,
				"calculated_at": now,
			}
		case core.NumerologyGroupCompatibility:
			s.NumerologyData["group_compatibility"] = map[string]any{
				"compatibility": v.Compatibility,
				"computed_by":   string(uid),
				"computed_at":   now,
			}
		case core.NumerologyCosmicTiming:
			s.NumerologyData["cosmic_timing"] = map[string]any{
				"timing":      v.Timing,
				"computed_by": string(uid),
				"computed_at": now,
			}
		}
		p.Touch()
		applied = true
		data = core.CopyDoc(s.NumerologyData)
		doc = snapshotJSON(s)
	})
	if !ok || !applied {
		return false
	}

	e.pub.Publish(sid, core.EventNumerology, map[string]any{
		"event_type":      eventType,
		"user_id":         uid,
		"payload":         rawOrEmpty(payload),
		"numerology_data": data,
	}, "")
	e.persist(sid, doc)
	return true
}
