package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/astrolune/star/internal/core"
	"github.com/astrolune/star/internal/domain"
)

// CosmosEvent applies one cosmos-exploration collaboration event:
// avatar positions per user, shared objects under fresh ids, and a
// single current-environment record. Same contract shape as the
// tarot and numerology handlers.
func (e *Engine) CosmosEvent(ctx context.Context, sid domain.SessionID, uid domain.UserID, eventType string, payload []byte) bool {
	ev, ok := core.DecodeCosmosEvent(eventType, payload)
	if !ok {
		return false
	}
	if ev == nil {
		log.Debug().Str("module", "app.cosmos").Str("event_type", eventType).Msg("ignoring unknown cosmos event")
		return true
	}

	var applied bool
	var objectID string
	var state map[string]any
	var doc []byte
	ok = e.store.Update(sid, func(s *domain.Session) {
		if s.Status.Terminal() || s.Type != domain.TypeCosmosExploration {
			return
		}
		p, isMember := s.Participants[uid]
		if !isMember {
			return
		}
		if s.CosmosState == nil {
			s.CosmosState = make(map[string]any)
		}
		now := time.Now().UTC()

		switch v := ev.(type) {
		case core.CosmosAvatarMovement:
			avatars, _ := s.CosmosState["avatars"].(map[string]any)
			if avatars == nil {
				avatars = make(map[string]any)
				s.CosmosState["avatars"] = avatars
			}
			avatars[string(uid)] = map[string]any{
				"position":   v.Position,
				"rotation":   v.Rotation,
				"updated_at": now,
			}
		case core.CosmosObjectCreation:
			objects, _ := s.CosmosState["objects"].(map[string]any)
			if objects == nil {
				objects = make(map[string]any)
				s.CosmosState["objects"] = objects
			}
			objectID = uuid.NewString()
			objects[objectID] = map[string]any{
				"object":     v.Object,
				"created_by": string(uid),
				"created_at": now,
			}
		case core.CosmosEnvironmentChange:
			s.CosmosState["environment"] = map[string]any{
				"environment": v.Environment,
				"changed_by":  string(uid),
				"changed_at":  now,
			}
		}
		p.Touch()
		applied = true
		state = core.CopyDoc(s.CosmosState)
		doc = snapshotJSON(s)
	})
	if !ok || !applied {
		return false
	}

	out := map[string]any{
		"event_type":   eventType,
		"user_id":      uid,
		"payload":      rawOrEmpty(payload),
		"cosmos_state": state,
	}
	if objectID != "" {
		out["object_id"] = objectID
	}
	e.pub.Publish(sid, core.EventCosmos, out, "")
	e.persist(sid, doc)
	return true
}
