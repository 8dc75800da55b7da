package core

import (
	"context"

	"github.com/astrolune/star/internal/domain"
)

// Event names fanned out to session participants.
const (
	EventUserJoined      = "user_joined"
	EventUserLeft        = "user_left"
	EventHostTransferred = "host_transferred"
	EventStateSync       = "state_synchronized"
	EventCursorUpdated   = "cursor_updated"
	EventTarot           = "tarot_event"
	EventNumerology      = "numerology_event"
	EventCosmos          = "cosmos_event"
	EventVoice           = "voice_event"
)

// Publisher abstracts the real-time fan-out transport.
// Owned by the adapter; the engine only names events and payloads.
// exclude == "" broadcasts to every current participant.
type Publisher interface {
	Publish(sid domain.SessionID, event string, payload any, exclude domain.UserID)
}

// Archive is the durable-storage collaborator. Live snapshots are
// upserted on every state-changing operation; history rows are
// append-only, one per ended session. In-memory state stays the
// source of truth: a failed write is logged, never rolled back.
type Archive interface {
	SaveSession(ctx context.Context, id domain.SessionID, doc []byte) error
	SaveHistory(ctx context.Context, rec *domain.SessionRecord) error
}

// ParticipantDTO is a read-only view for APIs (no secrets).
type ParticipantDTO struct {
	UserID     domain.UserID `json:"user_id"`
	Username   string        `json:"username"`
	ZodiacSign string        `json:"zodiac_sign,omitempty"`
	Role       domain.Role   `json:"role"`
	IsOnline   bool          `json:"is_online"`
}
