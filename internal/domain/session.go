// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	MaxTitleLen        = 120
	DefaultMaxMembers  = 8
	RoomCodeLen        = 6
	MaxParticipantsCap = 64
)

var (
	ErrTitleEmpty     = errors.New("title empty")
	ErrTitleTooLong   = errors.New("title too long")
	ErrBadSessionType = errors.New("unknown session type")
	ErrBadCapacity    = errors.New("capacity out of range")
)

type (
	SessionID string
	RoomCode  string
)

// SessionType classifies what kind of collaboration runs in a session.
type SessionType string

const (
	TypeTarotReading      SessionType = "tarot_reading"
	TypeNumerologySession SessionType = "numerology_session"
	TypeCosmosExploration SessionType = "cosmos_exploration"
	TypeGroupMeditation   SessionType = "group_meditation"
	TypeZodiacCircle      SessionType = "zodiac_circle"
	TypeCosmicPlaylist    SessionType = "cosmic_playlist"
)

func (t SessionType) Valid() bool {
	switch t {
	case TypeTarotReading, TypeNumerologySession, TypeCosmosExploration,
		TypeGroupMeditation, TypeZodiacCircle, TypeCosmicPlaylist:
		return true
	}
	return false
}

// SessionStatus is a small monotone state machine:
// waiting -> active -> {paused, completed, cancelled}.
// paused is reachable from active only; completed/cancelled absorb.
type SessionStatus string

const (
	StatusWaiting   SessionStatus = "waiting"
	StatusActive    SessionStatus = "active"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// StateEntry is one last-write-wins cell of the generic shared state.
type StateEntry struct {
	Value     any       `json:"value"`
	UpdatedBy UserID    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CursorPosition is the latest known pointer of a participant.
// Best-effort channel, no history beyond the newest position.
type CursorPosition struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Element   string    `json:"element,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VoiceStatus mirrors the voice channel presence of a participant.
type VoiceStatus string

const (
	VoiceConnected    VoiceStatus = "connected"
	VoiceMuted        VoiceStatus = "muted"
	VoiceDisconnected VoiceStatus = "disconnected"
)

// Session is the central entity: one themed real-time collaboration
// with a bounded set of participants and shared mutable state.
// The core store exclusively owns Session objects; nothing outside
// the store may alias embedded Participants.
type Session struct {
	ID              SessionID               `json:"session_id"`
	RoomCode        RoomCode                `json:"room_code,omitempty"`
	Type            SessionType             `json:"session_type"`
	Status          SessionStatus           `json:"status"`
	Title           string                  `json:"title"`
	Description     string                  `json:"description,omitempty"`
	HostID          UserID                  `json:"host_id"`
	Participants    map[UserID]*Participant `json:"participants"`
	MaxParticipants int                     `json:"max_participants"`
	IsPrivate       bool                    `json:"is_private"`
	Password        string                  `json:"-"`

	SharedState map[string]StateEntry `json:"shared_state"`

	// Type-specific sub-documents; only the matching handler writes them.
	TarotSpread    map[string]any `json:"tarot_spread,omitempty"`
	NumerologyData map[string]any `json:"numerology_data,omitempty"`
	CosmosState    map[string]any `json:"cosmos_state,omitempty"`

	LiveCursors   map[UserID]CursorPosition `json:"live_cursors,omitempty"`
	VoiceChannels map[UserID]VoiceStatus    `json:"voice_channels,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	StartedAt time.Time `json:"started_at,omitzero"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

// NewSession avoids raw literals in the engine and keeps the
// default-empty-container initialization in one place.
func NewSession(typ SessionType, title, description string, max int, private bool, password string) (*Session, error) {
	if title == "" {
		return nil, ErrTitleEmpty
	}
	if len(title) > MaxTitleLen {
		return nil, ErrTitleTooLong
	}
	if !typ.Valid() {
		return nil, ErrBadSessionType
	}
	if max <= 0 {
		max = DefaultMaxMembers
	}
	if max > MaxParticipantsCap {
		return nil, ErrBadCapacity
	}
	return &Session{
		ID:              SessionID(uuid.NewString()),
		Type:            typ,
		Status:          StatusWaiting,
		Title:           title,
		Description:     description,
		Participants:    make(map[UserID]*Participant),
		MaxParticipants: max,
		IsPrivate:       private,
		Password:        password,
		SharedState:     make(map[string]StateEntry),
		LiveCursors:     make(map[UserID]CursorPosition),
		VoiceChannels:   make(map[UserID]VoiceStatus),
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// SessionRecord is the append-only history row written when a
// session ends. DurationMinutes is 0 for sessions that never left
// waiting.
type SessionRecord struct {
	SessionID       SessionID      `json:"session_id"`
	Type            SessionType    `json:"session_type"`
	Title           string         `json:"title"`
	Status          SessionStatus  `json:"status"`
	HostID          UserID         `json:"host_id"`
	ParticipantName []string       `json:"participants"`
	DurationMinutes int            `json:"duration_minutes"`
	TarotSpread     map[string]any `json:"tarot_spread,omitempty"`
	NumerologyData  map[string]any `json:"numerology_data,omitempty"`
	CosmosState     map[string]any `json:"cosmos_state,omitempty"`
	StartedAt       time.Time      `json:"started_at,omitzero"`
	EndedAt         time.Time      `json:"ended_at"`
}
