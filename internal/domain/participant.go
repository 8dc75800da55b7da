package domain

import (
	"errors"
	"time"
)

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36
)

var (
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUsernameTooLong = errors.New("username too long")
)

type UserID string

// Role of a participant within a session. Exactly one host exists
// per live session; observer and guide are tracked but not enforced
// as read-only by the core.
type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
	RoleObserver    Role = "observer"
	RoleGuide       Role = "guide"
)

// Participant is a membership record. It exists only while embedded
// in a Session's participant map.
type Participant struct {
	UserID          UserID          `json:"user_id"`
	Username        string          `json:"username"`
	ZodiacSign      string          `json:"zodiac_sign,omitempty"`
	Role            Role            `json:"role"`
	IsOnline        bool            `json:"is_online"`
	JoinedAt        time.Time       `json:"joined_at"`
	LastActivity    time.Time       `json:"last_activity"`
	CursorPosition  *CursorPosition `json:"cursor_position,omitempty"`
	SelectedElement string          `json:"selected_element,omitempty"`
}

// NewParticipant avoids ad-hoc struct literals in adapters and keeps
// construction obvious.
func NewParticipant(id UserID, username, zodiac string, role Role) (*Participant, error) {
	if username == "" {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	if role == "" {
		role = RoleParticipant
	}
	now := time.Now().UTC()
	return &Participant{
		UserID:       id,
		Username:     username,
		ZodiacSign:   zodiac,
		Role:         role,
		IsOnline:     true,
		JoinedAt:     now,
		LastActivity: now,
	}, nil
}

func (p *Participant) Touch() {
	p.LastActivity = time.Now().UTC()
}
