package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/astrolune/star/internal/core"
	"github.com/astrolune/star/internal/domain"
)

// JoinParams carries everything the auth layer resolves for a join.
type JoinParams struct {
	SessionID  domain.SessionID
	UserID     domain.UserID
	Username   string
	ZodiacSign string
	Password   string
	Role       domain.Role
}

// Join adds a user to a session. It fails (false) on not-found, a
// full session or a wrong password for a private one, and succeeds
// idempotently when the user is already a member. The second
// distinct participant flips the session waiting -> active.
func (e *Engine) Join(ctx context.Context, p JoinParams) bool {
	var joined, rejoined bool
	var count int
	var status domain.SessionStatus
	var doc []byte
	ok := e.store.Update(p.SessionID, func(s *domain.Session) {
		if s.Status.Terminal() {
			return
		}
		if existing, member := s.Participants[p.UserID]; member {
			existing.IsOnline = true
			existing.Touch()
			rejoined = true
			return
		}
		if len(s.Participants) >= s.MaxParticipants {
			log.Debug().Str("module", "app.membership").Str("session", string(p.SessionID)).Msg("join rejected: session full")
			return
		}
		if s.IsPrivate && s.Password != p.Password {
			log.Debug().Str("module", "app.membership").Str("session", string(p.SessionID)).Msg("join rejected: bad password")
			return
		}

		role := p.Role
		if role == "" || role == domain.RoleHost {
			// Exactly one host per session; host is assigned at
			// create time or by transfer, never by join.
			role = domain.RoleParticipant
		}
		part, err := domain.NewParticipant(p.UserID, p.Username, p.ZodiacSign, role)
		if err != nil {
			log.Warn().Err(err).Str("module", "app.membership").Str("session", string(p.SessionID)).Msg("join rejected")
			return
		}
		s.Participants[p.UserID] = part
		joined = true
		count = len(s.Participants)
		if count >= 2 && s.Status == domain.StatusWaiting {
			s.Status = domain.StatusActive
			s.StartedAt = time.Now().UTC()
		}
		status = s.Status
		doc = snapshotJSON(s)
	})
	if !ok {
		return false
	}
	if rejoined {
		return true
	}
	if !joined {
		return false
	}

	e.store.Link(p.UserID, p.SessionID)
	log.Info().Str("module", "app.membership").
		Str("session", string(p.SessionID)).
		Str("user", string(p.UserID)).
		Int("count", count).
		Msg("user joined")

	e.pub.Publish(p.SessionID, core.EventUserJoined, map[string]any{
		"user_id":           p.UserID,
		"username":          p.Username,
		"zodiac_sign":       p.ZodiacSign,
		"participant_count": count,
		"status":            status,
	}, "")
	e.persist(p.SessionID, doc)
	return true
}

// JoinByRoomCode resolves a room code to its live public session and
// joins it. The resolved id is returned so the caller can address
// the session afterwards.
func (e *Engine) JoinByRoomCode(ctx context.Context, code domain.RoomCode, p JoinParams) (domain.SessionID, bool) {
	sid, ok := e.store.ResolveRoomCode(code)
	if !ok {
		return "", false
	}
	p.SessionID = sid
	if !e.Join(ctx, p) {
		return "", false
	}
	return sid, true
}

// Leave removes a user from a session. A departing host hands the
// role to the earliest-joined remaining participant; the last
// departure terminates and archives the session.
func (e *Engine) Leave(ctx context.Context, sid domain.SessionID, uid domain.UserID) bool {
	var left, empty bool
	var count int
	var username, hostName string
	var newHost domain.UserID
	var doc []byte
	ok := e.store.Update(sid, func(s *domain.Session) {
		if s.Status.Terminal() {
			return
		}
		p, member := s.Participants[uid]
		if !member {
			return
		}
		username = p.Username
		delete(s.Participants, uid)
		delete(s.LiveCursors, uid)
		delete(s.VoiceChannels, uid)
		left = true
		count = len(s.Participants)
		if count == 0 {
			empty = true
			return
		}
		if s.HostID == uid {
			succ := earliestJoined(s.Participants)
			succ.Role = domain.RoleHost
			s.HostID = succ.UserID
			newHost = succ.UserID
			hostName = succ.Username
		}
		doc = snapshotJSON(s)
	})
	if !ok || !left {
		return false
	}

	e.store.Unlink(uid, sid)
	log.Info().Str("module", "app.membership").
		Str("session", string(sid)).
		Str("user", string(uid)).
		Int("count", count).
		Msg("user left")

	// Departure is announced even for the last member; the fan-out
	// reaches nobody then, but the event stream stays uniform.
	e.pub.Publish(sid, core.EventUserLeft, map[string]any{
		"user_id":           uid,
		"username":          username,
		"participant_count": count,
	}, "")
	if empty {
		return e.finish(ctx, sid, domain.StatusCompleted)
	}

	if newHost != "" {
		e.pub.Publish(sid, core.EventHostTransferred, map[string]any{
			"new_host_id":   newHost,
			"new_host_name": hostName,
		}, "")
	}
	e.persist(sid, doc)
	return true
}

// earliestJoined picks the deterministic host successor: oldest
// JoinedAt, ties broken by user id.
func earliestJoined(parts map[domain.UserID]*domain.Participant) *domain.Participant {
	var succ *domain.Participant
	for _, p := range parts {
		if succ == nil {
			succ = p
			continue
		}
		if p.JoinedAt.Before(succ.JoinedAt) ||
			(p.JoinedAt.Equal(succ.JoinedAt) && p.UserID < succ.UserID) {
			succ = p
		}
	}
	return succ
}

// DropUser removes a user from every session they are in. Called on
// transport disconnect; the user index makes the lookup cheap.
func (e *Engine) DropUser(ctx context.Context, uid domain.UserID) {
	for _, sid := range e.store.SessionsOf(uid) {
		e.Leave(ctx, sid, uid)
	}
}
