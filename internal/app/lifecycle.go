package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/astrolune/star/internal/core"
	"github.com/astrolune/star/internal/domain"
)

// roomCodeAttempts bounds the collision retry loop so a pathological
// collision storm fails closed instead of spinning.
const roomCodeAttempts = 32

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var ErrRoomCodeExhausted = errors.New("room code space exhausted")

// CreateParams carries the caller-supplied part of a new session.
type CreateParams struct {
	Type            domain.SessionType
	Title           string
	Description     string
	MaxParticipants int
	IsPrivate       bool
	Password        string
}

// Create registers a new session with the creator as host. Public
// sessions get a short human-typeable room code, unique among all
// live public sessions; codes are free for reuse once their session
// ends.
func (e *Engine) Create(ctx context.Context, hostID domain.UserID, hostName, zodiac string, p CreateParams) (*SessionDetail, error) {
	s, err := domain.NewSession(p.Type, p.Title, p.Description, p.MaxParticipants, p.IsPrivate, p.Password)
	if err != nil {
		return nil, err
	}
	host, err := domain.NewParticipant(hostID, hostName, zodiac, domain.RoleHost)
	if err != nil {
		return nil, err
	}
	s.HostID = hostID
	s.Participants[hostID] = host

	d, doc, err := e.register(s)
	if err != nil {
		return nil, err
	}

	log.Info().Str("module", "app.lifecycle").
		Str("session", string(s.ID)).
		Str("type", string(s.Type)).
		Str("host", string(hostID)).
		Str("room_code", string(s.RoomCode)).
		Msg("session created")

	e.persist(s.ID, doc)
	return d, nil
}

// register assigns a room code to public sessions and inserts into
// the store; the store re-checks code uniqueness under its own lock,
// so a concurrent create that raced us to the same code surfaces as
// ErrRoomCodeTaken and we simply draw again. The detail view and
// archive snapshot are taken before Put: once the session is
// published, reading it outside its entry lock would race with
// concurrent joins.
func (e *Engine) register(s *domain.Session) (*SessionDetail, []byte, error) {
	if s.IsPrivate {
		d, doc := detail(s), snapshotJSON(s)
		if err := e.store.Put(s); err != nil {
			return nil, nil, err
		}
		return d, doc, nil
	}
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code, err := newRoomCode(domain.RoomCodeLen)
		if err != nil {
			return nil, nil, err
		}
		if e.store.RoomCodeInUse(code) {
			continue
		}
		s.RoomCode = code
		d, doc := detail(s), snapshotJSON(s)
		if err := e.store.Put(s); err != nil {
			if errors.Is(err, core.ErrRoomCodeTaken) {
				continue
			}
			return nil, nil, err
		}
		return d, doc, nil
	}
	return nil, nil, ErrRoomCodeExhausted
}

func newRoomCode(n int) (domain.RoomCode, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("room code: %w", err)
	}
	for i := range b {
		b[i] = roomCodeAlphabet[int(b[i])%len(roomCodeAlphabet)]
	}
	return domain.RoomCode(b), nil
}

// EndByHost terminates a session on behalf of its host; any other
// caller is rejected.
func (e *Engine) EndByHost(ctx context.Context, sid domain.SessionID, uid domain.UserID) bool {
	allowed := false
	ok := e.store.View(sid, func(s *domain.Session) {
		allowed = s.HostID == uid
	})
	if !ok || !allowed {
		return false
	}
	return e.finish(ctx, sid, domain.StatusCompleted)
}

// End terminates a session unconditionally (internal path, also used
// when the last participant leaves).
func (e *Engine) End(ctx context.Context, sid domain.SessionID) bool {
	return e.finish(ctx, sid, domain.StatusCompleted)
}

// finish stamps the terminal status, computes the archival summary
// and removes the session from the live store. Ending a session that
// never left waiting records a zero duration. Double-termination is
// a not-found no-op, so exactly one history row is written.
func (e *Engine) finish(ctx context.Context, sid domain.SessionID, final domain.SessionStatus) bool {
	var rec *domain.SessionRecord
	ok := e.store.Update(sid, func(s *domain.Session) {
		if s.Status.Terminal() {
			return
		}
		now := time.Now().UTC()
		s.Status = final
		s.EndedAt = now

		duration := 0
		if !s.StartedAt.IsZero() {
			duration = int(now.Sub(s.StartedAt).Minutes())
		}
		names := make([]string, 0, len(s.Participants))
		for _, p := range s.Participants {
			names = append(names, p.Username)
		}
		sort.Strings(names)

		rec = &domain.SessionRecord{
			SessionID:       s.ID,
			Type:            s.Type,
			Title:           s.Title,
			Status:          final,
			HostID:          s.HostID,
			ParticipantName: names,
			DurationMinutes: duration,
			TarotSpread:     s.TarotSpread,
			NumerologyData:  s.NumerologyData,
			CosmosState:     s.CosmosState,
			StartedAt:       s.StartedAt,
			EndedAt:         now,
		}
	})
	if !ok || rec == nil {
		return false
	}

	e.store.Remove(sid)
	log.Info().Str("module", "app.lifecycle").
		Str("session", string(sid)).
		Int("duration_min", rec.DurationMinutes).
		Msg("session ended")

	go func() {
		hctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := e.archive.SaveHistory(hctx, rec); err != nil {
			log.Error().Err(err).Str("module", "app.lifecycle").Str("session", string(sid)).Msg("history write failed")
		}
	}()
	return true
}

// SetPaused toggles a session between active and paused. Host only;
// the status never regresses to waiting and terminal states absorb.
func (e *Engine) SetPaused(ctx context.Context, sid domain.SessionID, uid domain.UserID, paused bool) bool {
	var changed bool
	var doc []byte
	ok := e.store.Update(sid, func(s *domain.Session) {
		if s.HostID != uid {
			return
		}
		switch {
		case paused && s.Status == domain.StatusActive:
			s.Status = domain.StatusPaused
		case !paused && s.Status == domain.StatusPaused:
			s.Status = domain.StatusActive
		default:
			return
		}
		changed = true
		doc = snapshotJSON(s)
	})
	if !ok || !changed {
		return false
	}
	e.persist(sid, doc)
	return true
}
