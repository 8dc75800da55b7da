package core

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/astrolune/star/internal/domain"
)

var ErrRoomCodeTaken = errors.New("room code already in use")

// entry pairs a session with its exclusive lock. Every mutating
// operation runs under this lock for its full duration, so the
// capacity and single-host invariants hold under real concurrency.
type entry struct {
	mu   sync.Mutex
	s    *domain.Session
	gone bool
}

// Store is the authoritative in-memory registry of live sessions,
// plus a derived user -> session-ids index. The index is never a
// source of truth; it is pruned whenever membership changes and is
// used only for lookups such as disconnect cleanup.
type Store struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*entry
	byUser   map[domain.UserID]map[domain.SessionID]struct{}
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[domain.SessionID]*entry),
		byUser:   make(map[domain.UserID]map[domain.SessionID]struct{}),
	}
}

// Put inserts a session, enforcing room-code uniqueness among live
// non-private sessions. The creating host is indexed immediately.
func (st *Store) Put(s *domain.Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s.RoomCode != "" && st.codeInUseLocked(s.RoomCode) {
		return ErrRoomCodeTaken
	}
	st.sessions[s.ID] = &entry{s: s}
	for uid := range s.Participants {
		st.linkLocked(uid, s.ID)
	}
	log.Info().Str("module", "core.store").Str("session", string(s.ID)).Str("type", string(s.Type)).Msg("session registered")
	return nil
}

func (st *Store) codeInUseLocked(code domain.RoomCode) bool {
	for _, e := range st.sessions {
		// Room code assignment is immutable after Put, safe to read here.
		if !e.s.IsPrivate && e.s.RoomCode == code {
			return true
		}
	}
	return false
}

// RoomCodeInUse reports whether a code is held by any live public session.
func (st *Store) RoomCodeInUse(code domain.RoomCode) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.codeInUseLocked(code)
}

// ResolveRoomCode maps a room code to the live public session holding it.
func (st *Store) ResolveRoomCode(code domain.RoomCode) (domain.SessionID, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	for id, e := range st.sessions {
		if !e.s.IsPrivate && e.s.RoomCode == code {
			return id, true
		}
	}
	return "", false
}

func (st *Store) acquire(id domain.SessionID) (*entry, bool) {
	st.mu.RLock()
	e, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	if e.gone {
		e.mu.Unlock()
		return nil, false
	}
	return e, true
}

// Update runs fn under the session's exclusive lock.
// Returns false when the session does not exist.
func (st *Store) Update(id domain.SessionID, fn func(*domain.Session)) bool {
	e, ok := st.acquire(id)
	if !ok {
		return false
	}
	defer e.mu.Unlock()
	fn(e.s)
	return true
}

// View is Update for readers; fn must not mutate the session.
func (st *Store) View(id domain.SessionID, fn func(*domain.Session)) bool {
	return st.Update(id, fn)
}

// Remove deletes a session and prunes the user index for every
// participant that was still in it.
func (st *Store) Remove(id domain.SessionID) {
	st.mu.Lock()
	e, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
	}
	st.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	e.gone = true
	uids := make([]domain.UserID, 0, len(e.s.Participants))
	for uid := range e.s.Participants {
		uids = append(uids, uid)
	}
	e.mu.Unlock()

	st.mu.Lock()
	for _, uid := range uids {
		st.unlinkLocked(uid, id)
	}
	st.mu.Unlock()
	log.Info().Str("module", "core.store").Str("session", string(id)).Msg("session removed")
}

func (st *Store) linkLocked(uid domain.UserID, id domain.SessionID) {
	set, ok := st.byUser[uid]
	if !ok {
		set = make(map[domain.SessionID]struct{})
		st.byUser[uid] = set
	}
	set[id] = struct{}{}
}

func (st *Store) unlinkLocked(uid domain.UserID, id domain.SessionID) {
	if set, ok := st.byUser[uid]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(st.byUser, uid)
		}
	}
}

// Link records a user -> session membership in the derived index.
func (st *Store) Link(uid domain.UserID, id domain.SessionID) {
	st.mu.Lock()
	st.linkLocked(uid, id)
	st.mu.Unlock()
}

// Unlink prunes one membership from the derived index.
func (st *Store) Unlink(uid domain.UserID, id domain.SessionID) {
	st.mu.Lock()
	st.unlinkLocked(uid, id)
	st.mu.Unlock()
}

// SessionsOf returns the ids of every live session the user is in.
func (st *Store) SessionsOf(uid domain.UserID) []domain.SessionID {
	st.mu.RLock()
	defer st.mu.RUnlock()
	set := st.byUser[uid]
	out := make([]domain.SessionID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// ParticipantsOf returns the current member ids of a session.
// Used by the fan-out transport to pick broadcast recipients.
func (st *Store) ParticipantsOf(id domain.SessionID) []domain.UserID {
	e, ok := st.acquire(id)
	if !ok {
		return nil
	}
	defer e.mu.Unlock()
	out := make([]domain.UserID, 0, len(e.s.Participants))
	for uid := range e.s.Participants {
		out = append(out, uid)
	}
	return out
}

// ForEach visits every live session under its lock. Insertion order
// is not guaranteed. fn must not mutate.
func (st *Store) ForEach(fn func(*domain.Session)) {
	st.mu.RLock()
	entries := make([]*entry, 0, len(st.sessions))
	for _, e := range st.sessions {
		entries = append(entries, e)
	}
	st.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		if !e.gone {
			fn(e.s)
		}
		e.mu.Unlock()
	}
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
