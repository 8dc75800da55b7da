package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrolune/star/internal/domain"
)

func newSession(t *testing.T, typ domain.SessionType, host domain.UserID) *domain.Session {
	t.Helper()
	s, err := domain.NewSession(typ, "test session", "", 0, false, "")
	require.NoError(t, err)
	p, err := domain.NewParticipant(host, "user-"+string(host), "", domain.RoleHost)
	require.NoError(t, err)
	s.HostID = host
	s.Participants[host] = p
	return s
}

func TestPutIndexesParticipants(t *testing.T) {
	st := NewStore()
	s := newSession(t, domain.TypeZodiacCircle, "u1")

	require.NoError(t, st.Put(s))
	assert.Equal(t, 1, st.Len())
	assert.Equal(t, []domain.SessionID{s.ID}, st.SessionsOf("u1"))
	assert.Equal(t, []domain.UserID{"u1"}, st.ParticipantsOf(s.ID))
}

func TestPutRejectsDuplicateRoomCode(t *testing.T) {
	st := NewStore()
	a := newSession(t, domain.TypeZodiacCircle, "u1")
	a.RoomCode = "ABC123"
	require.NoError(t, st.Put(a))

	b := newSession(t, domain.TypeZodiacCircle, "u2")
	b.RoomCode = "ABC123"
	assert.ErrorIs(t, st.Put(b), ErrRoomCodeTaken)

	// Private sessions are outside the room-code namespace entirely.
	c := newSession(t, domain.TypeZodiacCircle, "u3")
	c.RoomCode = "ABC123"
	c.IsPrivate = true
	assert.NoError(t, st.Put(c))
}

func TestResolveRoomCode(t *testing.T) {
	st := NewStore()
	s := newSession(t, domain.TypeZodiacCircle, "u1")
	s.RoomCode = "XY99ZZ"
	require.NoError(t, st.Put(s))

	id, ok := st.ResolveRoomCode("XY99ZZ")
	require.True(t, ok)
	assert.Equal(t, s.ID, id)
	assert.True(t, st.RoomCodeInUse("XY99ZZ"))

	_, ok = st.ResolveRoomCode("NOPE00")
	assert.False(t, ok)

	st.Remove(s.ID)
	assert.False(t, st.RoomCodeInUse("XY99ZZ"))
}

func TestUpdateMissingSession(t *testing.T) {
	st := NewStore()
	called := false
	ok := st.Update("nope", func(*domain.Session) { called = true })
	assert.False(t, ok)
	assert.False(t, called)
}

func TestRemovePrunesUserIndex(t *testing.T) {
	st := NewStore()
	s := newSession(t, domain.TypeZodiacCircle, "u1")
	require.NoError(t, st.Put(s))
	st.Link("u2", s.ID)

	st.Remove(s.ID)

	assert.Equal(t, 0, st.Len())
	assert.Empty(t, st.SessionsOf("u1"))
	assert.Nil(t, st.ParticipantsOf(s.ID))
	assert.False(t, st.Update(s.ID, func(*domain.Session) {}))
	// u2 was linked but never a participant; Remove prunes only
	// participants, Unlink handles the rest.
	st.Unlink("u2", s.ID)
	assert.Empty(t, st.SessionsOf("u2"))
}

func TestLinkUnlink(t *testing.T) {
	st := NewStore()
	a := newSession(t, domain.TypeZodiacCircle, "u1")
	b := newSession(t, domain.TypeTarotReading, "u1")
	require.NoError(t, st.Put(a))
	require.NoError(t, st.Put(b))

	assert.ElementsMatch(t, []domain.SessionID{a.ID, b.ID}, st.SessionsOf("u1"))

	st.Unlink("u1", a.ID)
	assert.Equal(t, []domain.SessionID{b.ID}, st.SessionsOf("u1"))

	st.Unlink("u1", b.ID)
	assert.Empty(t, st.SessionsOf("u1"))
}

func TestForEachSkipsRemoved(t *testing.T) {
	st := NewStore()
	a := newSession(t, domain.TypeZodiacCircle, "u1")
	b := newSession(t, domain.TypeZodiacCircle, "u2")
	require.NoError(t, st.Put(a))
	require.NoError(t, st.Put(b))
	st.Remove(a.ID)

	var seen []domain.SessionID
	st.ForEach(func(s *domain.Session) { seen = append(seen, s.ID) })
	assert.Equal(t, []domain.SessionID{b.ID}, seen)
}
