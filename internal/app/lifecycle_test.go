package app

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrolune/star/internal/domain"
)

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func TestCreatePublicSession(t *testing.T) {
	env := newTestEnv(t)
	d := env.createSession(t, "host-1", CreateParams{
		Type:  domain.TypeTarotReading,
		Title: "Evening Reading",
	})

	assert.Equal(t, domain.StatusWaiting, d.Status)
	assert.Equal(t, domain.TypeTarotReading, d.Type)
	assert.Equal(t, domain.UserID("host-1"), d.HostID)
	assert.Equal(t, domain.DefaultMaxMembers, d.MaxParticipants)
	assert.Regexp(t, roomCodePattern, string(d.RoomCode))

	require.Len(t, d.Participants, 1)
	assert.Equal(t, domain.RoleHost, d.Participants[0].Role)
	assert.Equal(t, domain.UserID("host-1"), d.Participants[0].UserID)
}

func TestCreatePrivateSessionHasNoRoomCode(t *testing.T) {
	env := newTestEnv(t)
	d := env.createSession(t, "host-1", CreateParams{
		Type:      domain.TypeGroupMeditation,
		Title:     "Quiet Circle",
		IsPrivate: true,
		Password:  "moon",
	})
	assert.Empty(t, d.RoomCode)
}

func TestCreateRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Create(context.Background(), "h", "host", "", CreateParams{Type: domain.TypeZodiacCircle})
	assert.ErrorIs(t, err, domain.ErrTitleEmpty)

	_, err = env.engine.Create(context.Background(), "h", "host", "", CreateParams{Type: "seance", Title: "x"})
	assert.ErrorIs(t, err, domain.ErrBadSessionType)
}

func TestRoomCodesUniqueAcrossLiveSessions(t *testing.T) {
	env := newTestEnv(t)
	seen := make(map[domain.RoomCode]bool)
	for i := 0; i < 50; i++ {
		d := env.createSession(t, domain.UserID(string(rune('a'+i%26)))+"-host", CreateParams{
			Type:  domain.TypeCosmicPlaylist,
			Title: "Playlist",
		})
		require.False(t, seen[d.RoomCode], "duplicate room code %s", d.RoomCode)
		seen[d.RoomCode] = true
	}
}

// Create must hand back a view of the session as it was at creation;
// joiners racing in through the room code the instant the session is
// published must not be observed mid-iteration. Run with -race.
func TestConcurrentCreateAndJoin(t *testing.T) {
	env := newTestEnv(t)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		n := 0
		for {
			select {
			case <-stop:
				return
			default:
			}
			var ids []domain.SessionID
			env.store.ForEach(func(s *domain.Session) { ids = append(ids, s.ID) })
			for _, id := range ids {
				n++
				env.engine.Join(context.Background(), JoinParams{
					SessionID: id,
					UserID:    domain.UserID(fmt.Sprintf("joiner-%d", n)),
					Username:  fmt.Sprintf("joiner-%d", n),
				})
			}
		}
	}()

	for i := 0; i < 50; i++ {
		d := env.createSession(t, domain.UserID(fmt.Sprintf("host-%d", i)), CreateParams{
			Type:            domain.TypeZodiacCircle,
			Title:           "Circle",
			MaxParticipants: domain.MaxParticipantsCap,
		})
		require.Len(t, d.Participants, 1)
		assert.Equal(t, d.HostID, d.Participants[0].UserID)
	}
	close(stop)
	wg.Wait()
}

func TestEndNeverStartedRecordsZeroDuration(t *testing.T) {
	env := newTestEnv(t)
	d := env.createSession(t, "host-1", CreateParams{Type: domain.TypeZodiacCircle, Title: "Circle"})

	require.True(t, env.engine.EndByHost(context.Background(), d.ID, "host-1"))

	require.Eventually(t, func() bool {
		return env.archive.historyCount(d.ID) == 1
	}, time.Second, 10*time.Millisecond)

	rec := env.archive.lastHistory()
	assert.Equal(t, 0, rec.DurationMinutes)
	assert.Equal(t, domain.StatusCompleted, rec.Status)
	assert.True(t, rec.StartedAt.IsZero())

	_, found := env.engine.Get(d.ID, "host-1")
	assert.False(t, found)
}

func TestEndByNonHostRejected(t *testing.T) {
	env := newTestEnv(t)
	d := env.createSession(t, "host-1", CreateParams{Type: domain.TypeZodiacCircle, Title: "Circle"})
	env.join(t, d.ID, "guest-1")

	assert.False(t, env.engine.EndByHost(context.Background(), d.ID, "guest-1"))
	_, found := env.engine.Get(d.ID, "guest-1")
	assert.True(t, found)
}

func TestDoubleEndIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	d := env.createSession(t, "host-1", CreateParams{Type: domain.TypeZodiacCircle, Title: "Circle"})

	require.True(t, env.engine.End(context.Background(), d.ID))
	assert.False(t, env.engine.End(context.Background(), d.ID))

	require.Eventually(t, func() bool {
		return env.archive.historyCount(d.ID) == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, env.archive.historyCount(d.ID))
}

func TestPauseAndResume(t *testing.T) {
	env := newTestEnv(t)
	d := env.createSession(t, "host-1", CreateParams{Type: domain.TypeZodiacCircle, Title: "Circle"})
	env.join(t, d.ID, "guest-1")

	// Only the host may pause, and only an active session.
	assert.False(t, env.engine.SetPaused(context.Background(), d.ID, "guest-1", true))
	require.True(t, env.engine.SetPaused(context.Background(), d.ID, "host-1", true))

	got, ok := env.engine.Get(d.ID, "host-1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusPaused, got.Status)

	// Pausing a paused session is a no-op failure; resume works.
	assert.False(t, env.engine.SetPaused(context.Background(), d.ID, "host-1", true))
	require.True(t, env.engine.SetPaused(context.Background(), d.ID, "host-1", false))

	got, ok = env.engine.Get(d.ID, "host-1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusActive, got.Status)
}

func TestListFiltersByMembership(t *testing.T) {
	env := newTestEnv(t)
	a := env.createSession(t, "host-a", CreateParams{Type: domain.TypeZodiacCircle, Title: "A"})
	env.createSession(t, "host-b", CreateParams{Type: domain.TypeZodiacCircle, Title: "B"})

	all := env.engine.List("host-a", true)
	assert.Len(t, all, 2)

	mine := env.engine.List("host-a", false)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)
}

func TestGetDeniedForPrivateNonMember(t *testing.T) {
	env := newTestEnv(t)
	d := env.createSession(t, "host-1", CreateParams{
		Type:      domain.TypeGroupMeditation,
		Title:     "Quiet Circle",
		IsPrivate: true,
		Password:  "moon",
	})

	_, ok := env.engine.Get(d.ID, "stranger")
	assert.False(t, ok)

	_, ok = env.engine.Get(d.ID, "host-1")
	assert.True(t, ok)
}
