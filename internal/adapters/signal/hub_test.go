package signal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrolune/star/internal/domain"
)

type fakeMembers map[domain.SessionID][]domain.UserID

func (m fakeMembers) ParticipantsOf(id domain.SessionID) []domain.UserID { return m[id] }

// fakeWS implements WSConn; frames are only inspected via the send
// queue so the write side can fail unconditionally.
type fakeWS struct{ closed bool }

func (w *fakeWS) ReadMessage() (int, []byte, error) { return 0, nil, errors.New("not used") }
func (w *fakeWS) WriteMessage(int, []byte) error    { return errors.New("not used") }
func (w *fakeWS) SetWriteDeadline(time.Time) error  { return nil }
func (w *fakeWS) Close() error                      { w.closed = true; return nil }

func drain(t *testing.T, c *Conn) envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	default:
		t.Fatal("no frame queued")
		return envelope{}
	}
}

func TestPublishFansOutToParticipants(t *testing.T) {
	members := fakeMembers{"s1": {"u1", "u2", "u3"}}
	hub := NewHub(members)

	c1, c2 := NewConn(&fakeWS{}), NewConn(&fakeWS{})
	hub.Register("u1", c1)
	hub.Register("u2", c2)
	// u3 has no connection; that is not an error.

	hub.Publish("s1", "state_synchronized", map[string]any{"k": "v"}, "")

	env := drain(t, c1)
	assert.Equal(t, "state_synchronized", env.Event)
	assert.Equal(t, domain.SessionID("s1"), env.SessionID)
	drain(t, c2)
}

func TestPublishExcludesActor(t *testing.T) {
	members := fakeMembers{"s1": {"u1", "u2"}}
	hub := NewHub(members)

	c1, c2 := NewConn(&fakeWS{}), NewConn(&fakeWS{})
	hub.Register("u1", c1)
	hub.Register("u2", c2)

	hub.Publish("s1", "cursor_updated", map[string]any{}, "u1")

	assert.Empty(t, c1.send)
	drain(t, c2)
}

func TestPublishIgnoresNonMembers(t *testing.T) {
	members := fakeMembers{"s1": {"u1"}}
	hub := NewHub(members)

	outsider := NewConn(&fakeWS{})
	hub.Register("u2", outsider)

	hub.Publish("s1", "user_joined", map[string]any{}, "")
	assert.Empty(t, outsider.send)
}

func TestRegisterDisplacesOldConnection(t *testing.T) {
	hub := NewHub(fakeMembers{})
	oldWS := &fakeWS{}
	oldConn, newConn := NewConn(oldWS), NewConn(&fakeWS{})

	hub.Register("u1", oldConn)
	hub.Register("u1", newConn)
	assert.True(t, oldWS.closed)

	// Unregister with a stale conn must not drop the live binding,
	// and must report the conn as no longer current.
	assert.False(t, hub.Unregister("u1", oldConn))
	got, ok := hub.connOf("u1")
	require.True(t, ok)
	assert.Same(t, newConn, got)

	assert.True(t, hub.Unregister("u1", newConn))
	_, ok = hub.connOf("u1")
	assert.False(t, ok)
}

func TestTrySendBackpressure(t *testing.T) {
	c := NewConn(&fakeWS{})
	for i := 0; i < cap(c.send); i++ {
		require.NoError(t, c.TrySend([]byte("x")))
	}
	assert.ErrorIs(t, c.TrySend([]byte("x")), ErrBackpressure)
}

func TestCloseIsIdempotent(t *testing.T) {
	ws := &fakeWS{}
	c := NewConn(ws)
	c.Close()
	c.Close()
	assert.True(t, ws.closed)
	assert.Error(t, c.TrySend([]byte("x")))
}
