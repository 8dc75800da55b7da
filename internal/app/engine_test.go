package app

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/astrolune/star/internal/core"
	"github.com/astrolune/star/internal/domain"
)

type published struct {
	SID     domain.SessionID
	Event   string
	Payload map[string]any
	Exclude domain.UserID
}

// fakePublisher records broadcasts for assertions.
type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) Publish(sid domain.SessionID, event string, payload any, exclude domain.UserID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, _ := payload.(map[string]any)
	f.events = append(f.events, published{SID: sid, Event: event, Payload: m, Exclude: exclude})
}

func (f *fakePublisher) all() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]published, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakePublisher) byEvent(name string) []published {
	var out []published
	for _, e := range f.all() {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakePublisher) reset() {
	f.mu.Lock()
	f.events = nil
	f.mu.Unlock()
}

// fakeArchive records snapshot and history writes.
type fakeArchive struct {
	mu       sync.Mutex
	sessions map[domain.SessionID][]byte
	history  []*domain.SessionRecord
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{sessions: make(map[domain.SessionID][]byte)}
}

func (f *fakeArchive) SaveSession(ctx context.Context, id domain.SessionID, doc []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id] = doc
	return nil
}

func (f *fakeArchive) SaveHistory(ctx context.Context, rec *domain.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, rec)
	return nil
}

func (f *fakeArchive) historyCount(id domain.SessionID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rec := range f.history {
		if rec.SessionID == id {
			n++
		}
	}
	return n
}

func (f *fakeArchive) lastHistory() *domain.SessionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.history) == 0 {
		return nil
	}
	return f.history[len(f.history)-1]
}

type testEnv struct {
	engine  *Engine
	store   *core.Store
	pub     *fakePublisher
	archive *fakeArchive
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := core.NewStore()
	pub := &fakePublisher{}
	arch := newFakeArchive()
	return &testEnv{
		engine:  NewEngine(store, pub, arch),
		store:   store,
		pub:     pub,
		archive: arch,
	}
}

func (env *testEnv) createSession(t *testing.T, host domain.UserID, p CreateParams) *SessionDetail {
	t.Helper()
	d, err := env.engine.Create(context.Background(), host, "host-"+string(host), "aries", p)
	require.NoError(t, err)
	return d
}

func (env *testEnv) join(t *testing.T, sid domain.SessionID, uid domain.UserID) {
	t.Helper()
	ok := env.engine.Join(context.Background(), JoinParams{
		SessionID: sid,
		UserID:    uid,
		Username:  "user-" + string(uid),
	})
	require.True(t, ok)
}
