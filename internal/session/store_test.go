package session

import (
	"errors"
	"testing"
	"time"

	"github.com/newthinker/investeai/internal/backtest"
	"github.com/newthinker/investeai/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(opts Options) (*Store, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(opts)
	s.now = clock.now
	return s, clock
}

func outcome(source backtest.Source) backtest.Outcome {
	return backtest.Outcome{Record: backtest.Fallback(nil), Source: source}
}

func TestStore_SetAndGet(t *testing.T) {
	s, _ := newTestStore(Options{MaxSize: 10})
	id := NewID()

	_, err := s.Get(id)
	assert.True(t, errors.Is(err, core.ErrSessionNotFound))

	s.Set(id, outcome(backtest.SourceFallback))

	sess, err := s.Get(id)
	require.NoError(t, err)
	require.NotNil(t, sess.Outcome)
	assert.Equal(t, id, sess.ID)
	assert.True(t, sess.Outcome.IsFallback())
	assert.Equal(t, 1, s.Len())
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s, _ := newTestStore(Options{MaxSize: 10})
	s.Set("a", outcome(backtest.SourceBacktest))

	sess, _ := s.Get("a")
	sess.Stale = true
	sess.Running = true

	again, _ := s.Get("a")
	assert.False(t, again.Stale)
	assert.False(t, again.Running)
}

func TestStore_MaxSize(t *testing.T) {
	s, _ := newTestStore(Options{MaxSize: 2})

	s.Set("first", outcome(backtest.SourceBacktest))
	s.Set("second", outcome(backtest.SourceBacktest))
	s.Set("third", outcome(backtest.SourceBacktest)) // Should evict first

	_, err := s.Get("first")
	assert.Error(t, err)
	assert.Equal(t, 2, s.Len())
}

func TestStore_EvictionSkipsRunning(t *testing.T) {
	s, _ := newTestStore(Options{MaxSize: 2})

	require.NoError(t, s.Begin("running"))
	s.Set("idle", outcome(backtest.SourceBacktest))
	s.Set("new", outcome(backtest.SourceBacktest)) // Should evict idle, not running

	_, err := s.Get("idle")
	assert.True(t, errors.Is(err, core.ErrSessionNotFound))
	sess, err := s.Get("running")
	require.NoError(t, err)
	assert.True(t, sess.Running)
}

func TestStore_FullOfRunningSessions(t *testing.T) {
	s, _ := newTestStore(Options{MaxSize: 1})

	require.NoError(t, s.Begin("a"))
	require.NoError(t, s.Begin("b"))

	assert.True(t, errors.Is(s.Begin("a"), core.ErrSessionBusy))
	assert.Equal(t, 2, s.Len())

	s.End("a")
	s.End("b")
	s.Set("c", outcome(backtest.SourceBacktest))
	assert.Equal(t, 1, s.Len())
}

func TestStore_Delete(t *testing.T) {
	s, _ := newTestStore(Options{MaxSize: 2})
	s.Set("a", outcome(backtest.SourceBacktest))
	s.Delete("a")
	s.Delete("never-existed")

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.order)
}

func TestStore_TTL(t *testing.T) {
	s, clock := newTestStore(Options{MaxSize: 10, TTL: time.Hour})
	s.Set("a", outcome(backtest.SourceBacktest))
	s.Set("b", outcome(backtest.SourceBacktest))

	clock.advance(40 * time.Minute)
	_, err := s.Get("a") // touching keeps a alive
	require.NoError(t, err)

	clock.advance(40 * time.Minute)
	assert.Equal(t, 1, s.Len())
	_, err = s.Get("b")
	assert.Error(t, err)

	clock.advance(2 * time.Hour)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Len())
}

func TestStore_MarkStale(t *testing.T) {
	s, _ := newTestStore(Options{MaxSize: 10})
	s.Set("a", outcome(backtest.SourceBacktest))
	require.NoError(t, s.Begin("b")) // no outcome yet
	s.End("b")

	assert.Equal(t, 1, s.MarkStale())
	assert.Equal(t, 0, s.MarkStale())

	sess, _ := s.Get("a")
	assert.True(t, sess.Stale)

	s.Set("a", outcome(backtest.SourceBacktest))
	sess, _ = s.Get("a")
	assert.False(t, sess.Stale)
}

func TestStore_BeginIsExclusive(t *testing.T) {
	s, _ := newTestStore(Options{MaxSize: 10})

	require.NoError(t, s.Begin("a"))
	assert.True(t, errors.Is(s.Begin("a"), core.ErrSessionBusy))

	sess, _ := s.Get("a")
	assert.True(t, sess.Running)

	s.End("a")
	assert.NoError(t, s.Begin("a"))
}

func TestStore_BeginRateLimited(t *testing.T) {
	s, clock := newTestStore(Options{MaxSize: 10, RunsPerMinute: 6, RunBurst: 2})

	for i := 0; i < 2; i++ {
		require.NoError(t, s.Begin("a"))
		s.End("a")
	}
	assert.True(t, errors.Is(s.Begin("a"), core.ErrRateLimited))

	// One token every ten seconds
	clock.advance(10 * time.Second)
	assert.NoError(t, s.Begin("a"))
	s.End("a")

	// Other sessions have their own budget
	assert.NoError(t, s.Begin("b"))
}

func TestStore_UnlimitedRuns(t *testing.T) {
	s, _ := newTestStore(Options{MaxSize: 10})
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Begin("a"))
		s.End("a")
	}
}

func TestStore_RunningSessionDoesNotExpire(t *testing.T) {
	s, clock := newTestStore(Options{MaxSize: 10, TTL: time.Minute})
	require.NoError(t, s.Begin("a"))

	clock.advance(time.Hour)
	assert.Equal(t, 0, s.Sweep())
	s.End("a")
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID(NewID()))
	assert.False(t, ValidID("not-a-session"))
	assert.False(t, ValidID(""))
}
