// Package session keeps the latest acquisition outcome per browser session.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/investeai/internal/backtest"
	"github.com/newthinker/investeai/internal/core"
	"golang.org/x/time/rate"
)

// Session is a snapshot of one session's state.
type Session struct {
	ID        string            `json:"id"`
	Outcome   *backtest.Outcome `json:"outcome,omitempty"`
	Running   bool              `json:"running"`
	Stale     bool              `json:"stale"` // model changed since Outcome was produced
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type entry struct {
	Session
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Options configures a Store.
type Options struct {
	MaxSize       int
	TTL           time.Duration // zero disables expiry
	RunsPerMinute float64       // zero disables the re-run limit
	RunBurst      int
}

// Store manages sessions.
type Store struct {
	sessions map[string]*entry
	order    []string // Track insertion order for eviction
	maxSize  int
	ttl      time.Duration
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	now      func() time.Time
}

// NewStore creates a new session store.
func NewStore(opts Options) *Store {
	if opts.MaxSize < 1 {
		opts.MaxSize = 1
	}
	limit := rate.Inf
	if opts.RunsPerMinute > 0 {
		limit = rate.Limit(opts.RunsPerMinute / 60)
	}
	if opts.RunBurst < 1 {
		opts.RunBurst = 1
	}
	return &Store{
		sessions: make(map[string]*entry),
		order:    make([]string, 0, opts.MaxSize),
		maxSize:  opts.MaxSize,
		ttl:      opts.TTL,
		limit:    limit,
		burst:    opts.RunBurst,
		now:      time.Now,
	}
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like a session id this package issued.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns a copy of the session.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(id)
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	e.lastSeen = s.now()

	// Return copy to prevent race conditions
	sessCopy := e.Session
	return &sessCopy, nil
}

// Set stores the outcome for id, creating the session if needed.
func (s *Store) Set(id string, out backtest.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreate(id)
	e.Outcome = &out
	e.Stale = false
	e.UpdatedAt = s.now()
	e.lastSeen = e.UpdatedAt
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id := range s.sessions {
		if _, ok := s.live(id); ok {
			n++
		}
	}
	return n
}

// MarkStale flags every stored outcome as produced by an older model and
// returns how many sessions were flagged.
func (s *Store) MarkStale() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.sessions {
		if e.Outcome != nil && !e.Stale {
			e.Stale = true
			n++
		}
	}
	return n
}

// Begin claims the single acquisition slot of a session. It fails with
// ErrSessionBusy while another acquisition runs and with ErrRateLimited
// when re-runs come too fast. A successful Begin must be paired with End.
func (s *Store) Begin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreate(id)
	if e.Running {
		return core.ErrSessionBusy
	}
	if !e.limiter.AllowN(s.now(), 1) {
		return core.ErrRateLimited
	}
	e.Running = true
	e.lastSeen = s.now()
	return nil
}

// End releases the acquisition slot taken by Begin.
func (s *Store) End(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.sessions[id]; ok {
		e.Running = false
		e.lastSeen = s.now()
	}
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.sessions {
		if s.expired(e) {
			s.remove(id)
			n++
		}
	}
	return n
}

// live returns the entry for id unless it has expired, in which case it is
// removed. Callers hold mu.
func (s *Store) live(id string) (*entry, bool) {
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.expired(e) {
		s.remove(id)
		return nil, false
	}
	return e, true
}

func (s *Store) expired(e *entry) bool {
	return s.ttl > 0 && !e.Running && s.now().Sub(e.lastSeen) > s.ttl
}

func (s *Store) getOrCreate(id string) *entry {
	if e, ok := s.live(id); ok {
		return e
	}

	// Evict oldest idle sessions if at capacity. Running sessions stay so
	// that their acquisition slot is never handed out twice; when every
	// session is running the store grows past maxSize until they end.
	for len(s.sessions) >= s.maxSize {
		victim, ok := s.oldestIdle()
		if !ok {
			break
		}
		s.remove(victim)
	}

	now := s.now()
	e := &entry{
		Session: Session{
			ID:        id,
			CreatedAt: now,
			UpdatedAt: now,
		},
		limiter:  rate.NewLimiter(s.limit, s.burst),
		lastSeen: now,
	}
	s.sessions[id] = e
	s.order = append(s.order, id)
	return e
}

func (s *Store) oldestIdle() (string, bool) {
	for _, id := range s.order {
		if e, ok := s.sessions[id]; ok && !e.Running {
			return id, true
		}
	}
	return "", false
}

func (s *Store) remove(id string) {
	if _, ok := s.sessions[id]; !ok {
		return
	}
	delete(s.sessions, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
