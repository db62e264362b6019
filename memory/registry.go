package memory

import (
	"crypto/rand"
	"regexp"
	"sync"
	"time"
)

// DefaultRevealDelay is how long a mismatched pair stays face up.
const DefaultRevealDelay = 2 * time.Second

var roomCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// RoundResult summarises a finished round for result feeds.
type RoundResult struct {
	Session    string    `json:"session"`
	Mode       Mode      `json:"mode"`
	Round      int       `json:"round"`
	Winner     Slot      `json:"winner,omitempty"` // empty on a draw
	Scores     WinCounts `json:"scores"`
	WinCounts  WinCounts `json:"win_counts"`
	FinishedAt time.Time `json:"finished_at"`
}

// env is shared by every session of a registry.
type env struct {
	clock   Clock
	rng     Random
	delay   time.Duration
	logf    func(format string, args ...any)
	results func(RoundResult)
}

// Option configures a Registry.
type Option func(*env)

// WithClock replaces the wall clock used for the reveal delay.
func WithClock(c Clock) Option {
	return func(e *env) { e.clock = c }
}

// WithRandom replaces the source used for shuffles and turn picks.
func WithRandom(r Random) Option {
	return func(e *env) { e.rng = r }
}

// WithRevealDelay sets how long a mismatched pair stays visible.
func WithRevealDelay(d time.Duration) Option {
	return func(e *env) { e.delay = d }
}

// WithLogger routes core log lines to logf.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(e *env) { e.logf = logf }
}

// WithResults is called once per finished round. It runs while the session
// is locked and must not block.
func WithResults(f func(RoundResult)) Option {
	return func(e *env) { e.results = f }
}

// Registry owns every live session. A connection is a member of at most
// one session at a time; byConn is that association.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byConn   map[string]*Session
	env      *env
}

func NewRegistry(opts ...Option) *Registry {
	e := &env{
		clock:   realClock{},
		rng:     defaultRandom{},
		delay:   DefaultRevealDelay,
		logf:    func(string, ...any) {},
		results: func(RoundResult) {},
	}
	for _, opt := range opts {
		opt(e)
	}

	return &Registry{
		sessions: make(map[string]*Session),
		byConn:   make(map[string]*Session),
		env:      e,
	}
}

func soloKey(conn string) string { return "solo:" + conn }

func duelKey(room string) string { return "duel:" + room }

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// Lookup returns the session conn belongs to, if any.
func (r *Registry) Lookup(conn string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.byConn[conn]
}

// Room returns the duel session for a room code, if any.
func (r *Registry) Room(code string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sessions[duelKey(code)]
}

// CreateSolo always deals a fresh solo session for conn, leaving whatever
// session conn was in before.
func (r *Registry) CreateSolo(conn string, emit Emit) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.detachLocked(conn, emit)

	s := newSession(Solo, soloKey(conn), r.env)
	r.sessions[s.key] = s
	r.byConn[conn] = s

	s.startSolo(conn, emit)
	r.env.logf("GAMES: Started solo session %s", s.key)

	return s
}

// JoinDuel seats conn in the room, creating it when absent. A full room is
// rejected before anything changes.
func (r *Registry) JoinDuel(room, conn string, emit Emit) (*Session, Role, error) {
	if !roomCodePattern.MatchString(room) {
		return nil, "", ErrInvalidRoomCode
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := duelKey(room)
	s, exists := r.sessions[key]

	if cur := r.byConn[conn]; cur != nil && cur == s {
		role, err := s.join(conn, emit)
		return s, role, err
	}
	if exists && s.memberCount() >= 2 {
		return nil, "", ErrRoomFull
	}

	r.detachLocked(conn, emit)

	if !exists {
		s = newSession(Duel, key, r.env)
		r.sessions[key] = s
		r.byConn[conn] = s
		s.openDuel(conn, emit)
		r.env.logf("GAMES: Opened duel room %s", room)

		return s, RoleWaiting, nil
	}

	role, err := s.join(conn, emit)
	if err != nil {
		return nil, "", err
	}
	r.byConn[conn] = s
	r.env.logf("GAMES: Duel room %s started", room)

	return s, role, nil
}

// Remove takes conn out of its session. Any departure ends the session;
// a duel peer left behind is notified first.
func (r *Registry) Remove(conn string, emit Emit) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.detachLocked(conn, emit)
}

func (r *Registry) detachLocked(conn string, emit Emit) {
	s, ok := r.byConn[conn]
	if !ok {
		return
	}
	delete(r.byConn, conn)

	remaining := s.leave(conn, emit)
	for _, m := range remaining {
		delete(r.byConn, m)
	}
	r.destroyLocked(s)
}

func (r *Registry) destroyLocked(s *Session) {
	if r.sessions[s.key] == s {
		delete(r.sessions, s.key)
	}
	s.close()
	r.env.logf("GAMES: Ended session %s", s.key)
}

// Reap ends sessions idle since before cutoff and returns how many it ended.
func (r *Registry) Reap(cutoff time.Time, emit Emit) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.sessions {
		if !s.lastActiveAt().Before(cutoff) {
			continue
		}

		st := s.Snapshot()
		s.expire(emit)
		for _, m := range st.Members {
			if r.byConn[m] == s {
				delete(r.byConn, m)
			}
		}
		r.destroyLocked(s)
		r.env.logf("GAMES: Reaped %s after %s", s.key, r.env.clock.Now().Sub(st.CreatedAt).Round(time.Second))
		n++
	}
	return n
}

// NewRoomCode returns a random 8-character room code not currently in use.
func (r *Registry) NewRoomCode() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		code := string(out)

		r.mu.Lock()
		_, exists := r.sessions[duelKey(code)]
		r.mu.Unlock()

		if !exists {
			return code
		}
	}
}
