package memory

import (
	"encoding/json"
	"sync"
	"time"
)

// stubRandom never moves cards during a shuffle, so the deck stays in
// suit-major order, and hands out turn as every 52nd value (the turn pick
// that follows a duel deal).
type stubRandom struct {
	calls int
	turn  int
}

func (r *stubRandom) IntN(n int) int {
	r.calls++
	if r.calls%DeckSize == 0 {
		return r.turn % n
	}
	return n - 1
}

type fakeTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func (c *fakeClock) AfterFunc(_ time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

// Fire runs every timer that is still pending and returns how many ran.
func (c *fakeClock) Fire() int {
	c.mu.Lock()
	pending := c.timers
	c.timers = nil
	c.mu.Unlock()

	n := 0
	for _, t := range pending {
		if t.stopped || t.fired {
			continue
		}
		t.fired = true
		t.f()
		n++
	}
	return n
}

type delivery struct {
	to string
	ev any
}

type recorder struct {
	mu  sync.Mutex
	got []delivery
}

func (r *recorder) emit(members []string, notes []Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range notes {
		if !n.Target.Room {
			r.got = append(r.got, delivery{to: n.Target.Conn, ev: n.Event})
			continue
		}
		for _, m := range members {
			r.got = append(r.got, delivery{to: m, ev: n.Event})
		}
	}
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.got = nil
}

// types lists the event types delivered to conn, in order.
func (r *recorder) types(conn string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, d := range r.got {
		if d.to == conn {
			out = append(out, eventType(d.ev))
		}
	}
	return out
}

// find returns the events of type T delivered to conn.
func find[T any](r *recorder, conn string) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []T
	for _, d := range r.got {
		if ev, ok := d.ev.(T); ok && d.to == conn {
			out = append(out, ev)
		}
	}
	return out
}

func eventType(ev any) string {
	data, err := json.Marshal(ev)
	if err != nil {
		return ""
	}
	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(data, &head)
	return head.Type
}

type fixture struct {
	clock   *fakeClock
	rng     *stubRandom
	reg     *Registry
	rec     *recorder
	results []RoundResult
}

func newFixture(turn int) *fixture {
	f := &fixture{
		clock: newFakeClock(),
		rng:   &stubRandom{turn: turn},
		rec:   &recorder{},
	}
	f.reg = NewRegistry(
		WithClock(f.clock),
		WithRandom(f.rng),
		WithResults(func(r RoundResult) { f.results = append(f.results, r) }),
	)
	return f
}

// unshuffled positions: suit-major, so index k has rank k%13.
func sameRankPairs() [][2]int {
	var pairs [][2]int
	for k := range 13 {
		pairs = append(pairs, [2]int{k, k + 13})
	}
	for k := range 13 {
		pairs = append(pairs, [2]int{k + 26, k + 39})
	}
	return pairs
}
