package memory

import (
	"sync"
	"time"
)

// Client is a live connection the router can deliver events to.
// Send must not block; it reports false when the event was dropped.
// Close must not block either; it is called on a client that fell behind.
type Client interface {
	ID() string
	Send(v any) bool
	Close()
}

// Router turns inbound client messages into registry and session calls and
// fans the resulting notifications out to connections.
type Router struct {
	reg *Registry

	mu      sync.RWMutex
	clients map[string]Client

	evictMu  sync.Mutex
	evicting map[string]bool // dropped an event; no further deliveries

	logf func(format string, args ...any)
}

func NewRouter(reg *Registry, logf func(format string, args ...any)) *Router {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Router{
		reg:      reg,
		clients:  make(map[string]Client),
		evicting: make(map[string]bool),
		logf:     logf,
	}
}

// Registry returns the registry the router dispatches into.
func (rt *Router) Registry() *Registry { return rt.reg }

// Connect registers c and greets it with its connection id.
func (rt *Router) Connect(c Client) {
	rt.mu.Lock()
	rt.clients[c.ID()] = c
	rt.mu.Unlock()

	c.Send(ConnectedMessage{Type: "connected", ID: c.ID()})
}

// Disconnect forgets the connection and tears down its session membership.
func (rt *Router) Disconnect(id string) {
	rt.mu.Lock()
	delete(rt.clients, id)
	rt.mu.Unlock()

	rt.reg.Remove(id, rt.emit)

	rt.evictMu.Lock()
	delete(rt.evicting, id)
	rt.evictMu.Unlock()
}

// Handle applies one inbound message from connection id. Rejections are
// returned for logging; some are also echoed to the sender as a status.
func (rt *Router) Handle(id string, msg ClientMessage) error {
	err := rt.handle(id, msg)
	if err == nil {
		return nil
	}

	rt.logf("GAMES: Rejected %q from %s: %v", msg.Type, id, err)
	if text := statusText(err); text != "" {
		rt.send(id, statusMessage(text))
	}
	return err
}

func (rt *Router) handle(id string, msg ClientMessage) error {
	switch msg.Type {
	case msgStartSolo:
		rt.reg.CreateSolo(id, rt.emit)

		return nil

	case msgJoinDuel:
		_, _, err := rt.reg.JoinDuel(msg.Room, id, rt.emit)

		return err

	case msgFlip:
		if msg.Index == nil {
			return ErrInvalidIndex
		}
		s := rt.reg.Lookup(id)
		if s == nil {
			return ErrNoSession
		}

		return s.Flip(id, *msg.Index, rt.emit)

	case msgRequestReplay:
		s := rt.reg.Lookup(id)
		if s == nil {
			return ErrNoSession
		}

		return s.RequestReplay(id, rt.emit)
	}

	return ErrUnknownMessage
}

// Reap ends sessions idle for longer than timeout.
func (rt *Router) Reap(timeout time.Duration) int {
	return rt.reg.Reap(rt.reg.env.clock.Now().Add(-timeout), rt.emit)
}

func (rt *Router) emit(members []string, notes []Notification) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	for _, n := range notes {
		if !n.Target.Room {
			rt.deliverLocked(n.Target.Conn, n.Event)
			continue
		}
		for _, m := range members {
			rt.deliverLocked(m, n.Event)
		}
	}
}

func (rt *Router) send(id string, ev any) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	rt.deliverLocked(id, ev)
}

func (rt *Router) deliverLocked(id string, ev any) {
	c, ok := rt.clients[id]
	if !ok {
		return
	}

	rt.evictMu.Lock()
	defer rt.evictMu.Unlock()

	if rt.evicting[id] {
		return
	}
	if c.Send(ev) {
		return
	}

	// A client that missed an event is out of sync with its session, so
	// it is dropped. Disconnect needs the locks our callers hold.
	rt.evicting[id] = true
	rt.logf("GAMES: Evicting slow connection %s", id)
	c.Close()
	go rt.Disconnect(id)
}
