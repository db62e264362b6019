package memory

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Role of a connection after joining a duel room.
type Role string

const (
	RoleWaiting Role = "waiting"
	RoleStarted Role = "started"
)

// Session is one isolated game. All of its state is guarded by mu,
// including the delayed no-match resolution, so mutations are sequential.
type Session struct {
	mu sync.Mutex

	mode    Mode
	key     string
	deck    Deck
	members []string // index 0 is player1, index 1 is player2

	active     []int  // face-up, unresolved card indices this turn
	turn       int    // index into members
	locked     bool   // two cards revealed and awaiting resolution
	over       bool   // every card matched; waiting for a replay or restart
	round      int    // rounds started in this session
	resolution uint64 // identifies the scheduled no-match resolution
	pending    Timer

	scores map[Slot]int
	wins   map[Slot]int
	votes  map[string]bool

	closed     bool
	createdAt  time.Time
	lastActive time.Time

	env *env
}

func newSession(mode Mode, key string, e *env) *Session {
	now := e.clock.Now()
	return &Session{
		mode:       mode,
		key:        key,
		scores:     make(map[Slot]int),
		wins:       make(map[Slot]int),
		votes:      make(map[string]bool),
		createdAt:  now,
		lastActive: now,
		env:        e,
	}
}

// Key returns the registry key of the session.
func (s *Session) Key() string { return s.key }

// Mode returns whether this is a solo or duel session.
func (s *Session) Mode() Mode { return s.mode }

// State is a point-in-time copy of a session.
type State struct {
	Mode       Mode
	Key        string
	Members    []string
	Deck       Deck
	Active     []int
	TurnOwner  string
	Locked     bool
	Over       bool
	Round      int
	Scores     map[Slot]int
	Wins       map[Slot]int
	Votes      int
	Closed     bool
	CreatedAt  time.Time
	LastActive time.Time
}

// Snapshot copies the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Mode:       s.mode,
		Key:        s.key,
		Members:    slices.Clone(s.members),
		Deck:       slices.Clone(s.deck),
		Active:     slices.Clone(s.active),
		Locked:     s.locked,
		Over:       s.over,
		Round:      s.round,
		Scores:     make(map[Slot]int, len(slots)),
		Wins:       make(map[Slot]int, len(slots)),
		Votes:      len(s.votes),
		Closed:     s.closed,
		CreatedAt:  s.createdAt,
		LastActive: s.lastActive,
	}
	for _, slot := range slots {
		st.Scores[slot] = s.scores[slot]
		st.Wins[slot] = s.wins[slot]
	}
	if s.turn < len(s.members) {
		st.TurnOwner = s.members[s.turn]
	}
	return st
}

func (s *Session) lastActiveAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastActive
}

func (s *Session) memberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.members)
}

func (s *Session) touchLocked() {
	s.lastActive = s.env.clock.Now()
}

// turnSlotLocked is the slot credited for a match. Solo always scores player1.
func (s *Session) turnSlotLocked() Slot {
	if s.mode == Solo {
		return Player1
	}
	return slots[s.turn]
}

func (s *Session) winCountsLocked() WinCounts {
	return WinCounts{Player1: s.wins[Player1], Player2: s.wins[Player2]}
}

func (s *Session) roundStartedLocked() RoundStartedMessage {
	msg := RoundStartedMessage{
		Type: "round_started",
		Mode: s.mode,
		Deck: s.deck.view(),
	}
	if s.mode == Duel {
		wc := s.winCountsLocked()
		msg.WinCounts = &wc
	}
	return msg
}

// newRoundLocked deals a fresh deck and clears per-round state.
// Cumulative wins survive.
func (s *Session) newRoundLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.resolution++
	s.round++

	s.deck = NewShuffledDeck(s.env.rng)
	s.active = nil
	s.locked = false
	s.over = false
	clear(s.scores)
	clear(s.votes)

	s.turn = 0
	if s.mode == Duel && len(s.members) > 1 {
		s.turn = s.env.rng.IntN(len(s.members))
	}
}

func (s *Session) emitLocked(emit Emit, b batch) {
	if len(b) == 0 || emit == nil {
		return
	}
	emit(slices.Clone(s.members), b)
}

// startSolo deals the first round for a lone player.
func (s *Session) startSolo(conn string, emit Emit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.members = []string{conn}
	s.newRoundLocked()

	var b batch
	b.room(playerCount(1))
	b.room(s.roundStartedLocked())
	s.emitLocked(emit, b)
}

// openDuel seats the first player of a room.
func (s *Session) openDuel(conn string, emit Emit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.members = []string{conn}

	var b batch
	b.to(conn, AssignedSlotMessage{Type: "assigned_slot", Slot: Player1})
	b.room(playerCount(1))
	b.to(conn, statusMessage("Waiting for an opponent to join."))
	s.emitLocked(emit, b)
}

// join seats a second player and starts the first round.
func (s *Session) join(conn string, emit Emit) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.members, conn) {
		if len(s.members) == 2 {
			return RoleStarted, nil
		}
		return RoleWaiting, nil
	}
	if len(s.members) >= 2 {
		return "", ErrRoomFull
	}

	s.members = append(s.members, conn)
	s.touchLocked()
	s.newRoundLocked()

	var b batch
	b.to(conn, AssignedSlotMessage{Type: "assigned_slot", Slot: Player2})
	b.room(playerCount(len(s.members)))
	b.room(s.roundStartedLocked())
	b.room(turnChanged(s.members[s.turn]))
	s.emitLocked(emit, b)

	return RoleStarted, nil
}

// leave drops conn and returns who is still seated. A duel peer that is
// left behind is told so.
func (s *Session) leave(conn string, emit Emit) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.members, conn)
	if i < 0 {
		return slices.Clone(s.members)
	}
	s.members = slices.Delete(s.members, i, i+1)
	delete(s.votes, conn)

	if s.mode == Duel && len(s.members) == 1 {
		var b batch
		b.to(s.members[0], PeerLeftMessage{Type: "peer_left"})
		b.to(s.members[0], statusMessage("Your opponent left the room."))
		s.emitLocked(emit, b)
	}
	return slices.Clone(s.members)
}

// expire tells every member the session timed out.
func (s *Session) expire(emit Emit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b batch
	b.room(statusMessage("This game ended after a period of inactivity."))
	if s.mode == Duel {
		b.room(PeerLeftMessage{Type: "peer_left"})
	}
	s.emitLocked(emit, b)
}

// close marks the session dead. A pending resolution that fires later is a no-op.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

// Flip reveals the card at index for conn. A rejected flip changes nothing
// and emits nothing.
func (s *Session) Flip(conn string, index int, emit Emit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNoSession
	}

	if !slices.Contains(s.members, conn) {
		return ErrNoSession
	}
	if s.mode == Duel && len(s.members) < 2 {
		return ErrWaitingForPeer
	}
	if index < 0 || index >= len(s.deck) {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	if s.locked {
		return ErrSessionLocked
	}
	if s.mode == Duel && s.members[s.turn] != conn {
		return ErrNotYourTurn
	}

	card := &s.deck[index]
	if card.FaceUp || card.Matched {
		return fmt.Errorf("%w: %d", ErrCardUnavailable, index)
	}

	card.FaceUp = true
	s.active = append(s.active, index)
	s.touchLocked()

	var b batch
	b.room(CardRevealedMessage{
		Type:  "card_revealed",
		Index: index,
		Suit:  card.Suit,
		Rank:  card.Rank,
	})

	if len(s.active) == 2 {
		s.locked = true
		s.resolveLocked(&b, emit)
	}

	s.emitLocked(emit, b)
	return nil
}

// resolveLocked settles the two active cards. A match is applied at once;
// a miss is hidden again after the reveal delay.
func (s *Session) resolveLocked(b *batch, emit Emit) {
	first, second := s.active[0], s.active[1]

	if s.deck[first].Rank == s.deck[second].Rank {
		s.deck[first].Matched = true
		s.deck[second].Matched = true

		slot := s.turnSlotLocked()
		s.scores[slot]++

		b.room(statusMessage("Pair matched!"))
		b.room(ScoreUpdateMessage{
			Type:           "score_update",
			Player:         slot,
			Score:          s.scores[slot],
			MatchedIndices: []int{first, second},
		})

		s.active = nil
		if s.deck.Matched() {
			s.finishRoundLocked(b)
		}
		s.locked = false

		return
	}

	b.room(statusMessage("Not a pair."))

	s.resolution++
	id := s.resolution
	s.pending = s.env.clock.AfterFunc(s.env.delay, func() {
		s.hideMismatch(id, first, second, emit)
	})
}

// hideMismatch is the delayed half of a no-match. It re-validates that the
// session is alive and still waiting on this exact resolution.
func (s *Session) hideMismatch(id uint64, first, second int, emit Emit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.locked || s.resolution != id {
		s.env.logf("GAMES: Dropped stale resolution %d in %s", id, s.key)
		return
	}
	s.pending = nil

	s.deck[first].FaceUp = false
	s.deck[second].FaceUp = false

	var b batch
	b.room(CardsHiddenMessage{Type: "cards_hidden", Index1: first, Index2: second})

	if s.mode == Duel && len(s.members) > 0 {
		s.turn = (s.turn + 1) % len(s.members)
		b.room(turnChanged(s.members[s.turn]))
	}

	s.active = nil
	s.locked = false

	s.emitLocked(emit, b)
}

// finishRoundLocked runs once per round, right after the last pair matches.
func (s *Session) finishRoundLocked(b *batch) {
	if s.over {
		return
	}
	s.over = true

	result := RoundResult{
		Session:    s.key,
		Mode:       s.mode,
		Round:      s.round,
		Scores:     WinCounts{Player1: s.scores[Player1], Player2: s.scores[Player2]},
		FinishedAt: s.env.clock.Now(),
	}

	if s.mode == Solo {
		result.Winner = Player1
		result.WinCounts = s.winCountsLocked()
		b.to(s.members[0], RoundOverMessage{Type: "round_over", Outcome: Win, WinCounts: result.WinCounts})
		s.env.logf("GAMES: Solo round %d finished in %s", s.round, s.key)
		s.env.results(result)

		return
	}

	p1, p2 := s.scores[Player1], s.scores[Player2]
	outcomes := [2]Outcome{Draw, Draw}
	switch {
	case p1 > p2:
		s.wins[Player1]++
		outcomes = [2]Outcome{Win, Lose}
		result.Winner = Player1
	case p2 > p1:
		s.wins[Player2]++
		outcomes = [2]Outcome{Lose, Win}
		result.Winner = Player2
	}
	result.WinCounts = s.winCountsLocked()

	for i, conn := range s.members {
		b.to(conn, RoundOverMessage{Type: "round_over", Outcome: outcomes[i], WinCounts: result.WinCounts})
	}

	s.env.logf("GAMES: Duel round %d finished in %s (%d-%d)", s.round, s.key, p1, p2)
	s.env.results(result)
}

// RequestReplay records a rematch vote. Once every member has voted a new
// round is dealt with a fresh random turn owner.
func (s *Session) RequestReplay(conn string, emit Emit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNoSession
	}
	if s.mode != Duel {
		return ErrNotDuel
	}
	if !slices.Contains(s.members, conn) {
		return ErrNoSession
	}
	if len(s.members) < 2 {
		return ErrWaitingForPeer
	}
	s.touchLocked()

	s.votes[conn] = true

	var b batch
	b.room(ReplayTallyMessage{Type: "replay_tally", Count: len(s.votes)})

	if len(s.votes) == len(s.members) {
		s.newRoundLocked()
		s.env.logf("GAMES: Replay %d started in %s", s.round, s.key)

		b.room(s.roundStartedLocked())
		b.room(turnChanged(s.members[s.turn]))
	}

	s.emitLocked(emit, b)
	return nil
}
