package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func duel(t *testing.T, f *fixture) *Session {
	t.Helper()

	_, role, err := f.reg.JoinDuel("ROOM1", "a", f.rec.emit)
	require.NoError(t, err)
	require.Equal(t, RoleWaiting, role)

	s, role, err := f.reg.JoinDuel("ROOM1", "b", f.rec.emit)
	require.NoError(t, err)
	require.Equal(t, RoleStarted, role)

	f.rec.reset()
	return s
}

func TestSoloMatchScenario(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(0)

	s := f.reg.CreateSolo("solo", f.rec.emit)
	f.rec.reset()

	// index 0 is the ace of spades, index 13 the ace of hearts
	require.NoError(t, s.Flip("solo", 0, f.rec.emit))
	require.NoError(t, s.Flip("solo", 13, f.rec.emit))

	assert.Equal([]string{"card_revealed", "card_revealed", "matching_status", "score_update"}, f.rec.types("solo"))

	updates := find[ScoreUpdateMessage](f.rec, "solo")
	require.Len(t, updates, 1)
	assert.Equal(Player1, updates[0].Player)
	assert.Equal(1, updates[0].Score)
	assert.Equal([]int{0, 13}, updates[0].MatchedIndices)

	assert.Empty(find[TurnChangedMessage](f.rec, "solo"))

	st := s.Snapshot()
	assert.False(st.Locked)
	assert.Empty(st.Active)
	assert.True(st.Deck[0].Matched)
	assert.True(st.Deck[13].Matched)
	assert.Equal(0, f.clock.Fire())
}

func TestFlipRejectionsLeaveStateAlone(t *testing.T) {
	f := newFixture(0)
	s := f.reg.CreateSolo("solo", f.rec.emit)

	require.NoError(t, s.Flip("solo", 0, f.rec.emit))
	require.NoError(t, s.Flip("solo", 13, f.rec.emit))
	require.NoError(t, s.Flip("solo", 1, f.rec.emit))

	tests := []struct {
		name  string
		index int
		want  error
	}{
		{"negative", -1, ErrInvalidIndex},
		{"past end", DeckSize, ErrInvalidIndex},
		{"matched", 0, ErrCardUnavailable},
		{"face up", 1, ErrCardUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.Snapshot()
			f.rec.reset()

			err := s.Flip("solo", tt.index, f.rec.emit)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.rec.types("solo"))
			assert.Equal(t, before.Deck, s.Snapshot().Deck)
			assert.Equal(t, before.Active, s.Snapshot().Active)
		})
	}
}

func TestSoloNoMatchHidesAfterDelay(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(0)
	s := f.reg.CreateSolo("solo", f.rec.emit)
	f.rec.reset()

	require.NoError(t, s.Flip("solo", 0, f.rec.emit))
	require.NoError(t, s.Flip("solo", 1, f.rec.emit))

	st := s.Snapshot()
	assert.True(st.Locked)
	assert.ErrorIs(s.Flip("solo", 2, f.rec.emit), ErrSessionLocked)
	assert.Empty(find[CardsHiddenMessage](f.rec, "solo"))

	assert.Equal(1, f.clock.Fire())

	hidden := find[CardsHiddenMessage](f.rec, "solo")
	require.Len(t, hidden, 1)
	assert.Equal(0, hidden[0].Index1)
	assert.Equal(1, hidden[0].Index2)
	assert.Empty(find[TurnChangedMessage](f.rec, "solo"))

	st = s.Snapshot()
	assert.False(st.Locked)
	assert.Empty(st.Active)
	for i, c := range st.Deck {
		assert.False(c.FaceUp, "card %d", i)
		assert.False(c.Matched, "card %d", i)
	}
}

func TestDuelNoMatchPassesTurn(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(0)
	s := duel(t, f)
	require.Equal(t, "a", s.Snapshot().TurnOwner)

	require.NoError(t, s.Flip("a", 0, f.rec.emit))
	require.NoError(t, s.Flip("a", 1, f.rec.emit))

	for _, conn := range []string{"a", "b"} {
		assert.Len(find[CardRevealedMessage](f.rec, conn), 2)
	}
	assert.ErrorIs(s.Flip("b", 5, f.rec.emit), ErrSessionLocked)

	f.clock.Fire()

	for _, conn := range []string{"a", "b"} {
		assert.Len(find[CardsHiddenMessage](f.rec, conn), 1)
		turns := find[TurnChangedMessage](f.rec, conn)
		require.Len(t, turns, 1)
		assert.Equal("b", turns[0].Owner)
	}
	assert.Equal("b", s.Snapshot().TurnOwner)
}

func TestDuelTurnAlternatesOnMissAndHoldsOnMatch(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(1)
	s := duel(t, f)
	require.Equal(t, "b", s.Snapshot().TurnOwner)

	assert.ErrorIs(s.Flip("a", 0, f.rec.emit), ErrNotYourTurn)

	// b matches twice and keeps the turn
	require.NoError(t, s.Flip("b", 0, f.rec.emit))
	require.NoError(t, s.Flip("b", 13, f.rec.emit))
	require.NoError(t, s.Flip("b", 1, f.rec.emit))
	require.NoError(t, s.Flip("b", 14, f.rec.emit))
	assert.Equal("b", s.Snapshot().TurnOwner)
	assert.Empty(find[TurnChangedMessage](f.rec, "a"))

	owners := []string{}
	misses := [][2]int{{2, 3}, {4, 5}, {6, 7}, {8, 9}}
	for _, m := range misses {
		owner := s.Snapshot().TurnOwner
		require.NoError(t, s.Flip(owner, m[0], f.rec.emit))
		require.NoError(t, s.Flip(owner, m[1], f.rec.emit))
		f.clock.Fire()
		owners = append(owners, s.Snapshot().TurnOwner)
	}
	assert.Equal([]string{"a", "b", "a", "b"}, owners)

	st := s.Snapshot()
	assert.Equal(2, st.Scores[Player2])
	assert.Equal(0, st.Scores[Player1])
}

func TestDuelMatchCreditsTurnOwnerSlot(t *testing.T) {
	f := newFixture(0)
	s := duel(t, f)

	require.NoError(t, s.Flip("a", 26, f.rec.emit))
	require.NoError(t, s.Flip("a", 39, f.rec.emit))

	updates := find[ScoreUpdateMessage](f.rec, "b")
	require.Len(t, updates, 1)
	assert.Equal(t, Player1, updates[0].Player)
	assert.Equal(t, 1, updates[0].Score)
	assert.Equal(t, []int{26, 39}, updates[0].MatchedIndices)
}

func TestSoloRoundOverOnce(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(0)
	s := f.reg.CreateSolo("solo", f.rec.emit)

	pairs := sameRankPairs()
	for i, p := range pairs {
		require.NoError(t, s.Flip("solo", p[0], f.rec.emit))
		require.NoError(t, s.Flip("solo", p[1], f.rec.emit))
		if i < len(pairs)-1 {
			assert.Empty(find[RoundOverMessage](f.rec, "solo"), "round over after pair %d", i)
		}
	}

	over := find[RoundOverMessage](f.rec, "solo")
	require.Len(t, over, 1)
	assert.Equal(Win, over[0].Outcome)

	st := s.Snapshot()
	assert.True(st.Over)
	assert.Equal(DeckSize/2, st.Scores[Player1])
	assert.True(st.Deck.Matched())

	for i := range DeckSize {
		assert.ErrorIs(s.Flip("solo", i, f.rec.emit), ErrCardUnavailable)
	}
	assert.Len(find[RoundOverMessage](f.rec, "solo"), 1)

	require.Len(t, f.results, 1)
	assert.Equal(Solo, f.results[0].Mode)
	assert.Equal(Player1, f.results[0].Winner)
}

func playDuelRound(t *testing.T, f *fixture, s *Session, split bool) {
	t.Helper()

	pairs := sameRankPairs()
	owner := s.Snapshot().TurnOwner
	for i, p := range pairs {
		if split && i == 13 {
			// hand the turn over with a miss on two spades
			matched := s.Snapshot().Deck
			require.False(t, matched[26].Matched)
			require.NoError(t, s.Flip(owner, 26, f.rec.emit))
			require.NoError(t, s.Flip(owner, 27, f.rec.emit))
			f.clock.Fire()
			owner = s.Snapshot().TurnOwner
		}
		require.NoError(t, s.Flip(owner, p[0], f.rec.emit))
		require.NoError(t, s.Flip(owner, p[1], f.rec.emit))
	}
}

func TestDuelRoundOverWinLose(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(0)
	s := duel(t, f)

	playDuelRound(t, f, s, false)

	a := find[RoundOverMessage](f.rec, "a")
	b := find[RoundOverMessage](f.rec, "b")
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(Win, a[0].Outcome)
	assert.Equal(Lose, b[0].Outcome)
	assert.Equal(WinCounts{Player1: 1, Player2: 0}, a[0].WinCounts)
	assert.Equal(a[0].WinCounts, b[0].WinCounts)

	require.Len(t, f.results, 1)
	assert.Equal(Player1, f.results[0].Winner)
	assert.Equal(WinCounts{Player1: 26}, f.results[0].Scores)
}

func TestDuelRoundOverDraw(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(0)
	s := duel(t, f)

	playDuelRound(t, f, s, true)

	st := s.Snapshot()
	assert.Equal(13, st.Scores[Player1])
	assert.Equal(13, st.Scores[Player2])

	for _, conn := range []string{"a", "b"} {
		over := find[RoundOverMessage](f.rec, conn)
		require.Len(t, over, 1)
		assert.Equal(Draw, over[0].Outcome)
		assert.Equal(WinCounts{}, over[0].WinCounts)
	}
	assert.Equal(0, st.Wins[Player1])
	assert.Equal(0, st.Wins[Player2])
}

func TestReplayKeepsWinsAndResetsRound(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(0)
	s := duel(t, f)

	playDuelRound(t, f, s, false)
	f.rec.reset()

	require.NoError(t, s.RequestReplay("a", f.rec.emit))
	require.NoError(t, s.RequestReplay("a", f.rec.emit))

	tallies := find[ReplayTallyMessage](f.rec, "b")
	require.Len(t, tallies, 2)
	assert.Equal(1, tallies[1].Count)
	assert.True(s.Snapshot().Over)

	require.NoError(t, s.RequestReplay("b", f.rec.emit))

	st := s.Snapshot()
	assert.False(st.Over)
	assert.False(st.Locked)
	assert.Empty(st.Active)
	assert.Equal(0, st.Scores[Player1])
	assert.Equal(0, st.Scores[Player2])
	assert.Equal(1, st.Wins[Player1])
	assert.Equal(0, st.Votes)
	assert.Equal(2, st.Round)
	assert.False(st.Deck.Matched())
	for _, c := range st.Deck {
		assert.False(c.Matched)
		assert.False(c.FaceUp)
	}

	for _, conn := range []string{"a", "b"} {
		started := find[RoundStartedMessage](f.rec, conn)
		require.Len(t, started, 1)
		require.NotNil(t, started[0].WinCounts)
		assert.Equal(WinCounts{Player1: 1}, *started[0].WinCounts)
		assert.Len(started[0].Deck, DeckSize)

		assert.Len(find[TurnChangedMessage](f.rec, conn), 1)
	}
}

func TestReplayRejections(t *testing.T) {
	f := newFixture(0)

	solo := f.reg.CreateSolo("solo", f.rec.emit)
	assert.ErrorIs(t, solo.RequestReplay("solo", f.rec.emit), ErrNotDuel)

	s, _, err := f.reg.JoinDuel("lonely", "a", f.rec.emit)
	require.NoError(t, err)
	assert.ErrorIs(t, s.RequestReplay("a", f.rec.emit), ErrWaitingForPeer)
	assert.ErrorIs(t, s.Flip("a", 0, f.rec.emit), ErrWaitingForPeer)
}

func TestReplayDuringPendingResolutionDropsStaleTimer(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(0)
	s := duel(t, f)

	require.NoError(t, s.Flip("a", 0, f.rec.emit))
	require.NoError(t, s.Flip("a", 1, f.rec.emit))
	require.NoError(t, s.RequestReplay("a", f.rec.emit))
	require.NoError(t, s.RequestReplay("b", f.rec.emit))
	f.rec.reset()

	assert.Equal(0, f.clock.Fire())
	assert.Empty(find[CardsHiddenMessage](f.rec, "a"))
	assert.False(s.Snapshot().Locked)
}

func TestHideMismatchAfterCloseIsNoop(t *testing.T) {
	f := newFixture(0)
	s := duel(t, f)

	require.NoError(t, s.Flip("a", 0, f.rec.emit))
	require.NoError(t, s.Flip("a", 1, f.rec.emit))

	st := s.Snapshot()
	s.close()
	f.rec.reset()

	// call the continuation directly as a late timer would
	s.hideMismatch(s.resolution, 0, 1, f.rec.emit)

	assert.Empty(t, f.rec.types("a"))
	assert.Equal(t, st.Deck, s.Snapshot().Deck)
	assert.ErrorIs(t, s.Flip("a", 2, f.rec.emit), ErrNoSession)
}

func TestRejectedFlipLeavesSessionIdle(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(0)

	s := duel(t, f)
	created := s.Snapshot().LastActive
	f.clock.Advance(time.Hour)

	assert.ErrorIs(s.Flip("b", 0, f.rec.emit), ErrNotYourTurn)
	assert.ErrorIs(s.Flip("a", DeckSize, f.rec.emit), ErrInvalidIndex)
	assert.ErrorIs(s.Flip("stranger", 0, f.rec.emit), ErrNoSession)
	assert.Equal(created, s.Snapshot().LastActive)
	assert.Equal(0, f.reg.Reap(f.clock.Now().Add(-2*time.Hour), f.rec.emit))
	assert.Equal(1, f.reg.Len())

	require.NoError(t, s.Flip("a", 0, f.rec.emit))
	assert.Equal(f.clock.Now(), s.Snapshot().LastActive)

	assert.ErrorIs(s.Flip("a", 0, f.rec.emit), ErrCardUnavailable)
	f.clock.Advance(time.Hour)
	assert.ErrorIs(s.Flip("a", 0, f.rec.emit), ErrCardUnavailable)
	assert.Equal(1, f.reg.Reap(f.clock.Now().Add(-30*time.Minute), f.rec.emit))
}
