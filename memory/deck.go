/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package memory

import (
	"math/rand/v2"

	"github.com/google/uuid"
)

// DeckSize is the number of cards on the board.
const DeckSize = 52

var (
	suits = []string{"♠", "♥", "♦", "♣"}
	ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}
)

// Random is the source of randomness used for shuffles and turn picks.
// IntN returns a uniformly random int in [0, n).
type Random interface {
	IntN(n int) int
}

type defaultRandom struct{}

func (defaultRandom) IntN(n int) int { return rand.IntN(n) }

// Card is one board position. Suit and Rank never change within a round.
type Card struct {
	ID      string
	Suit    string
	Rank    string
	FaceUp  bool
	Matched bool
}

// Deck is the ordered board; index is the card's position.
type Deck []Card

// newDeck returns the 52 cards in fixed suit-major order.
func newDeck() Deck {
	deck := make(Deck, 0, DeckSize)
	for _, suit := range suits {
		for _, rank := range ranks {
			deck = append(deck, Card{
				ID:   uuid.NewString(),
				Suit: suit,
				Rank: rank,
			})
		}
	}
	return deck
}

// NewShuffledDeck builds the card set and permutes it with Fisher-Yates.
func NewShuffledDeck(r Random) Deck {
	if r == nil {
		r = defaultRandom{}
	}

	deck := newDeck()
	for i := len(deck) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

// Matched reports whether every card on the board has been matched.
func (d Deck) Matched() bool {
	for _, c := range d {
		if !c.Matched {
			return false
		}
	}
	return true
}

// view is the wire form of the board. Hidden cards carry only their id.
func (d Deck) view() []CardView {
	out := make([]CardView, len(d))
	for i, c := range d {
		out[i] = CardView{ID: c.ID, FaceUp: c.FaceUp, Matched: c.Matched}
		if c.FaceUp || c.Matched {
			out[i].Suit = c.Suit
			out[i].Rank = c.Rank
		}
	}
	return out
}
