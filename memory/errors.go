package memory

import "errors"

// Rejected actions. None of these end a session.
var (
	ErrInvalidIndex    = errors.New("card index out of range")
	ErrNotYourTurn     = errors.New("it is not your turn")
	ErrSessionLocked   = errors.New("waiting for the revealed cards to resolve")
	ErrRoomFull        = errors.New("room is full")
	ErrCardUnavailable = errors.New("card is already face up or matched")
	ErrNoSession       = errors.New("connection is not in a session")
	ErrNotDuel         = errors.New("replays are only voted on in duel rooms")
	ErrWaitingForPeer  = errors.New("waiting for a second player")
	ErrInvalidRoomCode = errors.New("invalid room code")
	ErrUnknownMessage  = errors.New("unknown message type")
)

// statusText is the user-facing echo for rejections worth telling the
// requester about. Empty means reject silently.
func statusText(err error) string {
	switch {
	case errors.Is(err, ErrNotYourTurn):
		return "It is not your turn."
	case errors.Is(err, ErrRoomFull):
		return "That room already has two players."
	case errors.Is(err, ErrWaitingForPeer):
		return "Waiting for a second player to join."
	case errors.Is(err, ErrNotDuel):
		return "Start a new game to play again."
	case errors.Is(err, ErrInvalidRoomCode):
		return "Room codes must be 1-32 letters, digits, '-' or '_'."
	}
	return ""
}
