package memory

// Messages coming from clients
type ClientMessage struct {
	Type  string `json:"type"`            // "start_solo", "join_duel", "flip", "request_replay"
	Room  string `json:"room,omitempty"`  // join_duel
	Index *int   `json:"index,omitempty"` // flip
}

const (
	msgStartSolo     = "start_solo"
	msgJoinDuel      = "join_duel"
	msgFlip          = "flip"
	msgRequestReplay = "request_replay"
)

// Mode of a session.
type Mode string

const (
	Solo Mode = "solo"
	Duel Mode = "duel"
)

// Slot is a scoring identity, stable across replays.
type Slot string

const (
	Player1 Slot = "player1"
	Player2 Slot = "player2"
)

var slots = []Slot{Player1, Player2}

// Outcome of a finished round for one member.
type Outcome string

const (
	Win  Outcome = "win"
	Lose Outcome = "lose"
	Draw Outcome = "draw"
)

// CardView is a board position as the client sees it.
type CardView struct {
	ID      string `json:"id"`
	Suit    string `json:"suit,omitempty"`
	Rank    string `json:"rank,omitempty"`
	FaceUp  bool   `json:"face_up,omitempty"`
	Matched bool   `json:"matched,omitempty"`
}

type WinCounts struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

// Sent once per connection so the client can recognise its own id in turn_changed.
type ConnectedMessage struct {
	Type string `json:"type"` // "connected"
	ID   string `json:"id"`
}

type RoundStartedMessage struct {
	Type      string     `json:"type"` // "round_started"
	Mode      Mode       `json:"mode"`
	Deck      []CardView `json:"deck"`
	WinCounts *WinCounts `json:"win_counts,omitempty"` // duel only
}

type PlayerCountMessage struct {
	Type  string `json:"type"` // "player_count"
	Count int    `json:"count"`
}

type AssignedSlotMessage struct {
	Type string `json:"type"` // "assigned_slot"
	Slot Slot   `json:"slot"`
}

// MatchingStatusMessage is for user-facing notices ("waiting", "room full", etc.)
type MatchingStatusMessage struct {
	Type    string `json:"type"` // "matching_status"
	Message string `json:"message"`
}

type CardRevealedMessage struct {
	Type  string `json:"type"` // "card_revealed"
	Index int    `json:"index"`
	Suit  string `json:"suit"`
	Rank  string `json:"rank"`
}

type ScoreUpdateMessage struct {
	Type           string `json:"type"` // "score_update"
	Player         Slot   `json:"player"`
	Score          int    `json:"score"`
	MatchedIndices []int  `json:"matched_indices"`
}

type CardsHiddenMessage struct {
	Type   string `json:"type"` // "cards_hidden"
	Index1 int    `json:"index1"`
	Index2 int    `json:"index2"`
}

type TurnChangedMessage struct {
	Type  string `json:"type"` // "turn_changed"
	Owner string `json:"owner_connection_id"`
}

type RoundOverMessage struct {
	Type      string    `json:"type"` // "round_over"
	Outcome   Outcome   `json:"outcome"`
	WinCounts WinCounts `json:"win_counts"`
}

type PeerLeftMessage struct {
	Type string `json:"type"` // "peer_left"
}

type ReplayTallyMessage struct {
	Type  string `json:"type"` // "replay_tally"
	Count int    `json:"count"`
}

func statusMessage(text string) MatchingStatusMessage {
	return MatchingStatusMessage{Type: "matching_status", Message: text}
}

func playerCount(n int) PlayerCountMessage {
	return PlayerCountMessage{Type: "player_count", Count: n}
}

func turnChanged(owner string) TurnChangedMessage {
	return TurnChangedMessage{Type: "turn_changed", Owner: owner}
}
