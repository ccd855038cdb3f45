// Package event defines the domain events published when room state changes.
// Events are a closed set of concrete types behind the Event interface so
// consumers can switch exhaustively instead of inspecting loose maps.
package event

// Kind tags the wire representation of each event type.
type Kind string

const (
	KindPlayerJoined    Kind = "playerJoined"
	KindCardSelected    Kind = "cardSelected"
	KindCardsRevealed   Kind = "cardsRevealed"
	KindNewRoundStarted Kind = "newRoundStarted"
	KindRoomState       Kind = "roomState"
)

// Player is the externally visible view of one room member.
// SelectedCard is nil until the player votes in the current round.
type Player struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	SelectedCard *string `json:"selectedCard"`
}

type Event interface {
	Kind() Kind
	Room() string
	isEvent()
}

// PlayerJoined is published on every joinRoom call, including idempotent
// rejoins. Clients must tolerate no-op updates.
type PlayerJoined struct {
	RoomID  string   `json:"roomId"`
	RoundID uint     `json:"roundId"`
	Players []Player `json:"players"`
}

// CardSelected is published when a vote lands without completing the round.
type CardSelected struct {
	RoomID          string   `json:"roomId"`
	RoundID         uint     `json:"roundId"`
	PlayerID        string   `json:"playerId"`
	CardValue       string   `json:"cardValue"`
	Players         []Player `json:"players"`
	AllPlayersVoted bool     `json:"allPlayersVoted"`
}

// CardsRevealed is published instead of CardSelected when the final vote
// completes the round, and carries the fully revealed board.
type CardsRevealed struct {
	RoomID  string   `json:"roomId"`
	RoundID uint     `json:"roundId"`
	Players []Player `json:"players"`
}

type NewRoundStarted struct {
	RoomID  string   `json:"roomId"`
	RoundID uint     `json:"roundId"`
	Players []Player `json:"players"`
}

// RoomState is synthesized per subscriber on reconnect; it is never produced
// by a mutation and always carries the full current state.
type RoomState struct {
	RoomID          string   `json:"roomId"`
	RoundID         *uint    `json:"roundId"`
	Players         []Player `json:"players"`
	IsRevealed      bool     `json:"isRevealed"`
	AllPlayersVoted bool     `json:"allPlayersVoted"`
}

func (PlayerJoined) Kind() Kind    { return KindPlayerJoined }
func (CardSelected) Kind() Kind    { return KindCardSelected }
func (CardsRevealed) Kind() Kind   { return KindCardsRevealed }
func (NewRoundStarted) Kind() Kind { return KindNewRoundStarted }
func (RoomState) Kind() Kind       { return KindRoomState }

func (e PlayerJoined) Room() string    { return e.RoomID }
func (e CardSelected) Room() string    { return e.RoomID }
func (e CardsRevealed) Room() string   { return e.RoomID }
func (e NewRoundStarted) Room() string { return e.RoomID }
func (e RoomState) Room() string       { return e.RoomID }

func (PlayerJoined) isEvent()    {}
func (CardSelected) isEvent()    {}
func (CardsRevealed) isEvent()   {}
func (NewRoundStarted) isEvent() {}
func (RoomState) isEvent()       {}
