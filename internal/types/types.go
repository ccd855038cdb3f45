// Package types defines the JSON wire messages exchanged with clients.
package types

import "github.com/ParzivalEugene/planning-poker/internal/event"

// Deck is the card vocabulary clients render. The core stores whatever
// string a client sends; membership in this list is a client concern.
var Deck = []string{"0", "1", "2", "3", "5", "8", "13", "20", "40", "100"}

type LoginRequest struct {
	Username string `json:"username"`
}

type LoginResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type JoinRoomRequest struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type JoinRoomResponse struct {
	Success    bool           `json:"success"`
	Players    []event.Player `json:"players"`
	RoundID    uint           `json:"roundId"`
	IsRevealed bool           `json:"isRevealed"`
}

type SelectCardRequest struct {
	PlayerID  string `json:"playerId"`
	CardValue string `json:"cardValue"`
}

type SelectCardResponse struct {
	Success         bool         `json:"success"`
	Player          event.Player `json:"player"`
	RoundID         uint         `json:"roundId"`
	IsRevealed      bool         `json:"isRevealed"`
	AllPlayersVoted bool         `json:"allPlayersVoted"`
}

type StartRoundResponse struct {
	Success bool           `json:"success"`
	Players []event.Player `json:"players"`
	RoundID uint           `json:"roundId"`
}

type RoomStateResponse struct {
	Players         []event.Player `json:"players"`
	RoundID         *uint          `json:"roundId"`
	IsRevealed      bool           `json:"isRevealed"`
	AllPlayersVoted bool           `json:"allPlayersVoted"`
}

type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

type DeckResponse struct {
	Cards []string `json:"cards"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ServerMessage is one frame on the update stream. ID is the resumption
// token the client echoes back as lastEventId after a reconnect.
type ServerMessage struct {
	ID      string      `json:"id"`
	Type    event.Kind  `json:"type"`
	Payload event.Event `json:"payload"`
}
