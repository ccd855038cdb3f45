package poker

import "errors"

var ErrRoomFull = errors.New("room is full (maximum 10 players)")
var ErrRoomNotFound = errors.New("room not found")
var ErrNoActiveGame = errors.New("no active game found for this room")
var ErrAlreadyRevealed = errors.New("cards are already revealed, start a new round to vote again")
var ErrNotAMember = errors.New("player is not a member of this room")
