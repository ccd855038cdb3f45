// Package storage provides abstractions for persistent room, round and vote
// data. The interface keeps the lifecycle logic independent of the backing
// database so postgres (production) and sqlite (dev/tests) are
// interchangeable.
package storage

import (
	"context"
	"errors"

	"github.com/ParzivalEugene/planning-poker/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the persistence operations the poker service composes inside
// transactions.
type Store interface {
	// Atomic runs fn inside a single transaction and passes it a Store bound
	// to that transaction. On backends that support it the transaction is
	// serializable: the select-card path must observe its own vote upsert
	// when it re-reads vote state, and two concurrent completing votes must
	// not both miss the reveal.
	Atomic(ctx context.Context, fn func(Store) error) error

	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)

	EnsureRoom(ctx context.Context, id, name string) (*models.Room, error)
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	SetCurrentGame(ctx context.Context, roomID string, gameID uint) error

	AddMember(ctx context.Context, roomID, userID string) error
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	CountMembers(ctx context.Context, roomID string) (int64, error)
	ListMembers(ctx context.Context, roomID string) ([]models.User, error)

	CreateGame(ctx context.Context, game *models.Game) error
	// ActiveGame returns the newest non-revealed game for the room, or
	// ErrNotFound when every game is revealed or none exists.
	ActiveGame(ctx context.Context, roomID string) (*models.Game, error)
	// LatestGame returns the newest game regardless of reveal status.
	LatestGame(ctx context.Context, roomID string) (*models.Game, error)
	// RevealGame flips IsRevealed on one game and reports whether this call
	// performed the flip. A game already revealed reports false.
	RevealGame(ctx context.Context, gameID uint) (bool, error)
	// RevealActiveGames force-reveals every non-revealed game in the room.
	RevealActiveGames(ctx context.Context, roomID string) error

	UpsertVote(ctx context.Context, vote *models.UserCard) error
	VotesForGame(ctx context.Context, gameID uint) (map[string]string, error)

	OpenRoundHistory(ctx context.Context, roomID string, gameID uint) error
	CloseRoundHistory(ctx context.Context, roomID string) error

	AppendEventLog(ctx context.Context, entry *models.EventLog) error

	Close() error
}
