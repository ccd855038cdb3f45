// Package poker implements the room lifecycle: joins, votes, reveals and
// new rounds. Every mutation runs in one store transaction and publishes a
// single domain event after the transaction commits, so subscribers never
// observe an event before its effects are durable.
package poker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/ParzivalEugene/planning-poker/internal/bus"
	"github.com/ParzivalEugene/planning-poker/internal/event"
	"github.com/ParzivalEugene/planning-poker/internal/metrics"
	"github.com/ParzivalEugene/planning-poker/internal/models"
	"github.com/ParzivalEugene/planning-poker/internal/storage"
)

// MaxPlayers is the hard admission cap per room. Rejoins of existing
// members never count against it.
const MaxPlayers = 10

const gameTitle = "Planning Session"

type Service struct {
	store storage.Store
	bus   bus.Bus
	log   *zap.Logger
}

func New(store storage.Store, b bus.Bus, log *zap.Logger) *Service {
	return &Service{store: store, bus: b, log: log}
}

type JoinResult struct {
	Players    []event.Player
	RoundID    uint
	IsRevealed bool
}

type SelectResult struct {
	Player          event.Player
	RoundID         uint
	IsRevealed      bool
	AllPlayersVoted bool
}

type StartResult struct {
	Players []event.Player
	RoundID uint
}

// State is the externally visible room snapshot. RoundID is nil only when
// the room exists but no round was ever created.
type State struct {
	Players         []event.Player
	RoundID         *uint
	IsRevealed      bool
	AllPlayersVoted bool
}

// JoinRoom admits a player, lazily creating the user, the room, and an
// active round when none exists. Rejoining is a membership no-op but still
// publishes a playerJoined event; clients tolerate duplicate updates.
func (s *Service) JoinRoom(ctx context.Context, roomID, playerID, playerName string) (*JoinResult, error) {
	var res JoinResult
	var evt event.Event

	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		if _, err := tx.GetRoom(ctx, roomID); err == nil {
			member, err := tx.IsMember(ctx, roomID, playerID)
			if err != nil {
				return err
			}
			if !member {
				count, err := tx.CountMembers(ctx, roomID)
				if err != nil {
					return err
				}
				if count >= MaxPlayers {
					return ErrRoomFull
				}
			}
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		if err := tx.UpsertUser(ctx, &models.User{ID: playerID, Username: playerName}); err != nil {
			return err
		}
		if _, err := tx.EnsureRoom(ctx, roomID, fmt.Sprintf("Planning Room %s", roomID)); err != nil {
			return err
		}
		if err := tx.AddMember(ctx, roomID, playerID); err != nil {
			return err
		}

		game, err := tx.ActiveGame(ctx, roomID)
		if errors.Is(err, storage.ErrNotFound) {
			game, err = s.openRound(ctx, tx, roomID)
		}
		if err != nil {
			return err
		}

		players, err := s.playersForGame(ctx, tx, roomID, game.ID)
		if err != nil {
			return err
		}

		res = JoinResult{Players: players, RoundID: game.ID, IsRevealed: game.IsRevealed}
		evt = event.PlayerJoined{RoomID: roomID, RoundID: game.ID, Players: players}
		return s.logEvent(ctx, tx, evt, &game.ID)
	})
	if err != nil {
		return nil, err
	}

	s.publish(evt)
	return &res, nil
}

// SelectCard records a player's vote for the active round, overwriting any
// earlier vote. When the vote completes the set, the round is revealed in
// the same transaction and cardsRevealed is published instead of
// cardSelected. The completeness check reads vote state after the upsert,
// inside the same transaction; checking before the write lands would lose
// reveals under concurrency.
func (s *Service) SelectCard(ctx context.Context, roomID, playerID, cardValue string) (*SelectResult, error) {
	var res SelectResult
	var evt event.Event

	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		game, err := tx.LatestGame(ctx, roomID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNoActiveGame
		}
		if err != nil {
			return err
		}
		if game.IsRevealed {
			return ErrAlreadyRevealed
		}

		member, err := tx.IsMember(ctx, roomID, playerID)
		if err != nil {
			return err
		}
		if !member {
			return ErrNotAMember
		}

		if err := tx.UpsertVote(ctx, &models.UserCard{UserID: playerID, GameID: game.ID, Card: cardValue}); err != nil {
			return err
		}

		players, err := s.playersForGame(ctx, tx, roomID, game.ID)
		if err != nil {
			return err
		}
		all := AllVoted(players)

		revealed := false
		if all {
			revealed, err = tx.RevealGame(ctx, game.ID)
			if err != nil {
				return err
			}
		}

		if revealed {
			evt = event.CardsRevealed{RoomID: roomID, RoundID: game.ID, Players: players}
		} else {
			evt = event.CardSelected{
				RoomID:          roomID,
				RoundID:         game.ID,
				PlayerID:        playerID,
				CardValue:       cardValue,
				Players:         players,
				AllPlayersVoted: all,
			}
		}

		res = SelectResult{
			RoundID:         game.ID,
			IsRevealed:      revealed,
			AllPlayersVoted: all,
		}
		for _, p := range players {
			if p.ID == playerID {
				res.Player = p
				break
			}
		}
		return s.logEvent(ctx, tx, evt, &game.ID)
	})
	if err != nil {
		return nil, err
	}

	s.publish(evt)
	return &res, nil
}

// StartNewRound force-reveals any active round, discards nothing (partial
// votes stay with the old round), and opens a fresh round with every card
// reset.
func (s *Service) StartNewRound(ctx context.Context, roomID string) (*StartResult, error) {
	var res StartResult
	var evt event.Event

	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		if _, err := tx.GetRoom(ctx, roomID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrRoomNotFound
			}
			return err
		}

		if err := tx.RevealActiveGames(ctx, roomID); err != nil {
			return err
		}

		game, err := s.openRound(ctx, tx, roomID)
		if err != nil {
			return err
		}

		members, err := tx.ListMembers(ctx, roomID)
		if err != nil {
			return err
		}
		players := PlayersData(members, nil)

		res = StartResult{Players: players, RoundID: game.ID}
		evt = event.NewRoundStarted{RoomID: roomID, RoundID: game.ID, Players: players}
		return s.logEvent(ctx, tx, evt, &game.ID)
	})
	if err != nil {
		return nil, err
	}

	s.publish(evt)
	return &res, nil
}

// RoomState reads the current board inside one transaction so membership
// and votes come from the same snapshot. After an auto-reveal and before
// the next round, the latest (revealed) round's votes stay visible.
func (s *Service) RoomState(ctx context.Context, roomID string) (*State, error) {
	var st State

	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		if _, err := tx.GetRoom(ctx, roomID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrRoomNotFound
			}
			return err
		}

		game, err := tx.LatestGame(ctx, roomID)
		if errors.Is(err, storage.ErrNotFound) {
			members, err := tx.ListMembers(ctx, roomID)
			if err != nil {
				return err
			}
			st = State{Players: PlayersData(members, nil)}
			return nil
		}
		if err != nil {
			return err
		}

		players, err := s.playersForGame(ctx, tx, roomID, game.ID)
		if err != nil {
			return err
		}

		st = State{
			Players:         players,
			RoundID:         &game.ID,
			IsRevealed:      game.IsRevealed,
			AllPlayersVoted: AllVoted(players),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Login creates a user with a fresh id and a self-asserted name. Names are
// never unique-checked.
func (s *Service) Login(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{ID: uuid.New().String(), Username: username}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("user logged in", zap.String("user_id", user.ID), zap.String("username", username))
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

// openRound closes the superseded round's history entry and creates the new
// active round.
func (s *Service) openRound(ctx context.Context, tx storage.Store, roomID string) (*models.Game, error) {
	if err := tx.CloseRoundHistory(ctx, roomID); err != nil {
		return nil, err
	}
	game := &models.Game{RoomID: roomID, Title: gameTitle}
	if err := tx.CreateGame(ctx, game); err != nil {
		return nil, err
	}
	if err := tx.SetCurrentGame(ctx, roomID, game.ID); err != nil {
		return nil, err
	}
	if err := tx.OpenRoundHistory(ctx, roomID, game.ID); err != nil {
		return nil, err
	}
	return game, nil
}

func (s *Service) playersForGame(ctx context.Context, tx storage.Store, roomID string, gameID uint) ([]event.Player, error) {
	members, err := tx.ListMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	votes, err := tx.VotesForGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return PlayersData(members, votes), nil
}

func (s *Service) logEvent(ctx context.Context, tx storage.Store, evt event.Event, gameID *uint) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return tx.AppendEventLog(ctx, &models.EventLog{
		RoomID:  evt.Room(),
		GameID:  gameID,
		Type:    string(evt.Kind()),
		Payload: datatypes.JSON(payload),
	})
}

func (s *Service) publish(evt event.Event) {
	s.bus.Publish(evt.Room(), evt)
	metrics.EventsPublished.WithLabelValues(string(evt.Kind())).Inc()
	s.log.Debug("event published",
		zap.String("room_id", evt.Room()),
		zap.String("type", string(evt.Kind())),
	)
}
