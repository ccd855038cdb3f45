// Package gormstore implements storage.Store on GORM, backed by postgres in
// production and sqlite for local development and tests.
package gormstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ParzivalEugene/planning-poker/internal/models"
	"github.com/ParzivalEugene/planning-poker/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	db *gorm.DB
}

// OpenPostgres connects via pgx with a bounded pool and hands the connection
// to GORM.
func OpenPostgres(dsn string) (*Store, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	sqlDB := stdlib.OpenDB(*cfg)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return newStore(db)
}

// OpenSQLite opens a file-backed sqlite database using the pure Go driver.
func OpenSQLite(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newStore(db)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}
}

func newStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.RoomMember{},
		&models.Game{},
		&models.UserCard{},
		&models.RoundHistory{},
		&models.EventLog{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Atomic runs fn in one transaction. On postgres the transaction is
// serializable so concurrent completing votes cannot both skip the reveal.
// Sqlite serializes writers on its own and its driver rejects explicit
// isolation levels, so it runs with driver defaults.
func (s *Store) Atomic(ctx context.Context, fn func(storage.Store) error) error {
	var opts []*sql.TxOptions
	if s.db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	}, opts...)
}

func (s *Store) UpsertUser(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (s *Store) EnsureRoom(ctx context.Context, id, name string) (*models.Room, error) {
	room := models.Room{ID: id}
	err := s.db.WithContext(ctx).
		Where(models.Room{ID: id}).
		Attrs(models.Room{Name: name}).
		FirstOrCreate(&room).Error
	if err != nil {
		return nil, fmt.Errorf("ensure room: %w", err)
	}
	return &room, nil
}

func (s *Store) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	err := s.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &room, nil
}

func (s *Store) SetCurrentGame(ctx context.Context, roomID string, gameID uint) error {
	err := s.db.WithContext(ctx).Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("current_game_id", gameID).Error
	if err != nil {
		return fmt.Errorf("set current game: %w", err)
	}
	return nil
}

func (s *Store) AddMember(ctx context.Context, roomID, userID string) error {
	member := models.RoomMember{RoomID: roomID, UserID: userID, JoinedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&member).Error
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *Store) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return count > 0, nil
}

func (s *Store) CountMembers(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

func (s *Store) ListMembers(ctx context.Context, roomID string) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Joins("JOIN room_members ON room_members.user_id = users.id").
		Where("room_members.room_id = ?", roomID).
		Order("room_members.joined_at").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return users, nil
}

func (s *Store) CreateGame(ctx context.Context, game *models.Game) error {
	if err := s.db.WithContext(ctx).Create(game).Error; err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	return nil
}

func (s *Store) ActiveGame(ctx context.Context, roomID string) (*models.Game, error) {
	var game models.Game
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND is_revealed = ?", roomID, false).
		Order("id DESC").
		First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("active game: %w", err)
	}
	return &game, nil
}

func (s *Store) LatestGame(ctx context.Context, roomID string) (*models.Game, error) {
	var game models.Game
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id DESC").
		First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest game: %w", err)
	}
	return &game, nil
}

func (s *Store) RevealGame(ctx context.Context, gameID uint) (bool, error) {
	// Guarded update: the WHERE clause makes the flip observable exactly once
	// even if two transactions race past the completeness check.
	res := s.db.WithContext(ctx).Model(&models.Game{}).
		Where("id = ? AND is_revealed = ?", gameID, false).
		Update("is_revealed", true)
	if res.Error != nil {
		return false, fmt.Errorf("reveal game: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) RevealActiveGames(ctx context.Context, roomID string) error {
	err := s.db.WithContext(ctx).Model(&models.Game{}).
		Where("room_id = ? AND is_revealed = ?", roomID, false).
		Update("is_revealed", true).Error
	if err != nil {
		return fmt.Errorf("reveal active games: %w", err)
	}
	return nil
}

func (s *Store) UpsertVote(ctx context.Context, vote *models.UserCard) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "game_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"card", "updated_at"}),
	}).Create(vote).Error
	if err != nil {
		return fmt.Errorf("upsert vote: %w", err)
	}
	return nil
}

func (s *Store) VotesForGame(ctx context.Context, gameID uint) (map[string]string, error) {
	var votes []models.UserCard
	err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Find(&votes).Error
	if err != nil {
		return nil, fmt.Errorf("votes for game: %w", err)
	}
	byUser := make(map[string]string, len(votes))
	for _, v := range votes {
		byUser[v.UserID] = v.Card
	}
	return byUser, nil
}

func (s *Store) OpenRoundHistory(ctx context.Context, roomID string, gameID uint) error {
	entry := models.RoundHistory{
		RoomID:    roomID,
		GameID:    gameID,
		StartedAt: time.Now(),
		IsActive:  true,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("open round history: %w", err)
	}
	return nil
}

func (s *Store) CloseRoundHistory(ctx context.Context, roomID string) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(&models.RoundHistory{}).
		Where("room_id = ? AND is_active = ?", roomID, true).
		Updates(map[string]any{"is_active": false, "ended_at": &now}).Error
	if err != nil {
		return fmt.Errorf("close round history: %w", err)
	}
	return nil
}

func (s *Store) AppendEventLog(ctx context.Context, entry *models.EventLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append event log: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
