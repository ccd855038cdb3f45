// Package models defines the persistent records for rooms, rounds and votes.
package models

import (
	"time"

	"gorm.io/datatypes"
)

// User is created on login. Usernames are self-asserted and never
// unique-checked; a repeated join overwrites the name (last write wins).
type User struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Username  string    `gorm:"size:64;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Room is created lazily on first join. CurrentGameID points at the active
// (non-revealed) round, if any.
type Room struct {
	ID            string    `gorm:"primaryKey;size:16"`
	Name          string    `gorm:"size:64;not null"`
	CurrentGameID *uint     `gorm:"index"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// RoomMember is the membership join table. There is no leave operation;
// membership only grows.
type RoomMember struct {
	RoomID   string    `gorm:"primaryKey;size:16"`
	UserID   string    `gorm:"primaryKey;size:64"`
	JoinedAt time.Time `gorm:"not null"`
}

// Game is one voting round. At most one non-revealed game exists per room;
// IsRevealed only ever transitions false -> true.
type Game struct {
	ID         uint      `gorm:"primaryKey"`
	RoomID     string    `gorm:"index;size:16;not null"`
	Title      string    `gorm:"size:64;not null"`
	IsRevealed bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// UserCard is a player's vote for one game. The composite key makes a later
// vote an overwrite, never a second record.
type UserCard struct {
	UserID    string    `gorm:"primaryKey;size:64"`
	GameID    uint      `gorm:"primaryKey"`
	Card      string    `gorm:"size:8;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// RoundHistory is the audit trail of rounds. One active entry per room;
// closed (EndedAt set, IsActive false) when its round is superseded.
type RoundHistory struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    string `gorm:"index;size:16;not null"`
	GameID    uint   `gorm:"index;not null"`
	StartedAt time.Time
	EndedAt   *time.Time
	IsActive  bool `gorm:"index;not null"`
}

// EventLog records every published domain event, written inside the same
// transaction as the mutation it describes.
type EventLog struct {
	ID        uint           `gorm:"primaryKey"`
	RoomID    string         `gorm:"index;size:16;not null"`
	GameID    *uint          `gorm:"index"`
	Type      string         `gorm:"size:32;not null"`
	Payload   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
