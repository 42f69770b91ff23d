// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package store is the Data Store: user/session/history/message
// persistence over a single embedded SQLite engine in WAL mode, per
// spec §4.3.
package store

import "time"

// Level is one of the small enumerated, ordered user levels.
type Level int

const (
	LevelGuest Level = iota
	LevelUser
	LevelSysop
)

// ParseLevel maps a config-file level name to a Level, defaulting to
// LevelGuest on no match.
func ParseLevel(name string) Level {
	switch name {
	case "Sysop":
		return LevelSysop
	case "User":
		return LevelUser
	default:
		return LevelGuest
	}
}

func (l Level) String() string {
	switch l {
	case LevelSysop:
		return "Sysop"
	case LevelUser:
		return "User"
	default:
		return "Guest"
	}
}

// User is the persistent account record (spec §3).
type User struct {
	ID                int64
	Handle            string
	HandleLower       string
	Email             string
	PasswordHash      string
	Level             Level
	TotalLogins       int
	MessagesSent      int
	GamesPlayed       int
	TotalMinutes      int
	DailyMinutesUsed  int
	BankedMinutes     int
	LastDailyReset    time.Time
}

// AuthSession is a live, opaque-token login (spec §3).
type AuthSession struct {
	Token        string
	UserID       int64
	NodeID       *int
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
}

// SessionHistoryEntry is an append-only "Last Callers" ledger row.
type SessionHistoryEntry struct {
	ID              int64
	UserID          int64
	Handle          string
	LoginTime       time.Time
	LogoutTime      *time.Time
	DurationMinutes int
}

// Message is a piece of private mail.
type Message struct {
	ID          int64
	SenderID    int64
	RecipientID int64
	Subject     string
	Body        string
	SentAt      time.Time
	IsRead      bool
}

// VerificationCode is a 6-digit registration/email-change code.
type VerificationCode struct {
	ID            int64
	CorrelationID string
	Code          string
	Purpose       string
	Target        string
	ExpiresAt     time.Time
}
