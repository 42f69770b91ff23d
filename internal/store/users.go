// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ocgully/construct/internal/bbserr"
)

// CreateUser inserts a new user, setting u.HandleLower from u.Handle and
// defaulting u.LastDailyReset to now when it is zero. Password hashing is
// the caller's job; the store does no authentication logic (spec §4.3).
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	u.HandleLower = strings.ToLower(u.Handle)
	if u.LastDailyReset.IsZero() {
		u.LastDailyReset = s.now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (handle, handle_lower, email, password_hash, level,
			total_logins, messages_sent, games_played, total_minutes,
			daily_minutes_used, banked_minutes, last_daily_reset)
		VALUES (?, ?, ?, ?, ?, 0, 0, 0, 0, 0, 0, ?)
	`, u.Handle, u.HandleLower, u.Email, u.PasswordHash, int(u.Level), timeStr(u.LastDailyReset))
	if err != nil {
		return bbserr.Wrap(bbserr.Storage, "create user", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return bbserr.Wrap(bbserr.Storage, "create user: last insert id", err)
	}
	u.ID = id
	return nil
}

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var level int
	var lastReset string
	if err := row.Scan(&u.ID, &u.Handle, &u.HandleLower, &u.Email, &u.PasswordHash, &level,
		&u.TotalLogins, &u.MessagesSent, &u.GamesPlayed, &u.TotalMinutes,
		&u.DailyMinutesUsed, &u.BankedMinutes, &lastReset); err != nil {
		return nil, err
	}
	u.Level = Level(level)
	u.LastDailyReset = parseTime(lastReset)
	return &u, nil
}

const userColumns = `id, handle, handle_lower, email, password_hash, level,
	total_logins, messages_sent, games_played, total_minutes,
	daily_minutes_used, banked_minutes, last_daily_reset`

// UserByHandle looks up a user case-insensitively. Returns bbserr.NotFound
// if no such user exists.
func (s *Store) UserByHandle(ctx context.Context, handle string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE handle_lower = ?`, strings.ToLower(handle))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, bbserr.New(bbserr.NotFound, "no such user")
	}
	if err != nil {
		return nil, bbserr.Wrap(bbserr.Storage, "lookup user by handle", err)
	}
	return u, nil
}

// UserByID looks up a user by primary key.
func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, bbserr.New(bbserr.NotFound, "no such user")
	}
	if err != nil {
		return nil, bbserr.Wrap(bbserr.Storage, "lookup user by id", err)
	}
	return u, nil
}

// UpdateUserCounters persists mutable per-user counters and ledger fields.
// This is the only path that writes user mutable state, per spec §5
// ("only the Data Store writes; Sessions read through it").
func (s *Store) UpdateUserCounters(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			total_logins = ?, messages_sent = ?, games_played = ?, total_minutes = ?,
			daily_minutes_used = ?, banked_minutes = ?, last_daily_reset = ?
		WHERE id = ?
	`, u.TotalLogins, u.MessagesSent, u.GamesPlayed, u.TotalMinutes,
		u.DailyMinutesUsed, u.BankedMinutes, timeStr(u.LastDailyReset), u.ID)
	if err != nil {
		return bbserr.Wrap(bbserr.Storage, "update user counters", err)
	}
	return nil
}

// VerifyCredentials looks up a user by handle and returns it; it does not
// inspect the password hash. Argon2 comparison lives in internal/auth to
// keep the store free of authentication logic (spec §4.3).
func (s *Store) VerifyCredentials(ctx context.Context, handle string) (*User, error) {
	u, err := s.UserByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	return u, nil
}
