// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/ocgully/construct/internal/bbserr"
)

// AppendHistory opens a new SessionHistoryEntry at login time.
func (s *Store) AppendHistory(ctx context.Context, userID int64, handle string, loginTime time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO session_history (user_id, handle, login_time, logout_time, duration_minutes)
		VALUES (?, ?, ?, NULL, 0)
	`, userID, handle, timeStr(loginTime))
	if err != nil {
		return 0, bbserr.Wrap(bbserr.Storage, "append session history", err)
	}
	return res.LastInsertId()
}

// CloseHistory fills in logout_time and duration_minutes for an entry
// opened by AppendHistory. Runs on every termination path (spec §4.10).
func (s *Store) CloseHistory(ctx context.Context, id int64, logoutTime time.Time, durationMinutes int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE session_history SET logout_time = ?, duration_minutes = ? WHERE id = ?
	`, timeStr(logoutTime), durationMinutes, id)
	if err != nil {
		return bbserr.Wrap(bbserr.Storage, "close session history", err)
	}
	return nil
}

// RecentHistory returns the most recent closed entries, newest first, for
// "Last Callers" rendering.
func (s *Store) RecentHistory(ctx context.Context, limit int) ([]*SessionHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, handle, login_time, logout_time, duration_minutes
		FROM session_history WHERE logout_time IS NOT NULL
		ORDER BY login_time DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, bbserr.Wrap(bbserr.Storage, "recent history", err)
	}
	defer rows.Close()

	var out []*SessionHistoryEntry
	for rows.Next() {
		var e SessionHistoryEntry
		var loginTime string
		var logoutTime sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Handle, &loginTime, &logoutTime, &e.DurationMinutes); err != nil {
			return nil, bbserr.Wrap(bbserr.Storage, "scan history row", err)
		}
		e.LoginTime = parseTime(loginTime)
		if logoutTime.Valid {
			t := parseTime(logoutTime.String)
			e.LogoutTime = &t
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// MinutesUsedToday sums closed history durations today for a user,
// supporting the invariant in spec §8
// ("∑ session_history.duration_minutes ... ≥ users.daily_minutes_used").
func (s *Store) MinutesUsedToday(ctx context.Context, userID int64, todayPrefix string) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(duration_minutes) FROM session_history
		WHERE user_id = ? AND login_time LIKE ? || '%'
	`, userID, todayPrefix).Scan(&total)
	if err != nil {
		return 0, bbserr.Wrap(bbserr.Storage, "sum minutes used today", err)
	}
	return int(total.Int64), nil
}
