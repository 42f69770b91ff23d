// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/ocgully/construct/internal/bbserr"
)

// NewSessionToken returns a fresh opaque, unguessable auth token.
func NewSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", bbserr.Wrap(bbserr.Crypto, "generate session token", err)
	}
	return hex.EncodeToString(buf), nil
}

// CreateSession inserts a new AuthSession row. Invariant: at most one live
// AuthSession per user (spec §3) — callers must check ListSessionsByUser
// first; the store itself does not enforce uniqueness since a stale expired
// row for the same user is legal.
func (s *Store) CreateSession(ctx context.Context, sess *AuthSession) error {
	var nodeID sql.NullInt64
	if sess.NodeID != nil {
		nodeID = sql.NullInt64{Int64: int64(*sess.NodeID), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, node_id, created_at, last_activity, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sess.Token, sess.UserID, nodeID, timeStr(sess.CreatedAt), timeStr(sess.LastActivity), timeStr(sess.ExpiresAt))
	if err != nil {
		return bbserr.Wrap(bbserr.Storage, "create session", err)
	}
	return nil
}

func scanSession(row interface{ Scan(...any) error }) (*AuthSession, error) {
	var sess AuthSession
	var nodeID sql.NullInt64
	var createdAt, lastActivity, expiresAt string
	if err := row.Scan(&sess.Token, &sess.UserID, &nodeID, &createdAt, &lastActivity, &expiresAt); err != nil {
		return nil, err
	}
	if nodeID.Valid {
		n := int(nodeID.Int64)
		sess.NodeID = &n
	}
	sess.CreatedAt = parseTime(createdAt)
	sess.LastActivity = parseTime(lastActivity)
	sess.ExpiresAt = parseTime(expiresAt)
	return &sess, nil
}

const sessionColumns = `token, user_id, node_id, created_at, last_activity, expires_at`

// SessionByToken looks up a session row by its opaque token. Expired rows
// are returned too; callers check ExpiresAt.
func (s *Store) SessionByToken(ctx context.Context, token string) (*AuthSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = ?`, token)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, bbserr.New(bbserr.NotFound, "no such session")
	}
	if err != nil {
		return nil, bbserr.Wrap(bbserr.Storage, "lookup session by token", err)
	}
	return sess, nil
}

// ListSessionsByUser returns all session rows (live or not) for a user; the
// caller filters by ExpiresAt to implement the duplicate-login guard.
func (s *Store) ListSessionsByUser(ctx context.Context, userID int64) ([]*AuthSession, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, bbserr.Wrap(bbserr.Storage, "list sessions by user", err)
	}
	defer rows.Close()

	var out []*AuthSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, bbserr.Wrap(bbserr.Storage, "scan session row", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// BindSessionNode records the node id claimed for a session once it is
// assigned (spec §3 AuthSession lifecycle).
func (s *Store) BindSessionNode(ctx context.Context, token string, nodeID int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET node_id = ? WHERE token = ?`, nodeID, token)
	if err != nil {
		return bbserr.Wrap(bbserr.Storage, "bind session node", err)
	}
	return nil
}

// TouchSession renews last_activity and expiry, used to keep a live session
// from being swept as expired while its node is in use.
func (s *Store) TouchSession(ctx context.Context, token string, at, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?`,
		timeStr(at), timeStr(expiresAt), token)
	if err != nil {
		return bbserr.Wrap(bbserr.Storage, "touch session", err)
	}
	return nil
}

// DeleteSession removes a session row (clean logout, timeout, or dirty
// disconnect teardown — spec §4.10 finalize()).
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return bbserr.Wrap(bbserr.Storage, "delete session", err)
	}
	return nil
}

// SweepExpiredSessions deletes all sessions whose expiry has passed and
// returns how many were removed. Invoked periodically by the background
// sweeper (spec §4.3).
func (s *Store) SweepExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, timeStr(now))
	if err != nil {
		return 0, bbserr.Wrap(bbserr.Storage, "sweep expired sessions", err)
	}
	return res.RowsAffected()
}
