// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/ocgully/construct/internal/bbserr"
)

// InsertVerificationCode stores a new registration/email-change code.
func (s *Store) InsertVerificationCode(ctx context.Context, v *VerificationCode) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_codes (correlation_id, code, purpose, target, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, v.CorrelationID, v.Code, v.Purpose, v.Target, timeStr(v.ExpiresAt))
	if err != nil {
		return bbserr.Wrap(bbserr.Storage, "insert verification code", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return bbserr.Wrap(bbserr.Storage, "insert verification code: last insert id", err)
	}
	v.ID = id
	return nil
}

// VerificationCodeByCorrelation fetches the most recent unexpired code for
// a correlation id (typically the in-progress registration's connection).
func (s *Store) VerificationCodeByCorrelation(ctx context.Context, correlationID string, now time.Time) (*VerificationCode, error) {
	var v VerificationCode
	var expiresAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, correlation_id, code, purpose, target, expires_at
		FROM verification_codes WHERE correlation_id = ? AND expires_at > ?
		ORDER BY id DESC LIMIT 1
	`, correlationID, timeStr(now)).Scan(&v.ID, &v.CorrelationID, &v.Code, &v.Purpose, &v.Target, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, bbserr.New(bbserr.NotFound, "no live verification code")
	}
	if err != nil {
		return nil, bbserr.Wrap(bbserr.Storage, "lookup verification code", err)
	}
	v.ExpiresAt = parseTime(expiresAt)
	return &v, nil
}

// DeleteVerificationCode removes a code once consumed.
func (s *Store) DeleteVerificationCode(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM verification_codes WHERE id = ?`, id)
	if err != nil {
		return bbserr.Wrap(bbserr.Storage, "delete verification code", err)
	}
	return nil
}

// SweepExpiredCodes deletes expired verification codes, called by the
// background sweeper alongside SweepExpiredSessions.
func (s *Store) SweepExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM verification_codes WHERE expires_at < ?`, timeStr(now))
	if err != nil {
		return 0, bbserr.Wrap(bbserr.Storage, "sweep expired verification codes", err)
	}
	return res.RowsAffected()
}
