// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ocgully/construct/internal/bbserr"
)

// NormalizeBody normalizes newlines in a message body. Idempotent, per
// spec §8's round-trip law.
func NormalizeBody(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	return body
}

// InsertMessage inserts a new message, rejecting self-addressed mail
// (spec §8 invariant: M.sender_id != M.recipient_id).
func (s *Store) InsertMessage(ctx context.Context, m *Message) error {
	if m.SenderID == m.RecipientID {
		return bbserr.New(bbserr.Validation, "cannot send mail to yourself")
	}
	m.Body = NormalizeBody(m.Body)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (sender_id, recipient_id, subject, body, sent_at, is_read)
		VALUES (?, ?, ?, ?, ?, 0)
	`, m.SenderID, m.RecipientID, m.Subject, m.Body, timeStr(m.SentAt))
	if err != nil {
		return bbserr.Wrap(bbserr.Storage, "insert message", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return bbserr.Wrap(bbserr.Storage, "insert message: last insert id", err)
	}
	m.ID = id
	return nil
}

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	var m Message
	var sentAt string
	var isRead int
	if err := row.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Subject, &m.Body, &sentAt, &isRead); err != nil {
		return nil, err
	}
	m.SentAt = parseTime(sentAt)
	m.IsRead = isRead != 0
	return &m, nil
}

const messageColumns = `id, sender_id, recipient_id, subject, body, sent_at, is_read`

// ListInboxPage returns a page of a recipient's messages, newest first.
// Ownership is embedded in the query (spec §3).
func (s *Store) ListInboxPage(ctx context.Context, recipientID int64, page, pageSize int) ([]*Message, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE recipient_id = ? ORDER BY sent_at DESC LIMIT ? OFFSET ?
	`, recipientID, pageSize, offset)
	if err != nil {
		return nil, bbserr.Wrap(bbserr.Storage, "list inbox page", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, bbserr.Wrap(bbserr.Storage, "scan message row", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MessageByID fetches a message, checking the requester owns it (is sender
// or recipient) to enforce ownership at every query (spec §3).
func (s *Store) MessageByID(ctx context.Context, id, requesterID int64) (*Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, bbserr.New(bbserr.NotFound, "no such message")
	}
	if err != nil {
		return nil, bbserr.Wrap(bbserr.Storage, "lookup message", err)
	}
	if m.SenderID != requesterID && m.RecipientID != requesterID {
		return nil, bbserr.New(bbserr.NotFound, "no such message")
	}
	return m, nil
}

// MarkMessageRead sets is_read, scoped to the recipient.
func (s *Store) MarkMessageRead(ctx context.Context, id, recipientID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET is_read = 1 WHERE id = ? AND recipient_id = ?`, id, recipientID)
	if err != nil {
		return bbserr.Wrap(bbserr.Storage, "mark message read", err)
	}
	return nil
}

// DeleteMessage removes a message, scoped to the recipient.
func (s *Store) DeleteMessage(ctx context.Context, id, recipientID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ? AND recipient_id = ?`, id, recipientID)
	if err != nil {
		return bbserr.Wrap(bbserr.Storage, "delete message", err)
	}
	return nil
}

// CountUnread returns the number of unread messages for recipientID. This
// is an auxiliary path — storage errors here are swallowed by the caller
// (the Timer's status bar), per spec §7, not by the store itself.
func (s *Store) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE recipient_id = ? AND is_read = 0`, recipientID).Scan(&n)
	if err != nil {
		return 0, bbserr.Wrap(bbserr.Storage, "count unread", err)
	}
	return n, nil
}
