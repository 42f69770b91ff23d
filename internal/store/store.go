// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the Data Store: a single *sql.DB in WAL mode shared by every
// query in this package, grounded on the teacher pack's sqlite idiom
// (go-mizu-mizu/blueprints/bi/store/sqlite/store.go) — one writer, many
// concurrent readers, parameterised queries only.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if necessary) the SQLite database at path in WAL
// mode and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	handle TEXT NOT NULL,
	handle_lower TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	level INTEGER NOT NULL DEFAULT 0,
	total_logins INTEGER NOT NULL DEFAULT 0,
	messages_sent INTEGER NOT NULL DEFAULT 0,
	games_played INTEGER NOT NULL DEFAULT 0,
	total_minutes INTEGER NOT NULL DEFAULT 0,
	daily_minutes_used INTEGER NOT NULL DEFAULT 0,
	banked_minutes INTEGER NOT NULL DEFAULT 0,
	last_daily_reset TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id),
	node_id INTEGER,
	created_at TEXT NOT NULL,
	last_activity TEXT NOT NULL,
	expires_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

CREATE TABLE IF NOT EXISTS session_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id),
	handle TEXT NOT NULL,
	login_time TEXT NOT NULL,
	logout_time TEXT,
	duration_minutes INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id INTEGER NOT NULL REFERENCES users(id),
	recipient_id INTEGER NOT NULL REFERENCES users(id),
	subject TEXT NOT NULL,
	body TEXT NOT NULL,
	sent_at TEXT NOT NULL,
	is_read INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient_id);

CREATE TABLE IF NOT EXISTS verification_codes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	correlation_id TEXT NOT NULL,
	code TEXT NOT NULL,
	purpose TEXT NOT NULL,
	target TEXT NOT NULL,
	expires_at TEXT NOT NULL
);
`

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";\n\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func timeStr(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
