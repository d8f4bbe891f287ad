// Package store keeps an SQLite audit log of actuator commands.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultRecentLimit bounds RecentCommands when no limit is given.
const DefaultRecentLimit = 50

// CommandEvent is one emitted actuator command.
type CommandEvent struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Seq       uint64    `json:"seq"`
	At        time.Time `json:"at"`
	Command   string    `json:"command"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Labels    []string  `json:"labels"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists.
// ":memory:" gives a private in-memory log.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path cannot be empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// A single connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS commands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			at TEXT NOT NULL,
			command TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			labels TEXT NOT NULL DEFAULT '[]',
			delivered INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_commands_run ON commands(run_id);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// RecordCommand appends ev to the log.
func (s *Store) RecordCommand(ctx context.Context, ev CommandEvent) error {
	labels := ev.Labels
	if labels == nil {
		labels = []string{}
	}
	raw, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO commands (run_id, seq, at, command, from_state, to_state, labels, delivered, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, int64(ev.Seq), ev.At.UTC().Format(time.RFC3339Nano), ev.Command,
		ev.FromState, ev.ToState, string(raw), ev.Delivered, ev.Error)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return nil
}

// RecentCommands returns up to limit events, newest first.
func (s *Store) RecentCommands(ctx context.Context, limit int) ([]CommandEvent, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, seq, at, command, from_state, to_state, labels, delivered, error
		 FROM commands ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	events := []CommandEvent{}
	for rows.Next() {
		var (
			ev     CommandEvent
			seq    int64
			at     string
			labels string
		)
		if err := rows.Scan(&ev.ID, &ev.RunID, &seq, &at, &ev.Command, &ev.FromState, &ev.ToState,
			&labels, &ev.Delivered, &ev.Error); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		ev.Seq = uint64(seq)
		if ev.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", at, err)
		}
		if err := json.Unmarshal([]byte(labels), &ev.Labels); err != nil {
			return nil, fmt.Errorf("decode labels: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
