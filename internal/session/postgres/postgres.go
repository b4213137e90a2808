// Package postgres persists terminal sessions in PostgreSQL so a counter
// that boots on shared hardware picks up the operator who last logged in.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ezshop/terminal/internal/domain"
	"ezshop/terminal/internal/session"
)

type Store struct {
	db         *sql.DB
	terminalID string
}

func New(ctx context.Context, databaseURL string, terminalID string) (*Store, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return nil, errors.New("terminal id required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, terminalID: terminalID}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS terminal_sessions (
			terminal_id TEXT PRIMARY KEY,
			token       TEXT NOT NULL,
			user_id     INTEGER NOT NULL DEFAULT 0,
			username    TEXT NOT NULL,
			role        TEXT NOT NULL,
			saved_at    TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

func (s *Store) Load(ctx context.Context) (session.Record, error) {
	var (
		record session.Record
		role   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT token, user_id, username, role, saved_at
		FROM terminal_sessions
		WHERE terminal_id = $1
	`, s.terminalID).Scan(&record.Token, &record.User.ID, &record.User.Username, &role, &record.SavedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Record{}, session.ErrNoSession
		}
		return session.Record{}, err
	}
	record.User.Type = domain.UserType(role)
	return record, nil
}

func (s *Store) Save(ctx context.Context, record session.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO terminal_sessions (terminal_id, token, user_id, username, role, saved_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (terminal_id)
		DO UPDATE SET token = EXCLUDED.token,
			user_id = EXCLUDED.user_id,
			username = EXCLUDED.username,
			role = EXCLUDED.role,
			saved_at = EXCLUDED.saved_at
	`, s.terminalID, record.Token, record.User.ID, record.User.Username, string(record.User.Type), record.SavedAt)
	return err
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM terminal_sessions WHERE terminal_id = $1`, s.terminalID)
	return err
}
