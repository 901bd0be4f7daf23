package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/sessionbot/core/logger"
)

// Sessions stores one serialized MTProto session per user.
type Sessions struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSessions binds the store to db.
func NewSessions(db *sqlx.DB) *Sessions {
	return &Sessions{db: db, now: time.Now}
}

// Get returns the stored session. ok is false when the user is logged out.
func (s *Sessions) Get(ctx context.Context, userID int64) (string, bool, error) {
	var session string
	q := s.db.Rebind(`SELECT session FROM sessions WHERE user_id = ?`)
	err := s.db.GetContext(ctx, &session, q, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("get session %d: %w", userID, err)
	}
	return session, session != "", nil
}

// Set writes session for the user. An empty session logs the user out.
func (s *Sessions) Set(ctx context.Context, userID int64, session string) error {
	if session == "" {
		return s.Delete(ctx, userID)
	}
	q := s.db.Rebind(`INSERT INTO sessions (user_id, session, updated_at) VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET session = excluded.session, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, userID, session, s.now().UTC()); err != nil {
		return fmt.Errorf("set session %d: %w", userID, err)
	}
	logger.Store.Debug("session saved",
		slog.String("event", "store.session.set"),
		slog.Int64("user_id", userID),
		slog.Int("bytes", len(session)),
	)
	return nil
}

// Delete removes the stored session; deleting a missing session is not an error.
func (s *Sessions) Delete(ctx context.Context, userID int64) error {
	q := s.db.Rebind(`DELETE FROM sessions WHERE user_id = ?`)
	res, err := s.db.ExecContext(ctx, q, userID)
	if err != nil {
		return fmt.Errorf("delete session %d: %w", userID, err)
	}
	n, _ := res.RowsAffected()
	logger.Store.Debug("session deleted",
		slog.String("event", "store.session.delete"),
		slog.Int64("user_id", userID),
		slog.Int64("rows", n),
	)
	return nil
}
