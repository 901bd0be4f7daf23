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

const dayLayout = "2006-01-02"

// Profile is a row of the users table.
type Profile struct {
	ID           int64      `db:"id"`
	Name         string     `db:"name"`
	Premium      bool       `db:"premium"`
	PremiumUntil *time.Time `db:"premium_until"`
	DailyUsage   int        `db:"daily_usage"`
	UsageDay     string     `db:"usage_day"`
	DumpChatID   *int64     `db:"dump_chat_id"`
	Thumbnail    *string    `db:"thumbnail"`
	Caption      *string    `db:"caption"`
	CreatedAt    time.Time  `db:"created_at"`
}

// IsPremium reports whether premium is active at now.
func (p Profile) IsPremium(now time.Time) bool {
	if !p.Premium {
		return false
	}
	return p.PremiumUntil == nil || p.PremiumUntil.After(now)
}

// UsageOn returns the usage counter for the UTC day of now; a counter from
// an earlier day reads as zero.
func (p Profile) UsageOn(now time.Time) int {
	if p.UsageDay != now.UTC().Format(dayLayout) {
		return 0
	}
	return p.DailyUsage
}

// Users stores user profiles.
type Users struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewUsers binds the store to db.
func NewUsers(db *sqlx.DB) *Users {
	return &Users{db: db, now: time.Now}
}

// Exists reports whether a profile row exists for userID.
func (u *Users) Exists(ctx context.Context, userID int64) (bool, error) {
	var n int
	q := u.db.Rebind(`SELECT COUNT(1) FROM users WHERE id = ?`)
	if err := u.db.GetContext(ctx, &n, q, userID); err != nil {
		return false, fmt.Errorf("check user %d: %w", userID, err)
	}
	return n > 0, nil
}

// Add creates a profile; an existing row is left untouched.
func (u *Users) Add(ctx context.Context, userID int64, name string) error {
	q := u.db.Rebind(`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`)
	res, err := u.db.ExecContext(ctx, q, userID, name, u.now().UTC())
	if err != nil {
		return fmt.Errorf("add user %d: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Store.Info("user added",
			slog.String("event", "store.user.add"),
			slog.Int64("user_id", userID),
		)
	}
	return nil
}

// Profile loads the profile of userID.
func (u *Users) Profile(ctx context.Context, userID int64) (Profile, bool, error) {
	var p Profile
	q := u.db.Rebind(`SELECT id, name, premium, premium_until, daily_usage, usage_day,
dump_chat_id, thumbnail, caption, created_at FROM users WHERE id = ?`)
	err := u.db.GetContext(ctx, &p, q, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Profile{}, false, nil
	case err != nil:
		return Profile{}, false, fmt.Errorf("load user %d: %w", userID, err)
	}
	return p, true, nil
}

// Ensure returns the profile of userID, creating it first when missing.
func (u *Users) Ensure(ctx context.Context, userID int64, name string) (Profile, error) {
	if err := u.Add(ctx, userID, name); err != nil {
		return Profile{}, err
	}
	p, ok, err := u.Profile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, fmt.Errorf("user %d vanished after insert", userID)
	}
	return p, nil
}

// IsPremium reports whether userID currently has premium.
func (u *Users) IsPremium(ctx context.Context, userID int64) (bool, error) {
	p, ok, err := u.Profile(ctx, userID)
	if err != nil || !ok {
		return false, err
	}
	return p.IsPremium(u.now()), nil
}

// SetPremium grants premium until the given time, forever when until is nil.
func (u *Users) SetPremium(ctx context.Context, userID int64, until *time.Time) error {
	var untilUTC *time.Time
	if until != nil {
		t := until.UTC()
		untilUTC = &t
	}
	return u.update(ctx, userID, "premium", `UPDATE users SET premium = ?, premium_until = ? WHERE id = ?`, true, untilUTC, userID)
}

// RevokePremium clears the premium flag.
func (u *Users) RevokePremium(ctx context.Context, userID int64) error {
	return u.update(ctx, userID, "premium", `UPDATE users SET premium = ?, premium_until = NULL WHERE id = ?`, false, userID)
}

// SetDumpChat stores the chat that receives forwarded files; nil clears it.
func (u *Users) SetDumpChat(ctx context.Context, userID int64, chatID *int64) error {
	return u.update(ctx, userID, "dump_chat", `UPDATE users SET dump_chat_id = ? WHERE id = ?`, chatID, userID)
}

// SetCaption stores the custom caption; nil clears it.
func (u *Users) SetCaption(ctx context.Context, userID int64, caption *string) error {
	return u.update(ctx, userID, "caption", `UPDATE users SET caption = ? WHERE id = ?`, caption, userID)
}

// SetThumbnail stores the Telegram file id of the custom thumbnail; nil clears it.
func (u *Users) SetThumbnail(ctx context.Context, userID int64, fileID *string) error {
	return u.update(ctx, userID, "thumbnail", `UPDATE users SET thumbnail = ? WHERE id = ?`, fileID, userID)
}

// AddUsage increments today's counter, restarting it on a new UTC day.
func (u *Users) AddUsage(ctx context.Context, userID int64, n int) error {
	today := u.now().UTC().Format(dayLayout)
	return u.update(ctx, userID, "usage", `UPDATE users SET
daily_usage = CASE WHEN usage_day = ? THEN daily_usage + ? ELSE ? END,
usage_day = ? WHERE id = ?`, today, n, n, today, userID)
}

// ErrUserNotFound is returned by setters for unknown users.
var ErrUserNotFound = errors.New("user not found")

func (u *Users) update(ctx context.Context, userID int64, field, query string, args ...any) error {
	res, err := u.db.ExecContext(ctx, u.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update %s of user %d: %w", field, userID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update %s of user %d: %w", field, userID, ErrUserNotFound)
	}
	logger.Store.Debug("user updated",
		slog.String("event", "store.user.update"),
		slog.Int64("user_id", userID),
		slog.String("field", field),
	)
	return nil
}
