package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

const (
	defaultCurrency = 200
	xpPerLevel      = 100
)

// User is the bot's per-user ledger row.
type User struct {
	UserID   string
	XP       int64
	Rep      int64
	Currency int64
}

// Level derives the user's level from accumulated experience.
func (u *User) Level() int64 {
	return u.XP/xpPerLevel + 1
}

// GetOrCreateUser fetches a user row, creating it with defaults on first
// sight.
func (s *Store) GetOrCreateUser(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is empty")
	}

	var u User
	err := s.db.QueryRowContext(ctx, `
SELECT user_id, xp, rep, currency FROM users WHERE user_id = ?;
`, userID).Scan(&u.UserID, &u.XP, &u.Rep, &u.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		u = User{UserID: userID, Currency: defaultCurrency}
		_, err := s.db.ExecContext(ctx, `
INSERT INTO users(user_id, xp, rep, currency, last_modified)
VALUES(?, 0, 0, ?, ?)
ON CONFLICT(user_id) DO NOTHING;
`, userID, defaultCurrency, time.Now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &u, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// AddXP adds xp to a user and returns the updated row. xp <= 0 awards the
// usual random message trickle of 1-3.
func (s *Store) AddXP(ctx context.Context, userID string, xp int64) (*User, error) {
	if xp <= 0 {
		xp = int64(rand.Intn(3) + 1)
	}
	return s.bumpUser(ctx, userID, "xp", xp)
}

// AddCurrency adds currency to a user and returns the updated row.
// amount == 0 applies the default grant of 50.
func (s *Store) AddCurrency(ctx context.Context, userID string, amount int64) (*User, error) {
	if amount == 0 {
		amount = 50
	}
	return s.bumpUser(ctx, userID, "currency", amount)
}

func (s *Store) bumpUser(ctx context.Context, userID, column string, delta int64) (*User, error) {
	if _, err := s.GetOrCreateUser(ctx, userID); err != nil {
		return nil, err
	}

	// column is one of our own identifiers, never caller input.
	q := fmt.Sprintf(`
UPDATE users SET %s = %s + ?, last_modified = ? WHERE user_id = ?
RETURNING user_id, xp, rep, currency;
`, column, column)

	var u User
	err := s.db.QueryRowContext(ctx, q,
		delta, time.Now().UTC().Format(time.RFC3339Nano), userID,
	).Scan(&u.UserID, &u.XP, &u.Rep, &u.Currency)
	if err != nil {
		return nil, fmt.Errorf("update user %s: %w", column, err)
	}
	return &u, nil
}
