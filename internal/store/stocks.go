package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Stock is one per-channel stock listing.
type Stock struct {
	GuildID   string
	ChannelID string
	Amount    int64
	Price     float64
}

// Holding is one user's position in a stock.
type Holding struct {
	UserID    string
	ChannelID string
	Amount    int64
	Price     float64
}

// StocksForGuild returns all stock listings in a guild.
func (s *Store) StocksForGuild(ctx context.Context, guildID string) ([]*Stock, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT guild_id, channel_id, amount, price FROM stocks WHERE guild_id = ?;
`, guildID)
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	defer rows.Close()

	var stocks []*Stock
	for rows.Next() {
		var st Stock
		if err := rows.Scan(&st.GuildID, &st.ChannelID, &st.Amount, &st.Price); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		stocks = append(stocks, &st)
	}
	return stocks, rows.Err()
}

// GetStock returns the listing for a channel, or (nil, nil) if absent.
func (s *Store) GetStock(ctx context.Context, guildID, channelID string) (*Stock, error) {
	var st Stock
	err := s.db.QueryRowContext(ctx, `
SELECT guild_id, channel_id, amount, price FROM stocks
WHERE guild_id = ? AND channel_id = ?;
`, guildID, channelID).Scan(&st.GuildID, &st.ChannelID, &st.Amount, &st.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return &st, nil
}

// SetStock upserts a channel's stock listing.
func (s *Store) SetStock(ctx context.Context, st *Stock) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO stocks(guild_id, channel_id, amount, price)
VALUES(?, ?, ?, ?)
ON CONFLICT(guild_id, channel_id) DO UPDATE SET
  amount = excluded.amount,
  price = excluded.price;
`, st.GuildID, st.ChannelID, st.Amount, st.Price)
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	return nil
}

// RemainingShares reports how many shares of a channel's stock are still
// unheld.
func (s *Store) RemainingShares(ctx context.Context, guildID, channelID string) (int64, error) {
	st, err := s.GetStock(ctx, guildID, channelID)
	if err != nil {
		return 0, err
	}
	if st == nil {
		return 0, nil
	}

	var held sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
SELECT SUM(amount) FROM user_stocks WHERE guild_id = ? AND channel_id = ?;
`, guildID, channelID).Scan(&held)
	if err != nil {
		return 0, fmt.Errorf("sum holdings: %w", err)
	}
	return st.Amount - held.Int64, nil
}

// ChangeHolding adjusts a user's position in a stock by delta shares.
func (s *Store) ChangeHolding(ctx context.Context, userID, guildID, channelID string, delta int64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO user_stocks(user_id, guild_id, channel_id, amount)
VALUES(?, ?, ?, ?)
ON CONFLICT(user_id, guild_id, channel_id) DO UPDATE SET
  amount = amount + excluded.amount;
`, userID, guildID, channelID, delta)
	if err != nil {
		return fmt.Errorf("change holding: %w", err)
	}
	return nil
}

// HoldingsForUser returns a user's positions in a guild, joined with the
// current price.
func (s *Store) HoldingsForUser(ctx context.Context, userID, guildID string) ([]*Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT us.user_id, us.channel_id, us.amount, st.price
FROM user_stocks us
JOIN stocks st ON st.guild_id = us.guild_id AND st.channel_id = us.channel_id
WHERE us.user_id = ? AND us.guild_id = ? AND us.amount > 0;
`, userID, guildID)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.UserID, &h.ChannelID, &h.Amount, &h.Price); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		holdings = append(holdings, &h)
	}
	return holdings, rows.Err()
}
