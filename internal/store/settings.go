package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SetSetting upserts a named per-guild setting.
func (s *Store) SetSetting(ctx context.Context, guildID, name, value string) error {
	if guildID == "" || name == "" {
		return fmt.Errorf("guild id and setting name are required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO settings(guild_id, name, value)
VALUES(?, ?, ?)
ON CONFLICT(guild_id, name, target, kind) DO UPDATE SET
  value = excluded.value;
`, guildID, name, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// GetSetting returns the value of a setting, or ("", false) if unset.
func (s *Store) GetSetting(ctx context.Context, guildID, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
SELECT value FROM settings
WHERE guild_id = ? AND name = ? AND target = '' AND kind = '';
`, guildID, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting: %w", err)
	}
	return value, true, nil
}

// SetChannelIgnore records (or clears) an ignore rule for a channel.
// kind partitions rules, e.g. "levelling".
func (s *Store) SetChannelIgnore(ctx context.Context, guildID, channelID, kind string, ignored bool) error {
	if !ignored {
		_, err := s.db.ExecContext(ctx, `
DELETE FROM settings WHERE guild_id = ? AND name = 'ignore' AND target = ? AND kind = ?;
`, guildID, channelID, kind)
		if err != nil {
			return fmt.Errorf("clear channel ignore: %w", err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO settings(guild_id, name, value, target, kind)
VALUES(?, 'ignore', '1', ?, ?)
ON CONFLICT(guild_id, name, target, kind) DO UPDATE SET
  value = excluded.value;
`, guildID, channelID, kind)
	if err != nil {
		return fmt.Errorf("set channel ignore: %w", err)
	}
	return nil
}

// IsChannelIgnored reports whether a channel has an ignore rule of the
// given kind.
func (s *Store) IsChannelIgnored(ctx context.Context, guildID, channelID, kind string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
SELECT 1 FROM settings
WHERE guild_id = ? AND name = 'ignore' AND target = ? AND kind = ?;
`, guildID, channelID, kind).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check channel ignore: %w", err)
	}
	return true, nil
}
