package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Tag is a named, user-authored template bound to a guild.
type Tag struct {
	GuildID      string
	Name         string
	Content      string
	OwnerID      string
	LastModified time.Time
}

// Store wraps the bot's SQLite database.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetTag returns the tag for (guildID, name), or (nil, nil) if absent.
// Names are case-sensitive.
func (s *Store) GetTag(ctx context.Context, guildID, name string) (*Tag, error) {
	var (
		t   Tag
		lmS string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT guild_id, name, content, owner_id, last_modified
FROM tags
WHERE guild_id = ? AND name = ?;
`, guildID, name).Scan(&t.GuildID, &t.Name, &t.Content, &t.OwnerID, &lmS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, lmS); err == nil {
		t.LastModified = ts
	}
	return &t, nil
}

// AllTags returns every tag in a guild, ordered by name.
func (s *Store) AllTags(ctx context.Context, guildID string) ([]*Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT guild_id, name, content, owner_id, last_modified
FROM tags
WHERE guild_id = ?
ORDER BY name ASC;
`, guildID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []*Tag
	for rows.Next() {
		var (
			t   Tag
			lmS string
		)
		if err := rows.Scan(&t.GuildID, &t.Name, &t.Content, &t.OwnerID, &lmS); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, lmS); err == nil {
			t.LastModified = ts
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

// SaveTag inserts or updates a tag. Last-writer-wins per (guild_id, name);
// the ownership rule is the tag handler's job, the store writes whatever it
// is handed.
func (s *Store) SaveTag(ctx context.Context, t *Tag) error {
	if t.GuildID == "" {
		return fmt.Errorf("guild id is empty")
	}
	if t.Name == "" {
		return fmt.Errorf("tag name is empty")
	}

	lm := t.LastModified
	if lm.IsZero() {
		lm = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO tags(guild_id, name, content, owner_id, last_modified)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(guild_id, name) DO UPDATE SET
  content = excluded.content,
  owner_id = excluded.owner_id,
  last_modified = excluded.last_modified;
`, t.GuildID, t.Name, t.Content, t.OwnerID, lm.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save tag: %w", err)
	}
	return nil
}

// DeleteTag removes a tag. Deleting an absent tag is not an error here;
// the handler checks existence first.
func (s *Store) DeleteTag(ctx context.Context, guildID, name string) error {
	_, err := s.db.ExecContext(ctx, `
DELETE FROM tags WHERE guild_id = ? AND name = ?;
`, guildID, name)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}
