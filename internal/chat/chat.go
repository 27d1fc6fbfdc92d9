// Package chat defines the boundary between the bot core and the chat
// platform. The core never speaks the chat protocol itself; a platform
// adapter on the far side of these interfaces does.
package chat

import "context"

//go:generate mockgen -destination=mocks/mock_chat.go -package=mocks github.com/tsukumo-bot/tsukumo/internal/chat Sender,PermissionService,MemberResolver,ChannelLister

// Message is an inbound chat message as delivered by the platform adapter.
type Message struct {
	ID         string `json:"id"`
	GuildID    string `json:"guild_id"`
	ChannelID  string `json:"channel_id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
}

// Sender delivers text to a channel.
type Sender interface {
	Send(ctx context.Context, channelID, text string) error
}

// PermissionService reports whether a user holds administrator rights in a
// guild. It is an external lookup; the core never caches its answers.
type PermissionService interface {
	IsAdministrator(ctx context.Context, guildID, userID string) (bool, error)
}

// MemberResolver resolves a user ID to a display name. The second return is
// false when the member is unknown (for example, they left the guild).
type MemberResolver interface {
	DisplayName(ctx context.Context, guildID, userID string) (string, bool)
}

// Channel is a guild text channel as reported by the platform adapter.
type Channel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"` // readable by the guild's default role
}

// ChannelLister enumerates a guild's text channels.
type ChannelLister interface {
	GuildChannels(ctx context.Context, guildID string) ([]Channel, error)
}
