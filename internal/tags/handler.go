// Package tags implements the tag subsystem: user-registered templates
// that execute like bot commands. The handler covers the CRUD surface and
// its ownership rule; the fallback interceptor turns unrecognized commands
// into tag invocations.
package tags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tsukumo-bot/tsukumo/internal/chat"
	"github.com/tsukumo-bot/tsukumo/internal/command"
	"github.com/tsukumo-bot/tsukumo/internal/log"
	"github.com/tsukumo-bot/tsukumo/internal/store"
)

var (
	// ErrNotFound reports an absent tag. Always recoverable; the fallback
	// interceptor treats it as silence, the command surface as a short
	// user message.
	ErrNotFound = errors.New("tag not found")

	// ErrPermissionDenied reports a write by a caller who is neither the
	// tag's owner nor a guild administrator.
	ErrPermissionDenied = errors.New("permission denied")
)

// TagInfo is the user-facing projection of a tag.
type TagInfo struct {
	Name         string
	Owner        string
	LastModified time.Time
	Content      string
}

// Handler implements tag CRUD with the ownership/administrator rule.
type Handler struct {
	store   *store.Store
	perms   chat.PermissionService
	members chat.MemberResolver
	logger  *slog.Logger
}

func NewHandler(st *store.Store, perms chat.PermissionService, members chat.MemberResolver) *Handler {
	return &Handler{
		store:   st,
		perms:   perms,
		members: members,
		logger:  log.WithComponent("tags"),
	}
}

// escapeMentions rewrites broadcast mentions to a visually identical but
// non-triggering form (zero-width space after the @) before persistence.
func escapeMentions(content string) string {
	content = strings.ReplaceAll(content, "@everyone", "@\u200beveryone")
	content = strings.ReplaceAll(content, "@here", "@\u200bhere")
	return content
}

// Show fetches a tag's metadata. The owner resolves to "<Unknown>" when
// they are no longer a guild member.
func (h *Handler) Show(ctx context.Context, guildID, name string) (*TagInfo, error) {
	tag, err := h.store.GetTag(ctx, guildID, name)
	if err != nil {
		return nil, fmt.Errorf("show tag: %w", err)
	}
	if tag == nil {
		return nil, ErrNotFound
	}

	owner := "<Unknown>"
	if display, ok := h.members.DisplayName(ctx, guildID, tag.OwnerID); ok {
		owner = display
	}

	return &TagInfo{
		Name:         tag.Name,
		Owner:        owner,
		LastModified: tag.LastModified,
		Content:      tag.Content,
	}, nil
}

// List returns all tag names in a guild, sorted.
func (h *Handler) List(ctx context.Context, guildID string) ([]string, error) {
	tags, err := h.store.AllTags(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names, nil
}

// CreateOrEdit upserts a tag. If the tag exists and the author is neither
// the stored owner nor a guild administrator, the write is rejected. The
// stored owner_id only changes when no tag previously existed:
// administrators can edit another's tag without claiming it.
func (h *Handler) CreateOrEdit(ctx context.Context, guildID, name, content, authorID string) error {
	existing, err := h.store.GetTag(ctx, guildID, name)
	if err != nil {
		return fmt.Errorf("check existing tag: %w", err)
	}

	ownerID := authorID
	if existing != nil {
		if existing.OwnerID != authorID {
			admin, err := h.perms.IsAdministrator(ctx, guildID, authorID)
			if err != nil {
				return fmt.Errorf("check administrator: %w", err)
			}
			if !admin {
				return ErrPermissionDenied
			}
		}
		ownerID = existing.OwnerID
	}

	return h.store.SaveTag(ctx, &store.Tag{
		GuildID:      guildID,
		Name:         name,
		Content:      escapeMentions(content),
		OwnerID:      ownerID,
		LastModified: time.Now().UTC(),
	})
}

// Delete removes a tag under the same ownership/administrator rule as
// CreateOrEdit.
func (h *Handler) Delete(ctx context.Context, guildID, name, authorID string) error {
	existing, err := h.store.GetTag(ctx, guildID, name)
	if err != nil {
		return fmt.Errorf("check existing tag: %w", err)
	}
	if existing == nil {
		return ErrNotFound
	}

	if existing.OwnerID != authorID {
		admin, err := h.perms.IsAdministrator(ctx, guildID, authorID)
		if err != nil {
			return fmt.Errorf("check administrator: %w", err)
		}
		if !admin {
			return ErrPermissionDenied
		}
	}

	return h.store.DeleteTag(ctx, guildID, name)
}

// Descriptors exposes the tag command surface: `tag <name>`, `tag list`,
// `tag create <name> <content>`, `tag delete <name>`, plus the original
// aliases (all, edit, remove).
func (h *Handler) Descriptors(sender chat.Sender) []*command.Descriptor {
	show := func(ctx context.Context, inv *command.Invocation) error {
		if inv.Raw == "" {
			return sender.Send(ctx, inv.Msg.ChannelID, "Usage: `tag <name>`")
		}
		info, err := h.Show(ctx, inv.Msg.GuildID, inv.Raw)
		if errors.Is(err, ErrNotFound) {
			return sender.Send(ctx, inv.Msg.ChannelID, "Tag not found.")
		}
		if err != nil {
			return err
		}
		text := fmt.Sprintf("**Tag name:** `%s`\n**Owner:** `%s`\n**Last modified:** `%s`\n**Value:** `%s`",
			info.Name, info.Owner, info.LastModified.Format(time.RFC1123), info.Content)
		return sender.Send(ctx, inv.Msg.ChannelID, text)
	}

	list := func(ctx context.Context, inv *command.Invocation) error {
		names, err := h.List(ctx, inv.Msg.GuildID)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return sender.Send(ctx, inv.Msg.ChannelID, "This server has no tags.")
		}
		return sender.Send(ctx, inv.Msg.ChannelID, strings.Join(names, ", "))
	}

	create := func(ctx context.Context, inv *command.Invocation) error {
		if len(inv.Args) < 2 {
			return sender.Send(ctx, inv.Msg.ChannelID, "Usage: `tag create <name> <content>`")
		}
		name := inv.Args[0]
		content := stripLeadingToken(inv.Raw)
		err := h.CreateOrEdit(ctx, inv.Msg.GuildID, name, content, inv.Msg.AuthorID)
		if errors.Is(err, ErrPermissionDenied) {
			return sender.Send(ctx, inv.Msg.ChannelID, ":x: You cannot edit somebody else's tag.")
		}
		if err != nil {
			return err
		}
		return sender.Send(ctx, inv.Msg.ChannelID, fmt.Sprintf(":heavy_check_mark: Tag **%s** saved.", name))
	}

	del := func(ctx context.Context, inv *command.Invocation) error {
		if inv.Raw == "" {
			return sender.Send(ctx, inv.Msg.ChannelID, "Usage: `tag delete <name>`")
		}
		err := h.Delete(ctx, inv.Msg.GuildID, inv.Raw, inv.Msg.AuthorID)
		if errors.Is(err, ErrNotFound) {
			return sender.Send(ctx, inv.Msg.ChannelID, ":x: This tag does not exist.")
		}
		if errors.Is(err, ErrPermissionDenied) {
			return sender.Send(ctx, inv.Msg.ChannelID, ":x: You do not have permission to edit this tag.")
		}
		if err != nil {
			return err
		}
		return sender.Send(ctx, inv.Msg.ChannelID, ":skull_and_crossbones: Tag deleted.")
	}

	return []*command.Descriptor{
		{Name: "tag", Help: "Shows a tag. Tags run like commands when invoked bare.", Run: show},
		{Name: "list", Parent: "tag", Help: "Shows all tags for this server.", Run: list},
		{Name: "all", Parent: "tag", Help: "Alias of list.", Run: list},
		{Name: "create", Parent: "tag", Help: "Creates (or edits) a tag.", Run: create},
		{Name: "edit", Parent: "tag", Help: "Alias of create.", Run: create},
		{Name: "delete", Parent: "tag", Help: "Deletes a tag you own.", Run: del},
		{Name: "remove", Parent: "tag", Help: "Alias of delete.", Run: del},
	}
}

// stripLeadingToken removes the first whitespace-delimited token from s,
// keeping the remainder's own spacing.
func stripLeadingToken(s string) string {
	const cutset = " \t\n\r"
	s = strings.TrimLeft(s, cutset)
	if idx := strings.IndexAny(s, cutset); idx >= 0 {
		return strings.TrimLeft(s[idx:], cutset)
	}
	return ""
}
