package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tsukumo-bot/tsukumo/internal/chat"
	"github.com/tsukumo-bot/tsukumo/internal/signal"
)

// SettingsWriter persists per-guild settings. Satisfied by *store.Store.
type SettingsWriter interface {
	SetSetting(ctx context.Context, guildID, name, value string) error
}

// Builtins wires the core command set: help, info, stats, the event
// counter report, and the owner-only changename.
type Builtins struct {
	registry  *Registry
	counter   *Counter
	hub       *signal.Hub
	sender    chat.Sender
	settings  SettingsWriter
	ownerID   string
	startedAt time.Time
}

func NewBuiltins(reg *Registry, counter *Counter, hub *signal.Hub, sender chat.Sender, settings SettingsWriter, ownerID string) *Builtins {
	return &Builtins{
		registry:  reg,
		counter:   counter,
		hub:       hub,
		sender:    sender,
		settings:  settings,
		ownerID:   ownerID,
		startedAt: time.Now(),
	}
}

// Descriptors returns the built-in command descriptors.
func (b *Builtins) Descriptors() []*Descriptor {
	ownerOnly := func(ctx context.Context, msg chat.Message) bool {
		return b.ownerID != "" && msg.AuthorID == b.ownerID
	}

	return []*Descriptor{
		{Name: "help", Help: "Lists commands available to you.", Run: b.help},
		{Name: "info", Help: "Shows bot info.", Run: b.info},
		{Name: "stats", Help: "Shows dispatch stats.", Run: b.stats},
		{Name: "events", Help: "Shows the top 10 most frequent events.", Run: b.events},
		{Name: "seq", Parent: "events", Help: "Shows the current sequence number.", Run: b.eventsSeq},
		{Name: "changename", Help: "Changes the bot's display name.", Check: ownerOnly, Run: b.changename},
	}
}

// help iterates the static registry and lists every command the caller can
// run, predicates evaluated recursively through parents.
func (b *Builtins) help(ctx context.Context, inv *Invocation) error {
	var sb strings.Builder
	sb.WriteString("**Commands:**\n")

	for _, root := range b.registry.Roots() {
		desc, _ := b.registry.Get(root)
		if !b.registry.CanRun(ctx, inv.Msg, desc) {
			continue
		}

		sb.WriteString("`" + root + "`")
		var subs []string
		for _, child := range b.registry.Children(root) {
			sub, _ := b.registry.Get(root + " " + child)
			if b.registry.CanRun(ctx, inv.Msg, sub) {
				subs = append(subs, child)
			}
		}
		if len(subs) > 0 {
			sb.WriteString(" (" + strings.Join(subs, ", ") + ")")
		}
		if desc.Help != "" {
			sb.WriteString(" — " + desc.Help)
		}
		sb.WriteString("\n")
	}

	return b.sender.Send(ctx, inv.Msg.ChannelID, sb.String())
}

func (b *Builtins) info(ctx context.Context, inv *Invocation) error {
	return b.sender.Send(ctx, inv.Msg.ChannelID,
		":exclamation: **Tsukumo: a tag-slinging chat bot. Templates are rendered in a sandbox; try `tag create`.**")
}

func (b *Builtins) stats(ctx context.Context, inv *Invocation) error {
	uptime := time.Since(b.startedAt).Round(time.Second)
	text := fmt.Sprintf("Uptime `%s`, `%d` signals processed, sequence number `%d`.",
		uptime, b.counter.Total(), b.hub.Seq())
	return b.sender.Send(ctx, inv.Msg.ChannelID, text)
}

// events reports the top 10 most frequent signal kinds as a monospace
// table.
func (b *Builtins) events(ctx context.Context, inv *Invocation) error {
	entries := b.counter.Snapshot()
	if len(entries) > 10 {
		entries = entries[:10]
	}

	var sb strings.Builder
	sb.WriteString("```\n")
	sb.WriteString(fmt.Sprintf("%-24s %s\n", "Event", "Frequency"))
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%-24s %d\n", e.Kind, e.Count))
	}
	sb.WriteString("```")
	return b.sender.Send(ctx, inv.Msg.ChannelID, sb.String())
}

func (b *Builtins) eventsSeq(ctx context.Context, inv *Invocation) error {
	return b.sender.Send(ctx, inv.Msg.ChannelID,
		fmt.Sprintf("Current sequence number: `%d`", b.hub.Seq()))
}

// changename stores the bot's per-guild display name; the platform adapter
// picks it up from settings.
func (b *Builtins) changename(ctx context.Context, inv *Invocation) error {
	name := strings.TrimSpace(inv.Raw)
	if name == "" {
		return b.sender.Send(ctx, inv.Msg.ChannelID, "Usage: `changename <new name>`")
	}
	if err := b.settings.SetSetting(ctx, inv.Msg.GuildID, "bot_name", name); err != nil {
		return err
	}
	return b.sender.Send(ctx, inv.Msg.ChannelID,
		fmt.Sprintf(":heavy_check_mark: Name changed to **%s**.", name))
}
