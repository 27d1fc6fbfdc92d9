// Package profile is the XP/currency ledger surface: a passive experience
// trickle on messages plus the profile and daily commands.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tsukumo-bot/tsukumo/internal/chat"
	"github.com/tsukumo-bot/tsukumo/internal/command"
	"github.com/tsukumo-bot/tsukumo/internal/log"
	"github.com/tsukumo-bot/tsukumo/internal/store"
)

// ignoreKind partitions channel ignore rules for the XP trickle.
const ignoreKind = "levelling"

// Handler implements the profile command surface and the XP message hook.
type Handler struct {
	store  *store.Store
	sender chat.Sender
	prefix string
	logger *slog.Logger
}

func NewHandler(st *store.Store, sender chat.Sender, prefix string) *Handler {
	return &Handler{
		store:  st,
		sender: sender,
		prefix: prefix,
		logger: log.WithComponent("profile"),
	}
}

// XPHook awards the random 1-3 XP trickle on ordinary messages. Command
// invocations and ignored channels earn nothing.
func (h *Handler) XPHook(ctx context.Context, msg chat.Message) error {
	if strings.HasPrefix(msg.Content, h.prefix) {
		return nil
	}
	ignored, err := h.store.IsChannelIgnored(ctx, msg.GuildID, msg.ChannelID, ignoreKind)
	if err != nil {
		return fmt.Errorf("check ignore rule: %w", err)
	}
	if ignored {
		return nil
	}
	if _, err := h.store.AddXP(ctx, msg.AuthorID, 0); err != nil {
		return fmt.Errorf("award xp: %w", err)
	}
	return nil
}

// Descriptors exposes `profile` and `daily`.
func (h *Handler) Descriptors() []*command.Descriptor {
	return []*command.Descriptor{
		{Name: "profile", Help: "Shows your XP, level, and currency.", Run: h.profile},
		{Name: "daily", Help: "Collects the daily currency grant.", Run: h.daily},
	}
}

func (h *Handler) profile(ctx context.Context, inv *command.Invocation) error {
	user, err := h.store.GetOrCreateUser(ctx, inv.Msg.AuthorID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("**%s** — level `%d` (`%d` XP), `§%d` in the bank.",
		inv.Msg.AuthorName, user.Level(), user.XP, user.Currency)
	return h.sender.Send(ctx, inv.Msg.ChannelID, text)
}

func (h *Handler) daily(ctx context.Context, inv *command.Invocation) error {
	user, err := h.store.AddCurrency(ctx, inv.Msg.AuthorID, 0)
	if err != nil {
		return err
	}
	return h.sender.Send(ctx, inv.Msg.ChannelID,
		fmt.Sprintf(":heavy_check_mark: Collected `§50`. You now have `§%d`.", user.Currency))
}
