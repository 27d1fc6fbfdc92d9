// Package stocks is the toy per-channel stock market: every visible text
// channel in a guild becomes a four-letter ticker users can buy into.
package stocks

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/tsukumo-bot/tsukumo/internal/chat"
	"github.com/tsukumo-bot/tsukumo/internal/command"
	"github.com/tsukumo-bot/tsukumo/internal/log"
	"github.com/tsukumo-bot/tsukumo/internal/store"
)

const enabledSetting = "stocks_enabled"

// Handler implements the stocks command group.
type Handler struct {
	store    *store.Store
	sender   chat.Sender
	perms    chat.PermissionService
	channels chat.ChannelLister
	logger   *slog.Logger
}

func NewHandler(st *store.Store, sender chat.Sender, perms chat.PermissionService, channels chat.ChannelLister) *Handler {
	return &Handler{
		store:    st,
		sender:   sender,
		perms:    perms,
		channels: channels,
		logger:   log.WithComponent("stocks"),
	}
}

// TickerName derives the stock ticker for a channel name: first letter of
// each dash- or underscore-separated part, topped up from the last part to
// at most four letters, uppercased.
func TickerName(channelName string) string {
	var parts []string
	switch {
	case strings.Contains(channelName, "-"):
		parts = strings.Split(channelName, "-")
	case strings.Contains(channelName, "_"):
		parts = strings.Split(channelName, "_")
	default:
		parts = []string{channelName}
	}

	name := ""
	truncated := false
	for _, part := range parts {
		if len(name) == 4 {
			truncated = true
			break
		}
		if part == "" {
			continue
		}
		name += part[:1]
	}
	if !truncated && len(parts) > 0 {
		last := parts[len(parts)-1]
		end := 5 - len(name)
		if end > len(last) {
			end = len(last)
		}
		if end > 1 {
			name += last[1:end]
		}
	}
	return strings.ToUpper(name)
}

func (h *Handler) identify(channels []chat.Channel, ticker string) *chat.Channel {
	for i := range channels {
		if TickerName(channels[i].Name) == ticker {
			return &channels[i]
		}
	}
	return nil
}

// Descriptors exposes `stocks`, `stocks portfolio`, `stocks buy`, and the
// admin-only `stocks setup`.
func (h *Handler) Descriptors() []*command.Descriptor {
	adminOnly := func(ctx context.Context, msg chat.Message) bool {
		admin, err := h.perms.IsAdministrator(ctx, msg.GuildID, msg.AuthorID)
		if err != nil {
			h.logger.Warn("administrator check failed", "error", err)
			return false
		}
		return admin
	}

	return []*command.Descriptor{
		{Name: "stocks", Help: "Shows the stock market for this server.", Run: h.list},
		{Name: "portfolio", Parent: "stocks", Help: "Shows your stock portfolio.", Run: h.portfolio},
		{Name: "buy", Parent: "stocks", Help: "Buys shares: `stocks buy <ticker> <amount>`.", Run: h.buy},
		{Name: "setup", Parent: "stocks", Help: "Enables stocks for this server.", Check: adminOnly, Run: h.setup},
	}
}

func (h *Handler) list(ctx context.Context, inv *command.Invocation) error {
	listings, err := h.store.StocksForGuild(ctx, inv.Msg.GuildID)
	if err != nil {
		return err
	}
	channels, err := h.channels.GuildChannels(ctx, inv.Msg.GuildID)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(channels))
	for _, c := range channels {
		names[c.ID] = c.Name
	}

	var sb strings.Builder
	sb.WriteString("```\n")
	sb.WriteString(fmt.Sprintf("%-6s %12s %18s %12s\n", "Name", "Total shares", "Available shares", "Price/share"))
	for _, st := range listings {
		name, ok := names[st.ChannelID]
		if !ok {
			continue
		}
		available, err := h.store.RemainingShares(ctx, st.GuildID, st.ChannelID)
		if err != nil {
			return err
		}
		sb.WriteString(fmt.Sprintf("%-6s %12d %18d %12.2f\n", TickerName(name), st.Amount, available, st.Price))
	}
	sb.WriteString("```")
	return h.sender.Send(ctx, inv.Msg.ChannelID, sb.String())
}

func (h *Handler) portfolio(ctx context.Context, inv *command.Invocation) error {
	holdings, err := h.store.HoldingsForUser(ctx, inv.Msg.AuthorID, inv.Msg.GuildID)
	if err != nil {
		return err
	}
	channels, err := h.channels.GuildChannels(ctx, inv.Msg.GuildID)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(channels))
	for _, c := range channels {
		names[c.ID] = c.Name
	}

	var sb strings.Builder
	sb.WriteString("```\n")
	sb.WriteString(fmt.Sprintf("%-6s %8s %12s\n", "Name", "Shares", "Total value"))
	for _, hld := range holdings {
		name, ok := names[hld.ChannelID]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("%-6s %8d %12.2f\n", TickerName(name), hld.Amount, float64(hld.Amount)*hld.Price))
	}
	sb.WriteString("```")
	return h.sender.Send(ctx, inv.Msg.ChannelID, sb.String())
}

func (h *Handler) buy(ctx context.Context, inv *command.Invocation) error {
	if len(inv.Args) < 2 {
		return h.sender.Send(ctx, inv.Msg.ChannelID, "Usage: `stocks buy <ticker> <amount>`")
	}
	amount, err := strconv.ParseInt(inv.Args[1], 10, 64)
	if err != nil || amount <= 0 {
		return h.sender.Send(ctx, inv.Msg.ChannelID, ":x: Amount must be a positive number.")
	}

	channels, err := h.channels.GuildChannels(ctx, inv.Msg.GuildID)
	if err != nil {
		return err
	}
	channel := h.identify(channels, strings.ToUpper(inv.Args[0]))
	if channel == nil {
		return h.sender.Send(ctx, inv.Msg.ChannelID, ":x: That stock does not exist.")
	}

	available, err := h.store.RemainingShares(ctx, inv.Msg.GuildID, channel.ID)
	if err != nil {
		return err
	}
	if available < 1 {
		return h.sender.Send(ctx, inv.Msg.ChannelID, ":x: This stock is all sold out.")
	}
	if available-amount < 0 {
		return h.sender.Send(ctx, inv.Msg.ChannelID, ":x: Cannot buy more shares than are in existence.")
	}

	listing, err := h.store.GetStock(ctx, inv.Msg.GuildID, channel.ID)
	if err != nil {
		return err
	}
	price := int64(math.Round(listing.Price * float64(amount)))

	user, err := h.store.GetOrCreateUser(ctx, inv.Msg.AuthorID)
	if err != nil {
		return err
	}
	if user.Currency < price {
		return h.sender.Send(ctx, inv.Msg.ChannelID, ":x: It is unwise to buy shares with money you don't have.")
	}

	if err := h.store.ChangeHolding(ctx, inv.Msg.AuthorID, inv.Msg.GuildID, channel.ID, amount); err != nil {
		return err
	}
	if _, err := h.store.AddCurrency(ctx, inv.Msg.AuthorID, -price); err != nil {
		return err
	}
	return h.sender.Send(ctx, inv.Msg.ChannelID,
		fmt.Sprintf(":heavy_check_mark: Bought %d shares at `§%d`.", amount, price))
}

func (h *Handler) setup(ctx context.Context, inv *command.Invocation) error {
	if _, enabled, err := h.store.GetSetting(ctx, inv.Msg.GuildID, enabledSetting); err != nil {
		return err
	} else if enabled {
		return h.sender.Send(ctx, inv.Msg.ChannelID, ":x: Stocks are already enabled for this guild.")
	}

	if err := h.sender.Send(ctx, inv.Msg.ChannelID,
		":hourglass: Generating stock amounts and initial prices for this server..."); err != nil {
		return err
	}

	channels, err := h.channels.GuildChannels(ctx, inv.Msg.GuildID)
	if err != nil {
		return err
	}

	count := 0
	totalValue := 0.0
	for _, c := range channels {
		if !c.Visible {
			continue
		}

		count++
		shares := initialShares(c.ID)
		price := math.Round((17+rand.Float64()*26)*100) / 100
		totalValue += float64(shares) * price
		h.logger.Info("adding stock", "channel", c.Name, "shares", shares, "price", price)
		if err := h.store.SetStock(ctx, &store.Stock{
			GuildID:   inv.Msg.GuildID,
			ChannelID: c.ID,
			Amount:    shares,
			Price:     price,
		}); err != nil {
			return err
		}
	}

	if err := h.store.SetSetting(ctx, inv.Msg.GuildID, enabledSetting, "1"); err != nil {
		return err
	}
	return h.sender.Send(ctx, inv.Msg.ChannelID,
		fmt.Sprintf(":heavy_check_mark: Injected `§%.2f` into the market over `%d` stocks.", totalValue, count))
}

// initialShares derives a share count from the channel ID's low bits,
// capped at 1400.
func initialShares(channelID string) int64 {
	id, err := strconv.ParseUint(channelID, 10, 64)
	if err != nil {
		h := fnv.New64a()
		h.Write([]byte(channelID))
		id = h.Sum64()
	}
	shares := int64(700 + ((id & 0xFFFFFFFF) >> 22))
	if shares > 1400 {
		shares = 1400
	}
	return shares
}
