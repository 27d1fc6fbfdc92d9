package tags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/shlex"

	"github.com/tsukumo-bot/tsukumo/internal/chat"
	"github.com/tsukumo-bot/tsukumo/internal/command"
	"github.com/tsukumo-bot/tsukumo/internal/log"
	"github.com/tsukumo-bot/tsukumo/internal/render"
	"github.com/tsukumo-bot/tsukumo/internal/signal"
	"github.com/tsukumo-bot/tsukumo/internal/store"
)

const (
	timedOutNotice    = "**Timed out waiting for template to render.**"
	renderErrorNotice = "**Error when rendering template:**\n`%s`"
)

// ErrorReporter receives failures the fallback cannot handle locally:
// delivery failures, wrapped as *command.InvokeError. Everything else
// (lookup miss, render error, timeout) is resolved in place.
type ErrorReporter func(err error)

// Fallback subscribes to command_not_found signals and reinterprets them
// as tag invocations.
type Fallback struct {
	store  *store.Store
	pool   *render.Pool
	sender chat.Sender
	hub    *signal.Hub
	report ErrorReporter
	logger *slog.Logger
}

func NewFallback(st *store.Store, pool *render.Pool, sender chat.Sender, hub *signal.Hub, report ErrorReporter) *Fallback {
	f := &Fallback{
		store:  st,
		pool:   pool,
		sender: sender,
		hub:    hub,
		report: report,
		logger: log.WithComponent("tagfallback"),
	}
	if f.report == nil {
		f.report = func(err error) {
			f.logger.Error("unreported fallback failure", "error", err)
		}
	}
	return f
}

// Run consumes the hub subscription until ctx is cancelled. Only
// command_not_found signals are acted on; everything else passes by
// untouched.
func (f *Fallback) Run(ctx context.Context) {
	sub, cancel := f.hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sub:
			if !ok {
				return
			}
			if sig.Kind != signal.KindCommandNotFound {
				continue
			}
			if err := f.Handle(ctx, sig); err != nil {
				f.report(err)
			}
		}
	}
}

// Handle resolves one unrecognized-command signal. sig.Detail is the
// message content with the command prefix already stripped. A lookup miss
// is silent: an unrecognized command is not necessarily a tag.
func (f *Fallback) Handle(ctx context.Context, sig signal.Signal) error {
	remainder := sig.Detail
	fields := strings.Fields(remainder)
	if len(fields) == 0 {
		return nil
	}
	name := fields[0]

	tag, err := f.store.GetTag(ctx, sig.Msg.GuildID, name)
	if err != nil {
		f.logger.Warn("tag lookup failed", "name", name, "error", err)
		return nil
	}
	if tag == nil {
		return nil
	}

	args, err := shlex.Split(remainder)
	if err != nil {
		// Unbalanced quotes and the like: fall back to plain fields.
		args = fields
	}

	job := render.Job{
		Template: strings.TrimLeft(tag.Content, " "),
		Bindings: render.Bindings{
			Author:  sig.Msg.AuthorName,
			Channel: sig.Msg.ChannelID,
			Server:  sig.Msg.GuildID,
			Args:    args,
		},
	}

	rendered, err := f.pool.Submit(ctx, job)
	switch {
	case err == nil:
		f.hub.Publish(signal.KindTagRendered, sig.Msg, name)
	case errors.Is(err, render.ErrTimedOut):
		f.hub.Publish(signal.KindTagTimedOut, sig.Msg, name)
		rendered = timedOutNotice
	default:
		var rerr *render.Error
		diagnostic := "internal render failure"
		if errors.As(err, &rerr) {
			diagnostic = rerr.Diagnostic
		} else {
			f.logger.Error("render submission failed", "tag", name, "error", err)
		}
		f.hub.Publish(signal.KindTagFailed, sig.Msg, name)
		rendered = fmt.Sprintf(renderErrorNotice, diagnostic)
	}

	if err := f.sender.Send(ctx, sig.Msg.ChannelID, rendered); err != nil {
		// Delivery failures escalate: re-raise as a command invocation
		// failure for the outer error pipeline.
		return &command.InvokeError{Command: "tag:" + name, Err: err}
	}
	return nil
}
