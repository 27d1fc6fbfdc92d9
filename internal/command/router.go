package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tsukumo-bot/tsukumo/internal/chat"
	"github.com/tsukumo-bot/tsukumo/internal/log"
	"github.com/tsukumo-bot/tsukumo/internal/signal"
)

// InvokeError wraps a failure raised by a command handler or by delivering
// its output. It is the only failure class that escalates past dispatch.
type InvokeError struct {
	Command string
	Err     error
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
}

func (e *InvokeError) Unwrap() error {
	return e.Err
}

// MessageHook runs on every inbound message before command matching.
// Hook failures are logged, never fatal to dispatch.
type MessageHook func(ctx context.Context, msg chat.Message) error

// Router matches prefixed messages against the registry and publishes
// dispatch outcomes on the signal hub.
type Router struct {
	prefix   string
	registry *Registry
	hub      *signal.Hub
	counter  *Counter
	sender   chat.Sender
	hooks    []MessageHook
	logger   *slog.Logger
}

func NewRouter(prefix string, reg *Registry, hub *signal.Hub, counter *Counter, sender chat.Sender) *Router {
	if prefix == "" {
		prefix = "j!"
	}
	return &Router{
		prefix:   prefix,
		registry: reg,
		hub:      hub,
		counter:  counter,
		sender:   sender,
		logger:   log.WithComponent("router"),
	}
}

// Prefix returns the command prefix.
func (r *Router) Prefix() string {
	return r.prefix
}

// AddHook registers a per-message hook (XP trickle, logging).
func (r *Router) AddHook(h MessageHook) {
	r.hooks = append(r.hooks, h)
}

// HandleMessage processes one inbound message. A message that matches no
// built-in command produces a command_not_found signal and a nil return;
// only genuine handler/delivery failures come back as *InvokeError.
func (r *Router) HandleMessage(ctx context.Context, msg chat.Message) error {
	r.counter.Inc(signal.KindMessage)
	r.hub.Publish(signal.KindMessage, msg, "")

	for _, hook := range r.hooks {
		if err := hook(ctx, msg); err != nil {
			r.logger.Warn("message hook failed", "error", err)
		}
	}

	if !strings.HasPrefix(msg.Content, r.prefix) {
		return nil
	}
	remainder := msg.Content[len(r.prefix):]
	tokens := strings.Fields(remainder)
	if len(tokens) == 0 {
		return nil
	}

	desc, consumed := r.registry.Resolve(tokens)
	if desc == nil {
		r.counter.Inc(signal.KindCommandNotFound)
		r.hub.Publish(signal.KindCommandNotFound, msg, remainder)
		return nil
	}

	path := desc.Name
	if desc.Parent != "" {
		path = desc.Parent + " " + desc.Name
	}

	if !r.registry.CanRun(ctx, msg, desc) {
		r.counter.Inc(signal.KindCommandError)
		if err := r.sender.Send(ctx, msg.ChannelID, ":x: You do not have permission to use this command."); err != nil {
			return &InvokeError{Command: path, Err: err}
		}
		return nil
	}

	inv := &Invocation{
		Msg:  msg,
		Args: tokens[consumed:],
		Raw:  stripTokens(remainder, consumed),
	}

	if err := desc.Run(ctx, inv); err != nil {
		r.counter.Inc(signal.KindCommandError)
		r.hub.Publish(signal.KindCommandError, msg, err.Error())
		return &InvokeError{Command: path, Err: err}
	}

	r.counter.Inc(signal.KindCommandInvoked)
	r.hub.Publish(signal.KindCommandInvoked, msg, path)
	return nil
}

// stripTokens drops the first n whitespace-delimited tokens from s,
// preserving the spacing and newlines of what remains.
func stripTokens(s string, n int) string {
	const cutset = " \t\n\r"
	for i := 0; i < n; i++ {
		s = strings.TrimLeft(s, cutset)
		if idx := strings.IndexAny(s, cutset); idx >= 0 {
			s = s[idx:]
		} else {
			return ""
		}
	}
	return strings.TrimLeft(s, cutset)
}
