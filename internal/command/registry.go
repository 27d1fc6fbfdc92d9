// Package command routes inbound chat messages to a static registry of
// command descriptors. An unmatched token is not an error: it becomes a
// command_not_found signal on the hub, where the tag fallback (or any other
// subscriber) may pick it up.
package command

import (
	"context"
	"sort"

	"github.com/tsukumo-bot/tsukumo/internal/chat"
)

// RunFunc executes a command invocation.
type RunFunc func(ctx context.Context, inv *Invocation) error

// CheckFunc gates a command per caller. A nil check always passes.
type CheckFunc func(ctx context.Context, msg chat.Message) bool

// Descriptor describes one command: its name, its parent group (empty for
// root commands), a help line, an optional runnability predicate, and the
// handler. Descriptors are built once at startup; nothing inspects live
// handler objects at dispatch time.
type Descriptor struct {
	Name   string
	Parent string
	Help   string
	Check  CheckFunc
	Run    RunFunc
}

// Invocation carries one matched command call. Raw preserves the original
// spacing and newlines of everything after the command path; Args is its
// whitespace tokenization.
type Invocation struct {
	Msg  chat.Message
	Args []string
	Raw  string
}

// Registry is the static command table.
type Registry struct {
	byPath map[string]*Descriptor
	roots  []string
	kids   map[string][]string
}

func NewRegistry() *Registry {
	return &Registry{
		byPath: make(map[string]*Descriptor),
		kids:   make(map[string][]string),
	}
}

// Add registers descriptors. Registration order does not matter; listings
// are sorted.
func (r *Registry) Add(descs ...*Descriptor) {
	for _, d := range descs {
		path := d.Name
		if d.Parent != "" {
			path = d.Parent + " " + d.Name
		}
		r.byPath[path] = d
		if d.Parent == "" {
			r.roots = append(r.roots, d.Name)
			sort.Strings(r.roots)
		} else {
			r.kids[d.Parent] = append(r.kids[d.Parent], d.Name)
			sort.Strings(r.kids[d.Parent])
		}
	}
}

// Resolve matches the longest command path over tokens. It returns the
// descriptor and how many tokens the path consumed, or (nil, 0) when the
// first token matches no root command.
func (r *Registry) Resolve(tokens []string) (*Descriptor, int) {
	if len(tokens) == 0 {
		return nil, 0
	}
	root, ok := r.byPath[tokens[0]]
	if !ok {
		return nil, 0
	}
	if len(tokens) >= 2 {
		if sub, ok := r.byPath[tokens[0]+" "+tokens[1]]; ok {
			return sub, 2
		}
	}
	return root, 1
}

// Roots returns root command names, sorted.
func (r *Registry) Roots() []string {
	return append([]string(nil), r.roots...)
}

// Children returns subcommand names of a root command, sorted.
func (r *Registry) Children(name string) []string {
	return append([]string(nil), r.kids[name]...)
}

// Get returns the descriptor at path ("tag" or "tag create").
func (r *Registry) Get(path string) (*Descriptor, bool) {
	d, ok := r.byPath[path]
	return d, ok
}

// CanRun evaluates a descriptor's predicate and, recursively, its
// parents'. Used both at dispatch time and when building help listings.
func (r *Registry) CanRun(ctx context.Context, msg chat.Message, d *Descriptor) bool {
	if d.Parent != "" {
		if parent, ok := r.byPath[d.Parent]; ok {
			if !r.CanRun(ctx, msg, parent) {
				return false
			}
		}
	}
	if d.Check == nil {
		return true
	}
	return d.Check(ctx, msg)
}
