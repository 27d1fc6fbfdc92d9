package command

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsukumo-bot/tsukumo/internal/chat"
	"github.com/tsukumo-bot/tsukumo/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

func noopRun(ctx context.Context, inv *Invocation) error { return nil }

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	reg.Add(
		&Descriptor{Name: "tag", Run: noopRun},
		&Descriptor{Name: "create", Parent: "tag", Run: noopRun},
		&Descriptor{Name: "help", Run: noopRun},
	)

	tests := []struct {
		name         string
		tokens       []string
		wantPath     string
		wantConsumed int
	}{
		{"root command", []string{"help"}, "help", 1},
		{"subcommand wins over root", []string{"tag", "create", "x"}, "create", 2},
		{"unknown subcommand falls back to root", []string{"tag", "greet"}, "tag", 1},
		{"unknown root", []string{"nope"}, "", 0},
		{"empty", nil, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, consumed := reg.Resolve(tt.tokens)
			if tt.wantPath == "" {
				assert.Nil(t, desc)
				assert.Equal(t, 0, consumed)
				return
			}
			require.NotNil(t, desc)
			assert.Equal(t, tt.wantPath, desc.Name)
			assert.Equal(t, tt.wantConsumed, consumed)
		})
	}
}

func TestRegistryListings(t *testing.T) {
	reg := NewRegistry()
	reg.Add(
		&Descriptor{Name: "tag", Run: noopRun},
		&Descriptor{Name: "list", Parent: "tag", Run: noopRun},
		&Descriptor{Name: "create", Parent: "tag", Run: noopRun},
		&Descriptor{Name: "help", Run: noopRun},
	)

	assert.Equal(t, []string{"help", "tag"}, reg.Roots())
	assert.Equal(t, []string{"create", "list"}, reg.Children("tag"))
}

func TestCanRunRecursesThroughParent(t *testing.T) {
	adminOnly := func(ctx context.Context, msg chat.Message) bool {
		return msg.AuthorID == "admin"
	}

	reg := NewRegistry()
	reg.Add(
		&Descriptor{Name: "stocks", Check: adminOnly, Run: noopRun},
		&Descriptor{Name: "buy", Parent: "stocks", Run: noopRun},
	)

	buy, ok := reg.Get("stocks buy")
	require.True(t, ok)

	ctx := context.Background()
	assert.True(t, reg.CanRun(ctx, chat.Message{AuthorID: "admin"}, buy),
		"parent predicate passes for admin")
	assert.False(t, reg.CanRun(ctx, chat.Message{AuthorID: "pleb"}, buy),
		"child inherits the parent's gate")
}

func TestStripTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"one token", "create greet  hello  world", 1, "greet  hello  world"},
		{"two tokens preserve spacing", "create greet  hello  world", 2, "hello  world"},
		{"newlines survive", "create greet line one\nline two", 2, "line one\nline two"},
		{"all consumed", "create", 1, ""},
		{"over-consume", "create", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripTokens(tt.in, tt.n))
		})
	}
}
