package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsukumo-bot/tsukumo/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

func TestWebhookSenderPostsJSON(t *testing.T) {
	var gotAuth string
	var gotBody outboundMessage

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	s := NewWebhookSender(ts.URL, "tok")
	require.NoError(t, s.Send(context.Background(), "c1", "Hello B!"))

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "c1", gotBody.ChannelID)
	assert.Equal(t, "Hello B!", gotBody.Text)
}

func TestWebhookSenderNon2xxIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	s := NewWebhookSender(ts.URL, "")
	err := s.Send(context.Background(), "c1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestAdapterClientMemberLookups(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/guilds/g1/members/admin":
			json.NewEncoder(w).Encode(memberInfo{DisplayName: "Ada", Administrator: true})
		case "/guilds/g1/members/pleb":
			json.NewEncoder(w).Encode(memberInfo{DisplayName: "Plebby"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := NewAdapterClient(ts.URL, "")
	ctx := context.Background()

	admin, err := c.IsAdministrator(ctx, "g1", "admin")
	require.NoError(t, err)
	assert.True(t, admin)

	admin, err = c.IsAdministrator(ctx, "g1", "pleb")
	require.NoError(t, err)
	assert.False(t, admin)

	// Unknown members are simply not administrators.
	admin, err = c.IsAdministrator(ctx, "g1", "ghost")
	require.NoError(t, err)
	assert.False(t, admin)

	name, ok := c.DisplayName(ctx, "g1", "admin")
	assert.True(t, ok)
	assert.Equal(t, "Ada", name)

	_, ok = c.DisplayName(ctx, "g1", "ghost")
	assert.False(t, ok)
}

func TestAdapterClientGuildChannels(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/guilds/g1/channels", r.URL.Path)
		json.NewEncoder(w).Encode([]Channel{
			{ID: "100", Name: "general", Visible: true},
			{ID: "200", Name: "staff", Visible: false},
		})
	}))
	defer ts.Close()

	c := NewAdapterClient(ts.URL, "")
	channels, err := c.GuildChannels(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "general", channels[0].Name)
	assert.False(t, channels[1].Visible)
}

func TestAdapterClientServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewAdapterClient(ts.URL, "")
	_, err := c.IsAdministrator(context.Background(), "g1", "u1")
	assert.Error(t, err)

	_, err = c.GuildChannels(context.Background(), "g1")
	assert.Error(t, err)
}
