package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsukumo-bot/tsukumo/internal/chat"
	"github.com/tsukumo-bot/tsukumo/internal/command"
	"github.com/tsukumo-bot/tsukumo/internal/log"
	"github.com/tsukumo-bot/tsukumo/internal/signal"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

type recordingHandler struct {
	mu   sync.Mutex
	msgs []chat.Message
	done chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{done: make(chan struct{}, 16)}
}

func (h *recordingHandler) HandleMessage(ctx context.Context, msg chat.Message) error {
	h.mu.Lock()
	h.msgs = append(h.msgs, msg)
	h.mu.Unlock()
	h.done <- struct{}{}
	return nil
}

func (h *recordingHandler) wait(t *testing.T) chat.Message {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("message never dispatched")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.msgs[len(h.msgs)-1]
}

func setupTestServer(t *testing.T, apiKey string) (*httptest.Server, *recordingHandler, *signal.Hub, *command.Counter) {
	t.Helper()

	handler := newRecordingHandler()
	hub := signal.NewHub(32)
	counter := command.NewCounter()
	s := New(Config{Listen: "127.0.0.1:0", APIKey: apiKey}, handler, hub, counter, 4, log.WithComponent("api"))

	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return ts, handler, hub, counter
}

func TestAuthRequired(t *testing.T) {
	ts, _, _, _ := setupTestServer(t, "secret")

	resp, err := http.Get(ts.URL + "/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	ts, _, _, _ := setupTestServer(t, "")

	resp, err := http.Get(ts.URL + "/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostMessageDispatches(t *testing.T) {
	ts, handler, _, _ := setupTestServer(t, "")

	body := `{"guild_id": "g1", "channel_id": "c1", "author_id": "u1", "author_name": "B", "content": "j!help"}`
	resp, err := http.Post(ts.URL+"/v1/messages", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out["id"], "an ID is assigned when the adapter sends none")

	msg := handler.wait(t)
	assert.Equal(t, "j!help", msg.Content)
	assert.Equal(t, out["id"], msg.ID)
}

func TestPostMessageValidation(t *testing.T) {
	ts, _, _, _ := setupTestServer(t, "")

	tests := []struct {
		name string
		body string
	}{
		{"not json", "garbage"},
		{"missing guild", `{"channel_id": "c1", "author_id": "u1"}`},
		{"missing channel", `{"guild_id": "g1", "author_id": "u1"}`},
		{"missing author", `{"guild_id": "g1", "channel_id": "c1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/v1/messages", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestEventsSince(t *testing.T) {
	ts, _, hub, _ := setupTestServer(t, "")

	for i := 0; i < 4; i++ {
		hub.Publish(signal.KindMessage, chat.Message{ID: "m"}, "")
	}

	resp, err := http.Get(ts.URL + "/v1/events?since=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Events []signal.Signal `json:"events"`
		Seq    int64           `json:"seq"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, int64(4), out.Seq)
	require.Len(t, out.Events, 2)
	assert.Equal(t, int64(3), out.Events[0].ID)
}

func TestEventsBadSince(t *testing.T) {
	ts, _, _, _ := setupTestServer(t, "")

	resp, err := http.Get(ts.URL + "/v1/events?since=banana")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatus(t *testing.T) {
	ts, _, _, counter := setupTestServer(t, "")
	counter.Inc(signal.KindMessage)
	counter.Inc(signal.KindMessage)

	resp, err := http.Get(ts.URL + "/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Status       string                 `json:"status"`
		PoolSize     int                    `json:"pool_size"`
		SignalsTotal int64                  `json:"signals_total"`
		Counters     []command.CounterEntry `json:"counters"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, 4, out.PoolSize)
	assert.Equal(t, int64(2), out.SignalsTotal)
	require.Len(t, out.Counters, 1)
	assert.Equal(t, signal.KindMessage, out.Counters[0].Kind)
}
