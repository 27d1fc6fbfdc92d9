package watch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tsukumo-bot/tsukumo/internal/command"
	"github.com/tsukumo-bot/tsukumo/internal/signal"
)

// --- Message types ---

type statusMsg struct {
	Status        string                 `json:"status"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	PoolSize      int                    `json:"pool_size"`
	SignalsTotal  int64                  `json:"signals_total"`
	Counters      []command.CounterEntry `json:"counters"`
}

type eventsMsg struct {
	Events []signal.Signal `json:"events"`
	Seq    int64           `json:"seq"`
}

type tickMsg time.Time

type errMsg error

// --- Commands ---

func fetchStatus(apiURL, apiKey string) tea.Cmd {
	return func() tea.Msg {
		var out statusMsg
		if err := getJSON(apiURL+"/v1/status", apiKey, &out); err != nil {
			return errMsg(err)
		}
		return out
	}
}

func fetchEvents(apiURL, apiKey string, since int64) tea.Cmd {
	return func() tea.Msg {
		var out eventsMsg
		url := fmt.Sprintf("%s/v1/events?since=%d", apiURL, since)
		if err := getJSON(url, apiKey, &out); err != nil {
			return errMsg(err)
		}
		return out
	}
}

func getJSON(url, apiKey string, out any) error {
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
