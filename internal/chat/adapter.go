package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// AdapterClient queries the platform adapter's directory endpoints for
// member and channel state. It implements PermissionService,
// MemberResolver, and ChannelLister.
type AdapterClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewAdapterClient(baseURL, token string) *AdapterClient {
	return &AdapterClient{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type memberInfo struct {
	DisplayName   string `json:"display_name"`
	Administrator bool   `json:"administrator"`
}

// IsAdministrator reports whether userID holds administrator rights in
// guildID. An unknown member is not an administrator.
func (c *AdapterClient) IsAdministrator(ctx context.Context, guildID, userID string) (bool, error) {
	var m memberInfo
	found, err := c.getJSON(ctx, c.memberPath(guildID, userID), &m)
	if err != nil {
		return false, fmt.Errorf("query member: %w", err)
	}
	return found && m.Administrator, nil
}

// DisplayName resolves userID's display name in guildID. The second return
// is false when the adapter does not know the member.
func (c *AdapterClient) DisplayName(ctx context.Context, guildID, userID string) (string, bool) {
	var m memberInfo
	found, err := c.getJSON(ctx, c.memberPath(guildID, userID), &m)
	if err != nil || !found {
		return "", false
	}
	return m.DisplayName, true
}

// GuildChannels lists guildID's text channels.
func (c *AdapterClient) GuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	path := fmt.Sprintf("/guilds/%s/channels", url.PathEscape(guildID))
	var channels []Channel
	found, err := c.getJSON(ctx, path, &channels)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	if !found {
		return nil, nil
	}
	return channels, nil
}

func (c *AdapterClient) memberPath(guildID, userID string) string {
	return fmt.Sprintf("/guilds/%s/members/%s", url.PathEscape(guildID), url.PathEscape(userID))
}

// getJSON fetches path relative to the adapter base URL. A 404 is reported
// as (false, nil); any other non-200 is an error.
func (c *AdapterClient) getJSON(ctx context.Context, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("adapter returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode adapter response: %w", err)
	}
	return true, nil
}
