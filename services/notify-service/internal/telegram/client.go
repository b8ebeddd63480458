package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client sends messages through the Telegram Bot API. The bot token is
// per-staff-member (each staff member configures their own bot), so it is
// an argument rather than client state.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: "https://api.telegram.org",
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewClientWithBaseURL is for tests pointing at a local server.
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = baseURL
	return c
}

func (c *Client) SendMessage(ctx context.Context, botToken, chatID, text, parseMode string) error {
	if parseMode == "" {
		parseMode = "HTML"
	}
	payload, err := json.Marshal(map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": parseMode,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("telegram api status %d: %s", resp.StatusCode, apiErr.Description)
	}
	return nil
}
