package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Message priorities of the omnichannel provider.
const (
	PriorityHigh    = 1
	PriorityDefault = 2
	PriorityLow     = 3
	PriorityMass    = 4
)

// ErrInsufficientBalance gates a dispatch cycle when the account has no
// credits left.
var ErrInsufficientBalance = errors.New("gateway balance exhausted")

// GatewayError is a non-zero err_code from the provider API.
type GatewayError struct {
	Code    string
	Message string
}

func (e GatewayError) Error() string {
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
}

type Config struct {
	BaseURL         string
	APIKey          string
	SenderName      string
	DefaultRoute    string
	DefaultPriority int
	TestMode        bool
}

// Client talks to the cascade messaging provider. Every method hits the same
// endpoint with a method query parameter; responses carry err_code "0" on
// success.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://ssl.bs00.ru"
	}
	if cfg.DefaultRoute == "" {
		cfg.DefaultRoute = "wp-sms"
	}
	if cfg.DefaultPriority <= 0 {
		cfg.DefaultPriority = PriorityDefault
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type apiResponse struct {
	Response struct {
		Msg struct {
			ErrCode string `json:"err_code"`
			Text    string `json:"text"`
			Type    string `json:"type"`
		} `json:"msg"`
		Data json.RawMessage `json:"data"`
	} `json:"response"`
}

// SendMessage pushes one message through the cascade route and returns the
// provider message id.
func (c *Client) SendMessage(ctx context.Context, phone, text string, priority int, route string) (string, error) {
	if route == "" {
		route = c.cfg.DefaultRoute
	}
	if priority <= 0 {
		priority = c.cfg.DefaultPriority
	}

	params := url.Values{}
	params.Set("phone", phone)
	params.Set("text", text)
	params.Set("sender_name", c.cfg.SenderName)
	params.Set("route", route)
	params.Set("priority", strconv.Itoa(priority))

	if c.cfg.TestMode {
		c.logger.Info("test mode: message not sent",
			"phone", phone, "route", route, "priority", priority, "len", len(text))
		return "0", nil
	}

	resp, err := c.call(ctx, "push_msg", params)
	if err != nil {
		return "", err
	}

	var data struct {
		ID json.Number `json:"id"`
	}
	if len(resp.Response.Data) > 0 {
		_ = json.Unmarshal(resp.Response.Data, &data)
	}
	return data.ID.String(), nil
}

// CheckBalance returns the remaining credits on the account.
func (c *Client) CheckBalance(ctx context.Context) (float64, error) {
	if c.cfg.TestMode {
		return 100, nil
	}

	resp, err := c.call(ctx, "get_profile", url.Values{})
	if err != nil {
		return 0, err
	}

	var data struct {
		Credits json.Number `json:"credits"`
	}
	if err := json.Unmarshal(resp.Response.Data, &data); err != nil {
		return 0, fmt.Errorf("gateway profile payload: %w", err)
	}
	credits, err := data.Credits.Float64()
	if err != nil {
		return 0, fmt.Errorf("gateway credits value %q: %w", data.Credits, err)
	}
	return credits, nil
}

// MessageStatus fetches the delivery state of a previously sent message.
func (c *Client) MessageStatus(ctx context.Context, id string) (string, error) {
	if c.cfg.TestMode {
		return "delivered", nil
	}

	params := url.Values{}
	params.Set("id", id)

	resp, err := c.call(ctx, "get_status", params)
	if err != nil {
		return "", err
	}

	var data struct {
		Status string `json:"status"`
	}
	if len(resp.Response.Data) > 0 {
		_ = json.Unmarshal(resp.Response.Data, &data)
	}
	if data.Status == "" {
		return "unknown", nil
	}
	return data.Status, nil
}

func (c *Client) call(ctx context.Context, method string, params url.Values) (*apiResponse, error) {
	if c.cfg.APIKey == "" {
		return nil, GatewayError{Code: "401", Message: "api key is not configured"}
	}
	params.Set("method", method)
	params.Set("key", c.cfg.APIKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, GatewayError{Code: strconv.Itoa(resp.StatusCode), Message: "gateway returned non-2xx"}
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("gateway response decode: %w", err)
	}

	if code := parsed.Response.Msg.ErrCode; code != "0" {
		return nil, GatewayError{Code: code, Message: parsed.Response.Msg.Text}
	}
	return &parsed, nil
}
