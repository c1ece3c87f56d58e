// Package sms sends text messages through an HTTP SMS gateway.
//
// The gateway receives a JSON POST authenticated with a bearer key. Network
// errors, 5xx responses and 408/425/429 are retried with linear backoff;
// other 4xx responses fail immediately with ErrPermanentFailure.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Message is one text message.
type Message struct {
	To        string `json:"to"`
	From      string `json:"from,omitempty"`
	Text      string `json:"text"`
	Reference string `json:"reference,omitempty"` // echoed back by the gateway, the reminder task id
}

// Client delivers messages to the gateway. Safe for concurrent use.
type Client struct {
	cfg    Config
	client *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client, e.g. for tests or custom transports.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// NewClient validates cfg and creates a Client.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(cfg.GatewayURL)
	if err != nil || cfg.GatewayURL == "" {
		return nil, fmt.Errorf("%w: SMS_GATEWAY_URL is required", ErrInvalidConfig)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("%w: gateway URL must be an absolute http(s) URL", ErrInvalidConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.MaxRetries = max(cfg.MaxRetries, 0)

	c := &Client{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Send delivers msg, retrying temporary failures up to MaxRetries times.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if msg.From == "" {
		msg.From = c.cfg.SenderID
	}
	if err := validate(msg); err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal sms payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(lastErr, ctx.Err())
			case <-time.After(time.Duration(attempt) * c.cfg.RetryBackoff):
			}
		}

		status, err := c.attempt(ctx, payload)
		if err == nil {
			return nil
		}
		lastErr = err

		if isPermanent(status) {
			return fmt.Errorf("%w: %w", ErrPermanentFailure, err)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrSMSDeliveryFailed, c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) attempt(ctx context.Context, payload []byte) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.GatewayURL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "drip-sms/1.0")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return 0, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := fmt.Sprintf("gateway returned status %d", resp.StatusCode)
	if b := strings.TrimSpace(strings.ReplaceAll(string(body), "\n", " ")); b != "" {
		if len(b) > 200 {
			b = b[:200] + "..."
		}
		msg += ": " + b
	}
	return resp.StatusCode, errors.New(msg)
}

// isPermanent treats 4xx as final except request timeout, too early and rate limiting.
func isPermanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}

func validate(msg Message) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return fmt.Errorf("%w: recipient phone is required", ErrInvalidMessage)
	}
	digits := 0
	for i, r := range to {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0, r == ' ', r == '-', r == '(', r == ')':
		default:
			return fmt.Errorf("%w: recipient phone contains %q", ErrInvalidMessage, r)
		}
	}
	if digits < 7 || digits > 15 {
		return fmt.Errorf("%w: recipient phone must have 7 to 15 digits", ErrInvalidMessage)
	}
	if strings.TrimSpace(msg.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidMessage)
	}
	return nil
}
