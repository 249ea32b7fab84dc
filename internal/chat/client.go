package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"imagebot/internal/secrets"
)

const clientDefaultTimeout = 15 * time.Second

// ClientOptions configures the outbound chat client.
type ClientOptions struct {
	BaseURL     string
	BotTokenRef string
	Secrets     secrets.Provider
	HTTPClient  *http.Client
}

// Client posts messages back to the chat platform: either to a channel via
// the platform API, or to a callback target (response URL) handed to us by an
// inbound invocation. Posts are best-effort; the client does not retry beyond
// what the HTTP transport does.
type Client struct {
	baseURL     string
	botTokenRef string
	secrets     secrets.Provider
	httpClient  *http.Client
}

// NewClient builds an outbound chat client.
func NewClient(opts ClientOptions) (*Client, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("chat: base url is required")
	}
	if opts.Secrets == nil {
		return nil, errors.New("chat: secret provider is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: clientDefaultTimeout}
	}
	return &Client{
		baseURL:     baseURL,
		botTokenRef: opts.BotTokenRef,
		secrets:     opts.Secrets,
		httpClient:  httpClient,
	}, nil
}

type postMessageResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"ts,omitempty"`
}

// PostMessage posts a message to a channel and returns the platform's message
// handle.
func (c *Client) PostMessage(ctx context.Context, channelID string, msg Message) (string, error) {
	if channelID == "" {
		return "", errors.New("chat: channel id is required")
	}
	token, err := c.secrets.Get(ctx, c.botTokenRef)
	if err != nil {
		return "", fmt.Errorf("chat: resolve bot token: %w", err)
	}
	payload := struct {
		Channel string `json:"channel"`
		Message
	}{Channel: channelID, Message: msg}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("chat: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat: post message: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("chat: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat: post message: status %d", resp.StatusCode)
	}
	var decoded postMessageResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("chat: decode response: %w", err)
	}
	if !decoded.OK {
		return "", fmt.Errorf("chat: post message rejected: %s", decoded.Error)
	}
	return decoded.Timestamp, nil
}

// Respond posts a message to a callback target. The platform treats the
// response URL as fire-and-forget; a non-2xx status is reported as an error
// but never retried here.
func (c *Client) Respond(ctx context.Context, callbackTarget string, msg Message) error {
	if callbackTarget == "" {
		return errors.New("chat: callback target is required")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("chat: encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackTarget, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat: respond: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("chat: respond: status %d", resp.StatusCode)
	}
	return nil
}

// Poster is the outbound surface workers depend on; satisfied by Client and
// by test doubles.
type Poster interface {
	PostMessage(ctx context.Context, channelID string, msg Message) (string, error)
	Respond(ctx context.Context, callbackTarget string, msg Message) error
}

var _ Poster = (*Client)(nil)
