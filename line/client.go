// Package line talks to the LINE Messaging API directly over HTTP: webhook
// signature verification, event parsing and reply/push message calls.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
	"unicode/utf8"
)

// DefaultAPIBaseURL is the production LINE Messaging API endpoint.
const DefaultAPIBaseURL = "https://api.line.me"

// maxTextLength is the LINE platform limit for a single text message,
// measured in characters, not bytes.
const maxTextLength = 5000

// Client is a minimal LINE Messaging API client. All outbound calls carry the
// channel access token; webhook parsing uses the channel secret.
type Client struct {
	channelSecret string
	channelToken  string
	baseURL       string
	httpClient    *http.Client
}

// NewClient creates a LINE client. baseURL may be empty to use the production
// endpoint; tests point it at a local server.
func NewClient(channelSecret, channelToken, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &Client{
		channelSecret: channelSecret,
		channelToken:  channelToken,
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ParseWebhook verifies and decodes an inbound webhook delivery.
func (c *Client) ParseWebhook(body []byte, signature string) ([]Event, error) {
	return ParseRequest(c.channelSecret, body, signature)
}

// ReplyMessage sends a single text reply keyed by the event's reply token.
func (c *Client) ReplyMessage(ctx context.Context, replyToken, text string) error {
	payload := map[string]interface{}{
		"replyToken": replyToken,
		"messages":   []map[string]interface{}{textMessage(text)},
	}
	return c.post(ctx, "/v2/bot/message/reply", payload)
}

// PushMessage sends a text message outside the reply-token flow.
func (c *Client) PushMessage(ctx context.Context, to, text string) error {
	payload := map[string]interface{}{
		"to":       to,
		"messages": []map[string]interface{}{textMessage(text)},
	}
	return c.post(ctx, "/v2/bot/message/push", payload)
}

func textMessage(text string) map[string]interface{} {
	// Truncate on rune boundaries: a byte slice would cut multi-byte
	// characters in half and LINE rejects invalid UTF-8.
	if utf8.RuneCountInString(text) > maxTextLength {
		text = string([]rune(text)[:maxTextLength])
	}
	return map[string]interface{}{"type": "text", "text": text}
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode LINE payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to build LINE request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.channelToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call LINE API %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		log.Printf("ERROR: [Line] API %s returned %d: %s", path, resp.StatusCode, string(body))
		return fmt.Errorf("LINE API error: %d", resp.StatusCode)
	}
	return nil
}
