package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// SignatureHeader is the request header LINE signs webhook deliveries with.
const SignatureHeader = "X-Line-Signature"

// ErrInvalidSignature is returned when the webhook signature does not match
// the request body. The whole request must be rejected in that case.
var ErrInvalidSignature = errors.New("invalid signature")

// Event types and message types this relay cares about.
const (
	EventTypeMessage = "message"
	MessageTypeText  = "text"
)

// Source identifies who triggered a webhook event.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// Message is the message payload attached to a message event.
type Message struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Event is a single webhook event. ReplyToken is single-use: it ties exactly
// one outbound reply to this event and cannot be reused.
type Event struct {
	Type       string  `json:"type"`
	ReplyToken string  `json:"replyToken"`
	Timestamp  int64   `json:"timestamp"`
	Source     Source  `json:"source"`
	Message    Message `json:"message"`
}

// IsTextMessage reports whether the event is a text message from an
// identifiable user. Everything else is filtered by the dispatcher.
func (e *Event) IsTextMessage() bool {
	return e.Type == EventTypeMessage && e.Message.Type == MessageTypeText && e.Source.UserID != ""
}

type webhookRequest struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// ValidateSignature checks the X-Line-Signature value against the raw request
// body: base64(HMAC-SHA256(channel secret, body)).
func ValidateSignature(channelSecret string, body []byte, signature string) bool {
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}

// ParseRequest verifies the signature over the raw body and decodes the event
// batch. It returns ErrInvalidSignature before looking at the payload at all.
func ParseRequest(channelSecret string, body []byte, signature string) ([]Event, error) {
	if !ValidateSignature(channelSecret, body, signature) {
		return nil, ErrInvalidSignature
	}
	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("failed to decode webhook body: %w", err)
	}
	return req.Events, nil
}
