package api

import (
	"context"

	"github.com/renkeyss/cchbot-20241209-01/line"
	"github.com/renkeyss/cchbot-20241209-01/repository"
	"github.com/renkeyss/cchbot-20241209-01/services"
)

// LineClient is the slice of the LINE client the handlers need. *line.Client
// satisfies it; tests substitute their own.
type LineClient interface {
	ParseWebhook(body []byte, signature string) ([]line.Event, error)
	ReplyMessage(ctx context.Context, replyToken, text string) error
}

// APIHandler holds all dependencies for API handlers, such as repositories and services.
type APIHandler struct {
	lineClient     LineClient
	quotaRepo      repository.QuotaRepository
	messageRepo    repository.MessageRepository
	intentService  services.IntentService
	backendService services.BackendService
}

// NewAPIHandler creates a new APIHandler with necessary dependencies.
func NewAPIHandler(
	lineClient LineClient,
	quotaRepo repository.QuotaRepository,
	messageRepo repository.MessageRepository,
	intentService services.IntentService,
	backendService services.BackendService,
) *APIHandler {
	return &APIHandler{
		lineClient:     lineClient,
		quotaRepo:      quotaRepo,
		messageRepo:    messageRepo,
		intentService:  intentService,
		backendService: backendService,
	}
}
