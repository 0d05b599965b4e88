package api

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/renkeyss/cchbot-20241209-01/config"
	"github.com/renkeyss/cchbot-20241209-01/line"
	"github.com/renkeyss/cchbot-20241209-01/models"
	"github.com/renkeyss/cchbot-20241209-01/utils"

	"github.com/gin-gonic/gin"
)

// CallbackHandler 處理 LINE webhook。驗章失敗整個請求以 400 拒絕；
// 通過驗章後逐一處理批次內的事件，單一事件的任何失敗都不影響
// 其他事件，也不影響最後回給平台的 200 OK。
func (h *APIHandler) CallbackHandler(c *gin.Context) {
	signature := c.GetHeader(line.SignatureHeader)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	events, err := h.lineClient.ParseWebhook(body, signature)
	if err != nil {
		if errors.Is(err, line.ErrInvalidSignature) {
			utils.SendJSONError(c, http.StatusBadRequest, "Invalid signature", err)
		} else {
			utils.SendJSONError(c, http.StatusBadRequest, "Invalid webhook payload", err)
		}
		return
	}

	// Events are handled sequentially in payload order.
	ctx := c.Request.Context()
	for i := range events {
		h.handleEvent(ctx, &events[i])
	}

	c.String(http.StatusOK, "OK")
}

// handleEvent runs the per-event pipeline:
// quota check → intent shortcut → classification → answer → reply → increment.
// The quota only advances on paths that consumed a backend attempt.
func (h *APIHandler) handleEvent(ctx context.Context, event *line.Event) {
	if !event.IsTextMessage() {
		return
	}

	userID := event.Source.UserID
	userText := event.Message.Text
	messages := config.AppConfig.Messages

	allowed, err := h.quotaRepo.CheckQuota(userID)
	if err != nil {
		log.Printf("ERROR: [Callback] Quota check failed for user %s: %v", userID, err)
		return
	}
	if !allowed {
		h.reply(ctx, event, userText, messages.LimitExceeded, models.PathLimit)
		return
	}

	if introduction, ok := h.intentService.MatchIntent(userText); ok {
		h.reply(ctx, event, userText, introduction, models.PathIntent)
		return
	}

	relevant, err := h.backendService.Classify(ctx, userText)
	if err != nil {
		log.Printf("ERROR: [Callback] Classification failed for user %s: %v", userID, err)
		h.reply(ctx, event, userText, messages.Apology, models.PathFallback)
		h.incrementQuota(userID)
		return
	}
	if !relevant {
		h.reply(ctx, event, userText, messages.Rejection, models.PathRejected)
		return
	}

	// Prior conversation feeds the completion fallback; losing it only costs
	// context, so a fetch error is not fatal to the event.
	history, err := h.messageRepo.GetMessagesByUserID(userID)
	if err != nil {
		log.Printf("WARN: [Callback] Failed to load history for user %s: %v", userID, err)
		history = nil
	}

	answer, err := h.backendService.Answer(ctx, userText, history)
	if err != nil {
		log.Printf("ERROR: [Callback] Backend answer failed for user %s: %v", userID, err)
		h.reply(ctx, event, userText, messages.Apology, models.PathFallback)
		h.incrementQuota(userID)
		return
	}
	if strings.TrimSpace(answer) == "" {
		answer = messages.NotFound
	}

	h.reply(ctx, event, userText, answer, models.PathAnswer)
	h.incrementQuota(userID)
}

// reply sends the outbound reply for one event and records both sides of the
// exchange in the message log. Send failures are logged, never propagated: the
// webhook call itself must still succeed.
func (h *APIHandler) reply(ctx context.Context, event *line.Event, userText, replyText, path string) {
	if err := h.lineClient.ReplyMessage(ctx, event.ReplyToken, replyText); err != nil {
		log.Printf("ERROR: [Callback] Failed to send reply to user %s: %v", event.Source.UserID, err)
	}

	userID := event.Source.UserID
	if err := h.messageRepo.SaveMessage(&models.MessageLog{UserID: userID, Role: "user", Content: userText, Path: path}); err != nil {
		log.Printf("WARN: [Callback] Failed to log user message for %s: %v", userID, err)
	}
	if err := h.messageRepo.SaveMessage(&models.MessageLog{UserID: userID, Role: "assistant", Content: replyText, Path: path}); err != nil {
		log.Printf("WARN: [Callback] Failed to log assistant reply for %s: %v", userID, err)
	}
}

func (h *APIHandler) incrementQuota(userID string) {
	if _, err := h.quotaRepo.IncrementQuota(userID); err != nil {
		log.Printf("ERROR: [Callback] Failed to increment quota for user %s: %v", userID, err)
	}
}
