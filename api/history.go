package api

import (
	"net/http"

	"github.com/renkeyss/cchbot-20241209-01/utils"

	"github.com/gin-gonic/gin"
)

// HistoryHandler returns the logged conversation for one user, oldest first.
// 供後台查詢用，不經過 LINE 平台。
func (h *APIHandler) HistoryHandler(c *gin.Context) {
	userID := c.Param("userID")
	if userID == "" {
		utils.SendJSONError(c, http.StatusBadRequest, "userID is required", nil)
		return
	}

	messages, err := h.messageRepo.GetMessagesByUserID(userID)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to fetch message history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"count":    len(messages),
		"messages": messages,
	})
}
