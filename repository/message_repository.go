package repository

import (
	"errors"
	"fmt"
	"log"

	"github.com/renkeyss/cchbot-20241209-01/models"

	"gorm.io/gorm"
)

// MessageRepository 對話紀錄仓库接口。每個處理過的 webhook 事件都會寫入
// 一筆 user 紀錄與一筆 assistant 紀錄，供歷史查詢與後端對話上下文使用。
type MessageRepository interface {
	SaveMessage(message *models.MessageLog) error
	GetMessagesByUserID(userID string) ([]models.MessageLog, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new instance of MessageRepository.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// SaveMessage 保存一筆對話紀錄。
func (r *messageRepository) SaveMessage(message *models.MessageLog) error {
	if message.UserID == "" {
		return errors.New("user ID cannot be empty")
	}
	if err := r.db.Create(message).Error; err != nil {
		log.Printf("ERROR: [MessageRepository] Failed to save message for user %s: %v", message.UserID, err)
		return fmt.Errorf("failed to save message for user %s: %w", message.UserID, err)
	}
	return nil
}

// GetMessagesByUserID 依時間順序取得某用戶的全部對話紀錄。
// 沒有紀錄時回傳空切片而非錯誤。
func (r *messageRepository) GetMessagesByUserID(userID string) ([]models.MessageLog, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	var messages []models.MessageLog
	err := r.db.Where("user_id = ?", userID).Order("created_at asc, id asc").Find(&messages).Error
	if err != nil {
		log.Printf("ERROR: [MessageRepository] Failed to fetch messages for user %s: %v", userID, err)
		return nil, fmt.Errorf("failed to fetch messages for user %s: %w", userID, err)
	}
	return messages, nil
}
