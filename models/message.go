package models

import (
	"time"
)

// Handling paths recorded alongside each logged message.
const (
	PathAnswer   = "answer"   // 後端正常回答（含知識庫搜尋）
	PathIntent   = "intent"   // 介紹/你是誰 快捷回覆
	PathLimit    = "limit"    // 當日額度已滿
	PathRejected = "rejected" // 分類判定與主題無關
	PathFallback = "fallback" // 後端失敗，回覆致歉訊息
)

// MessageLog 對話紀錄模型。每一筆處理過的事件都會留下 user 與 assistant 兩個角色的紀錄。
type MessageLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Path      string    `json:"path"` // 上列 Path* 常數之一
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for MessageLog model.
func (MessageLog) TableName() string {
	return "message_logs"
}
