package models

import "time"

// UserQuota 記錄單一用戶在目前 24 小時視窗內的用量。
// 僅存在於記憶體中，行程重啟後歸零。
type UserQuota struct {
	UserID    string    `json:"user_id"`
	Count     int       `json:"count"`
	ResetTime time.Time `json:"reset_time"`
}

// Expired reports whether the 24h window has passed and the count must be
// reset before any further evaluation.
func (q *UserQuota) Expired(now time.Time) bool {
	return !now.Before(q.ResetTime)
}
