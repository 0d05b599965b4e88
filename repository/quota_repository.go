package repository

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/renkeyss/cchbot-20241209-01/models"
)

// quotaWindow is the rolling window after which a user's count resets,
// measured from the user's first message (or last reset).
const quotaWindow = 24 * time.Hour

// QuotaRepository defines the interface for per-user daily usage tracking.
//
// CheckQuota and IncrementQuota are deliberately separate: the count only
// advances for messages that actually reached the backend (or consumed a
// backend attempt), so the caller increments after answering, never on the
// limit-exceeded or intent-shortcut paths.
type QuotaRepository interface {
	// CheckQuota lazily creates or resets the user's record, then reports
	// whether the user may still consume backend answers. It never mutates
	// the count.
	CheckQuota(userID string) (bool, error)
	// IncrementQuota adds one consumed answer to the user's record and
	// returns the updated state.
	IncrementQuota(userID string) (*models.UserQuota, error)
}

// quotaRepository keeps all quota state in memory. Records are created
// lazily and never removed; the map grows by one entry per distinct user for
// the process lifetime, which is acceptable for this single-process relay.
type quotaRepository struct {
	mu         sync.Mutex
	quotas     map[string]*models.UserQuota
	dailyLimit int
	now        func() time.Time // 測試時可替換的時鐘
}

// NewQuotaRepository creates an in-memory QuotaRepository allowing dailyLimit
// answered messages per user per 24h window.
func NewQuotaRepository(dailyLimit int) QuotaRepository {
	return &quotaRepository{
		quotas:     make(map[string]*models.UserQuota),
		dailyLimit: dailyLimit,
		now:        time.Now,
	}
}

// resetLocked (re)initializes the record for userID. Caller holds r.mu.
func (r *quotaRepository) resetLocked(userID string, now time.Time) *models.UserQuota {
	quota := &models.UserQuota{
		UserID:    userID,
		Count:     0,
		ResetTime: now.Add(quotaWindow),
	}
	r.quotas[userID] = quota
	return quota
}

func (r *quotaRepository) CheckQuota(userID string) (bool, error) {
	if userID == "" {
		return false, errors.New("user ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	quota, exists := r.quotas[userID]
	if !exists || quota.Expired(now) {
		quota = r.resetLocked(userID, now)
	}

	allowed := quota.Count < r.dailyLimit
	if !allowed {
		log.Printf("INFO: [QuotaRepository] User %s has reached the daily limit (%d/%d), resets at %s.",
			userID, quota.Count, r.dailyLimit, quota.ResetTime.Format(time.RFC3339))
	}
	return allowed, nil
}

func (r *quotaRepository) IncrementQuota(userID string) (*models.UserQuota, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	quota, exists := r.quotas[userID]
	if !exists || quota.Expired(now) {
		quota = r.resetLocked(userID, now)
	}
	quota.Count++

	log.Printf("INFO: [QuotaRepository] Incremented quota for user %s: %d/%d.", userID, quota.Count, r.dailyLimit)
	updated := *quota
	return &updated, nil
}
