package repository

import (
	"fmt"
	"testing"

	"github.com/renkeyss/cchbot-20241209-01/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a per-test in-memory SQLite database. The shared-cache DSN
// keeps all pooled connections on the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.MessageLog{}))
	return db
}

func TestSaveAndGetMessages(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))

	assert.NoError(t, repo.SaveMessage(&models.MessageLog{UserID: "U1", Role: "user", Content: "血糖正常值是多少？", Path: models.PathAnswer}))
	assert.NoError(t, repo.SaveMessage(&models.MessageLog{UserID: "U1", Role: "assistant", Content: "空腹血糖正常值約為 70-100 mg/dL。", Path: models.PathAnswer}))
	assert.NoError(t, repo.SaveMessage(&models.MessageLog{UserID: "U2", Role: "user", Content: "你是誰", Path: models.PathIntent}))

	messages, err := repo.GetMessagesByUserID("U1")
	assert.NoError(t, err)
	assert.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "血糖正常值是多少？", messages[0].Content)
}

func TestGetMessagesUnknownUserReturnsEmpty(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))

	messages, err := repo.GetMessagesByUserID("nobody")
	assert.NoError(t, err)
	assert.Empty(t, messages)
}

func TestSaveMessageEmptyUserID(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))

	err := repo.SaveMessage(&models.MessageLog{Role: "user", Content: "hi"})
	assert.Error(t, err)

	_, err = repo.GetMessagesByUserID("")
	assert.Error(t, err)
}
