package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/renkeyss/cchbot-20241209-01/config"
	"github.com/renkeyss/cchbot-20241209-01/models"

	"github.com/stretchr/testify/assert"
)

// backendFixture is an httptest server standing in for the OpenAI API. It
// serves chat completions and vector store search from canned responses and
// records what it was asked.
type backendFixture struct {
	mu                 sync.Mutex
	server             *httptest.Server
	completionContent  string
	completionStatus   int
	searchResults      []map[string]interface{}
	searchStatus       int
	completionCalls    int
	searchCalls        int
	lastCompletionBody map[string]interface{}
}

func newBackendFixture(t *testing.T) *backendFixture {
	t.Helper()
	f := &backendFixture{
		completionContent: "canned answer",
		completionStatus:  http.StatusOK,
		searchStatus:      http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.completionCalls++
		json.NewDecoder(r.Body).Decode(&f.lastCompletionBody)

		if f.completionStatus != http.StatusOK {
			http.Error(w, `{"error":{"message":"boom"}}`, f.completionStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-3.5-turbo",
			"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`,
			f.completionContent)
	})
	mux.HandleFunc("/vector_stores/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.searchCalls++

		if f.searchStatus != http.StatusOK {
			http.Error(w, `{"error":{"message":"search down"}}`, f.searchStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": f.searchResults})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *backendFixture) service(vectorStoreID string) BackendService {
	return NewBackendService(
		config.OpenAIConfig{APIKey: "test-key", BaseURL: f.server.URL},
		config.AssistantConfig{ID: "asst_test", Name: "CCHDM", VectorStoreID: vectorStoreID},
	)
}

func TestClassifyRelevant(t *testing.T) {
	f := newBackendFixture(t)
	f.completionContent = "This message is relevant to endocrinology."

	relevant, err := f.service("").Classify(context.Background(), "糖尿病要注意什麼？")
	assert.NoError(t, err)
	assert.True(t, relevant)
	assert.Equal(t, 1, f.completionCalls)
}

func TestClassifyNonRelevantSentinel(t *testing.T) {
	f := newBackendFixture(t)
	f.completionContent = "Non-Relevant: this is about football."

	relevant, err := f.service("").Classify(context.Background(), "世界盃冠軍是誰？")
	assert.NoError(t, err)
	assert.False(t, relevant, "sentinel match must be case-insensitive")
}

func TestClassifyErrorKind(t *testing.T) {
	f := newBackendFixture(t)
	f.completionStatus = http.StatusInternalServerError

	_, err := f.service("").Classify(context.Background(), "hello")
	assert.Error(t, err)

	var backendErr *BackendError
	assert.True(t, errors.As(err, &backendErr))
	assert.Equal(t, BackendErrorClassification, backendErr.Kind)
}

func TestAnswerUsesKnowledgeSearch(t *testing.T) {
	f := newBackendFixture(t)
	f.searchResults = []map[string]interface{}{
		{
			"filename": "diabetes-care.pdf",
			"score":    0.91,
			"content":  []map[string]string{{"type": "text", "text": "空腹血糖正常值約為 70-100 mg/dL。"}},
		},
		{
			"filename": "hypertension.pdf",
			"score":    0.74,
			"content":  []map[string]string{{"type": "text", "text": "高血壓建議低鈉飲食。"}},
		},
	}

	answer, err := f.service("vs_test").Answer(context.Background(), "血糖正常值？", nil)
	assert.NoError(t, err)
	assert.Contains(t, answer, "空腹血糖正常值約為 70-100 mg/dL。 [1]")
	assert.Contains(t, answer, "高血壓建議低鈉飲食。 [2]")
	assert.Contains(t, answer, "[1] diabetes-care.pdf")
	assert.Contains(t, answer, "[2] hypertension.pdf")
	assert.Equal(t, 1, f.searchCalls)
	assert.Equal(t, 0, f.completionCalls, "search hit must skip the completion call")
}

func TestAnswerFallsBackToCompletionOnEmptySearch(t *testing.T) {
	f := newBackendFixture(t)
	f.searchResults = nil
	f.completionContent = "一般性的回答。"

	answer, err := f.service("vs_test").Answer(context.Background(), "冷門問題", nil)
	assert.NoError(t, err)
	assert.Equal(t, "一般性的回答。", answer)
	assert.Equal(t, 1, f.searchCalls)
	assert.Equal(t, 1, f.completionCalls)
}

func TestAnswerWithoutVectorStoreSkipsSearch(t *testing.T) {
	f := newBackendFixture(t)
	f.completionContent = "直接回答。"

	answer, err := f.service("").Answer(context.Background(), "問題", nil)
	assert.NoError(t, err)
	assert.Equal(t, "直接回答。", answer)
	assert.Equal(t, 0, f.searchCalls)
}

func TestAnswerTruncatesHistory(t *testing.T) {
	f := newBackendFixture(t)

	var history []models.MessageLog
	for i := 0; i < 15; i++ {
		history = append(history, models.MessageLog{UserID: "U1", Role: "user", Content: fmt.Sprintf("msg %d", i)})
	}

	_, err := f.service("").Answer(context.Background(), "最後的問題", history)
	assert.NoError(t, err)

	msgs, ok := f.lastCompletionBody["messages"].([]interface{})
	assert.True(t, ok)
	// 1 system + 10 history + 1 current user message.
	assert.Len(t, msgs, 12)
}

func TestAnswerSearchErrorKind(t *testing.T) {
	f := newBackendFixture(t)
	f.searchStatus = http.StatusBadGateway

	_, err := f.service("vs_test").Answer(context.Background(), "問題", nil)
	assert.Error(t, err)

	var backendErr *BackendError
	assert.True(t, errors.As(err, &backendErr))
	assert.Equal(t, BackendErrorSearch, backendErr.Kind)
}

func TestAnswerCompletionErrorKind(t *testing.T) {
	f := newBackendFixture(t)
	f.completionStatus = http.StatusServiceUnavailable

	_, err := f.service("").Answer(context.Background(), "問題", nil)
	assert.Error(t, err)

	var backendErr *BackendError
	assert.True(t, errors.As(err, &backendErr))
	assert.Equal(t, BackendErrorCompletion, backendErr.Kind)
}

func TestFormatSearchResults(t *testing.T) {
	results := []searchResult{
		{
			Filename: "a.pdf",
			Content:  []searchContent{{Type: "text", Text: "first fragment"}},
		},
		{
			// No filename: marker without a citation line.
			Content: []searchContent{{Type: "text", Text: "second fragment"}},
		},
		{
			// Empty content is skipped entirely.
			Filename: "ignored.pdf",
		},
	}

	out := formatSearchResults(results)
	assert.Contains(t, out, "first fragment [1]")
	assert.Contains(t, out, "second fragment [2]")
	assert.Contains(t, out, "[1] a.pdf")
	assert.NotContains(t, out, "[2] ")
	assert.NotContains(t, out, "ignored.pdf")
	assert.NotContains(t, out, "[3]")
}
