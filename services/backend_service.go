package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/renkeyss/cchbot-20241209-01/config"
	"github.com/renkeyss/cchbot-20241209-01/models"

	openai "github.com/sashabaranov/go-openai"
)

// nonRelevantSentinel is the substring the classification pre-pass looks for
// in the model's verdict.
const nonRelevantSentinel = "non-relevant"

// historyLimit caps how many logged messages are replayed as conversation
// context in the completion fallback.
const historyLimit = 10

// BackendErrorKind distinguishes which backend call failed. The dispatcher
// only needs the kind to pick a log line; every kind resolves to the same
// user-facing apology reply.
type BackendErrorKind string

const (
	BackendErrorClassification BackendErrorKind = "classification"
	BackendErrorSearch         BackendErrorKind = "search"
	BackendErrorCompletion     BackendErrorKind = "completion"
)

// BackendError wraps a failed backend call with the step it failed at.
type BackendError struct {
	Kind BackendErrorKind
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s call failed: %v", e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// BackendService 後端服務接口：先分類判斷問題是否在主題範圍內，
// 再以知識庫搜尋（無結果時退回一般對話）產生回答。
type BackendService interface {
	// Classify reports whether the message is topically relevant.
	Classify(ctx context.Context, userMessage string) (bool, error)
	// Answer produces the reply text for a relevant message. history is the
	// user's prior logged conversation, oldest first; it is only used by the
	// completion fallback.
	Answer(ctx context.Context, userMessage string, history []models.MessageLog) (string, error)
}

type backendService struct {
	client        *openai.Client
	httpClient    *http.Client
	apiKey        string
	baseURL       string
	model         string
	assistantID   string
	assistantName string
	vectorStoreID string
}

// NewBackendService creates a BackendService from the OpenAI and assistant
// configuration. An empty vector store ID disables knowledge-base search.
func NewBackendService(oa config.OpenAIConfig, assistant config.AssistantConfig) BackendService {
	clientConfig := openai.DefaultConfig(oa.APIKey)
	if oa.BaseURL != "" {
		clientConfig.BaseURL = oa.BaseURL
	}
	return &backendService{
		client:        openai.NewClientWithConfig(clientConfig),
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		apiKey:        oa.APIKey,
		baseURL:       strings.TrimRight(clientConfig.BaseURL, "/"),
		model:         openai.GPT3Dot5Turbo,
		assistantID:   assistant.ID,
		assistantName: assistant.Name,
		vectorStoreID: assistant.VectorStoreID,
	}
}

func (s *backendService) systemPrompt() string {
	return fmt.Sprintf("You are a helpful assistant named %s.", s.assistantName)
}

func (s *backendService) Classify(ctx context.Context, userMessage string) (bool, error) {
	prompt := fmt.Sprintf(
		"Classify the following message as relevant or non-relevant "+
			"to medical, endocrinology, medications, medical quality, or patient safety:\n\n%s",
		userMessage,
	)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.systemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return false, &BackendError{Kind: BackendErrorClassification, Err: err}
	}
	if len(resp.Choices) == 0 {
		return false, &BackendError{Kind: BackendErrorClassification, Err: fmt.Errorf("empty completion response")}
	}

	verdict := strings.ToLower(resp.Choices[0].Message.Content)
	return !strings.Contains(verdict, nonRelevantSentinel), nil
}

func (s *backendService) Answer(ctx context.Context, userMessage string, history []models.MessageLog) (string, error) {
	if s.vectorStoreID != "" {
		results, err := s.searchKnowledgeBase(ctx, userMessage)
		if err != nil {
			return "", &BackendError{Kind: BackendErrorSearch, Err: err}
		}
		if len(results) > 0 {
			log.Printf("INFO: [BackendService] Knowledge search returned %d fragments for store %s.", len(results), s.vectorStoreID)
			return formatSearchResults(results), nil
		}
		log.Printf("INFO: [BackendService] Knowledge search returned no results, falling back to chat completion.")
	}
	return s.completeAnswer(ctx, userMessage, history)
}

// completeAnswer is the general-purpose conversational path used when the
// knowledge base has nothing to say.
func (s *backendService) completeAnswer(ctx context.Context, userMessage string, history []models.MessageLog) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: s.systemPrompt()},
	}

	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if strings.EqualFold(msg.Role, "assistant") {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	prompt := fmt.Sprintf("Assistant: %s, ID: %s\n\nUser: %s\nAssistant:", s.assistantName, s.assistantID, userMessage)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
	})
	if err != nil {
		return "", &BackendError{Kind: BackendErrorCompletion, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &BackendError{Kind: BackendErrorCompletion, Err: fmt.Errorf("empty completion response")}
	}
	return resp.Choices[0].Message.Content, nil
}

// searchContent is one text chunk inside a search result.
type searchContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// searchResult is one fragment returned by the vector store search endpoint.
type searchResult struct {
	FileID   string          `json:"file_id"`
	Filename string          `json:"filename"`
	Score    float64         `json:"score"`
	Content  []searchContent `json:"content"`
}

type searchResponse struct {
	Data []searchResult `json:"data"`
}

// searchKnowledgeBase queries the configured vector store. The endpoint is not
// covered by the SDK, so the call goes through a plain HTTP client against the
// same base URL.
func (s *backendService) searchKnowledgeBase(ctx context.Context, query string) ([]searchResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"query":           query,
		"max_num_results": 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	url := fmt.Sprintf("%s/vector_stores/%s/search", s.baseURL, s.vectorStoreID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call vector store search: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vector store search returned %d: %s", resp.StatusCode, string(body))
	}

	var searchResp searchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return searchResp.Data, nil
}

// formatSearchResults concatenates the returned fragments into the reply,
// numbering each fragment with an inline [n] marker and appending a trailing
// [n] <source> citation list. Results without a source name get a marker but
// no citation line; when no result names a source the list is omitted.
func formatSearchResults(results []searchResult) string {
	var answer strings.Builder
	var citations []string

	n := 0
	for _, result := range results {
		var fragment strings.Builder
		for _, content := range result.Content {
			if content.Type != "" && content.Type != "text" {
				continue
			}
			fragment.WriteString(content.Text)
		}
		text := strings.TrimSpace(fragment.String())
		if text == "" {
			continue
		}

		n++
		if answer.Len() > 0 {
			answer.WriteString("\n\n")
		}
		answer.WriteString(fmt.Sprintf("%s [%d]", text, n))
		if result.Filename != "" {
			citations = append(citations, fmt.Sprintf("[%d] %s", n, result.Filename))
		}
	}

	if len(citations) > 0 {
		answer.WriteString("\n\n")
		answer.WriteString(strings.Join(citations, "\n"))
	}
	return answer.String()
}
