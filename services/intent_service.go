package services

import "strings"

// introductionTriggers are the fixed phrases that short-circuit to the canned
// introduction before any backend call. Matching is case-sensitive substring
// containment over the raw message text.
var introductionTriggers = []string{"介紹", "你是誰"}

// IntentService 意圖過濾接口。命中時回傳固定回覆並跳過後端呼叫與額度累計。
type IntentService interface {
	MatchIntent(text string) (string, bool)
}

type intentService struct {
	triggers     []string
	introduction string
}

// NewIntentService creates an IntentService replying with introduction when a
// trigger phrase appears in the message.
func NewIntentService(introduction string) IntentService {
	return &intentService{
		triggers:     introductionTriggers,
		introduction: introduction,
	}
}

func (s *intentService) MatchIntent(text string) (string, bool) {
	for _, trigger := range s.triggers {
		if strings.Contains(text, trigger) {
			return s.introduction, true
		}
	}
	return "", false
}
