package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testIntroduction = "我是內分泌科小助理 CCHDM。"

func TestMatchIntentTriggers(t *testing.T) {
	service := NewIntentService(testIntroduction)

	reply, ok := service.MatchIntent("你是誰")
	assert.True(t, ok)
	assert.Equal(t, testIntroduction, reply)

	reply, ok = service.MatchIntent("介紹")
	assert.True(t, ok)
	assert.Equal(t, testIntroduction, reply)
}

func TestMatchIntentSubstringContainment(t *testing.T) {
	service := NewIntentService(testIntroduction)

	// The trigger may appear anywhere inside the message.
	_, ok := service.MatchIntent("請先自我介紹一下好嗎")
	assert.True(t, ok)

	_, ok = service.MatchIntent("嗨，你是誰啊？")
	assert.True(t, ok)
}

func TestMatchIntentNoMatch(t *testing.T) {
	service := NewIntentService(testIntroduction)

	_, ok := service.MatchIntent("糖尿病的症狀有哪些？")
	assert.False(t, ok)

	_, ok = service.MatchIntent("")
	assert.False(t, ok)
}
