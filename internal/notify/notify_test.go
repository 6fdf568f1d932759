package notify

import (
	"testing"
	"time"

	"github.com/harunnryd/mezame/internal/history"

	"github.com/stretchr/testify/assert"
)

func TestFormatWake_Success(t *testing.T) {
	msg := FormatWake(history.WakeRecord{
		Success:     true,
		TriggerType: history.TriggerAuto,
		Models: []history.ModelOutcome{
			{Model: "gemini-2.5-pro", Success: true, Duration: time.Second},
		},
	})
	assert.Contains(t, msg, "Wake-up succeeded")
	assert.Contains(t, msg, "gemini-2.5-pro: ok")
}

func TestFormatWake_FailureIncludesReason(t *testing.T) {
	msg := FormatWake(history.WakeRecord{
		Success:       false,
		TriggerType:   history.TriggerManual,
		TriggerSource: "cli",
		Models: []history.ModelOutcome{
			{Model: "gemini-2.5-pro", Success: false, Message: "quota exceeded"},
		},
	})
	assert.Contains(t, msg, "Wake-up failed")
	assert.Contains(t, msg, "(manual/cli)")
	assert.Contains(t, msg, "quota exceeded")
}
