package restart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlePassThruNeverPromptsOrRestarts(t *testing.T) {
	prompted, restarted := instrument(t, true)

	Handle(60, true, true)

	assert.False(t, *prompted)
	assert.False(t, *restarted)
}

func TestHandleSilentNeverRestarts(t *testing.T) {
	prompted, restarted := instrument(t, true)

	Handle(60, false, false)

	assert.False(t, *prompted)
	assert.False(t, *restarted)
}

func TestHandleInteractiveConfirmedSchedulesRestart(t *testing.T) {
	prompted, restarted := instrument(t, true)

	Handle(60, true, false)

	assert.True(t, *prompted)
	assert.True(t, *restarted)
}

func TestHandleInteractiveDeclinedLeavesRebootPending(t *testing.T) {
	prompted, restarted := instrument(t, false)

	Handle(60, true, false)

	assert.True(t, *prompted)
	assert.False(t, *restarted)
}

func instrument(t *testing.T, answer bool) (prompted, restarted *bool) {
	t.Helper()
	prompted = new(bool)
	restarted = new(bool)

	origPrompt, origSchedule := promptRestart, scheduleRestart
	promptRestart = func(int) bool {
		*prompted = true
		return answer
	}
	scheduleRestart = func(int) error {
		*restarted = true
		return nil
	}
	t.Cleanup(func() {
		promptRestart, scheduleRestart = origPrompt, origSchedule
	})
	return prompted, restarted
}
