package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := map[State][]State{
		StateQueued:     {StateProcessing},
		StateProcessing: {StateBlocked, StateCompleted, StateFailed},
		StateBlocked:    {},
		StateCompleted:  {},
		StateFailed:     {},
	}

	states := []State{StateQueued, StateProcessing, StateBlocked, StateCompleted, StateFailed}
	for from, tos := range allowed {
		ok := map[State]bool{}
		for _, to := range tos {
			ok[to] = true
		}
		for _, to := range states {
			assert.Equal(t, ok[to], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	states := []State{StateQueued, StateProcessing, StateBlocked, StateCompleted, StateFailed}
	for _, from := range states {
		if !from.Terminal() {
			continue
		}
		for _, to := range states {
			assert.False(t, CanTransition(from, to), "terminal %s must not reach %s", from, to)
		}
	}
}

func TestStateValid(t *testing.T) {
	assert.True(t, StateQueued.Valid())
	assert.True(t, StateFailed.Valid())
	assert.False(t, State("pending").Valid())
	assert.False(t, State("").Valid())
}

func TestDigest(t *testing.T) {
	a := Digest("the same contract")
	b := Digest("the same contract")
	c := Digest("a different contract")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrStoreUnavailable))
	assert.True(t, Retryable(ErrQueueUnavailable))
	assert.True(t, Retryable(ErrAnalyzerUnavailable))
	assert.False(t, Retryable(ErrValidation))
	assert.False(t, Retryable(ErrNotFound))
	assert.False(t, Retryable(nil))
}
