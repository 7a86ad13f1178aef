package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, 1, time.Hour)
	var transitions []State
	cb.SetStateChangeCallback(func(_, to State) { transitions = append(transitions, to) })

	assert.True(t, cb.AllowRequest())
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.GetState())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.GetState())
	assert.False(t, cb.AllowRequest())
	assert.Equal(t, []State{StateOpen}, transitions)
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker(1, 1, 10*time.Millisecond)
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.GetState())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, cb.AllowRequest())
	assert.Equal(t, StateHalfOpen, cb.GetState())

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, cb.AllowRequest())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
}

func TestExecute(t *testing.T) {
	cb := NewCircuitBreaker(1, 1, time.Hour)
	assert.NoError(t, cb.Execute(func() error { return nil }))

	boom := assert.AnError
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.ErrorIs(t, cb.Execute(func() error {
		t.Fatal("must not run while open")
		return nil
	}), ErrOpen)
}
