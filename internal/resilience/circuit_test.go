package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(cb *CircuitBreaker, err error) error {
	_, callErr := ExecuteVal(context.Background(), cb, func(_ context.Context) (struct{}, error) {
		return struct{}{}, err
	})
	return callErr
}

func trip(cb *CircuitBreaker, failures int) {
	for i := 0; i < failures; i++ {
		_ = run(cb, errors.New("dependency down"))
	}
}

func TestCircuitBreaker_StaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	for i := 0; i < 10; i++ {
		require.NoError(t, run(cb, nil))
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Hour})
	trip(cb, 3)
	assert.Equal(t, CircuitOpen, cb.State())

	err := run(cb, nil)
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Hour})
	trip(cb, 2)
	require.NoError(t, run(cb, nil))
	trip(cb, 2)
	// The earlier failures no longer count.
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Minute})
	now := time.Now()
	cb.now = func() time.Time { return now }

	trip(cb, 1)
	require.Equal(t, CircuitOpen, cb.State())

	now = now.Add(11 * time.Minute)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// A successful probe closes the circuit again.
	require.NoError(t, run(cb, nil))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Minute})
	now := time.Now()
	cb.now = func() time.Time { return now }

	trip(cb, 1)
	now = now.Add(11 * time.Minute)

	require.Error(t, run(cb, errors.New("still down")))
	assert.Equal(t, CircuitOpen, cb.State())

	err := run(cb, nil)
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_MultipleProbesRequired(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold:  1,
		ResetTimeout:      10 * time.Minute,
		HalfOpenMaxProbes: 2,
	})
	now := time.Now()
	cb.now = func() time.Time { return now }

	trip(cb, 1)
	now = now.Add(11 * time.Minute)

	require.NoError(t, run(cb, nil))
	assert.Equal(t, CircuitHalfOpen, cb.State())
	require.NoError(t, run(cb, nil))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_ShouldTripFilters(t *testing.T) {
	tripErr := errors.New("counts")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
		ShouldTrip:       func(err error) bool { return errors.Is(err, tripErr) },
	})

	// Non-tripworthy errors never open the circuit.
	for i := 0; i < 5; i++ {
		require.Error(t, run(cb, errors.New("ignored")))
	}
	assert.Equal(t, CircuitClosed, cb.State())

	_ = run(cb, tripErr)
	_ = run(cb, tripErr)
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})

	trip(cb, 1)
	assert.Equal(t, []string{"closed>open"}, transitions)
}

func TestExecuteVal_PassesValueThrough(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	got, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (string, error) {
		return "payload", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
}

func TestExecuteVal_ZeroValueWhenOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	trip(cb, 1)

	var calls int
	got, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, got)
	assert.Zero(t, calls)
}
