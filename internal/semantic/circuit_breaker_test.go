package semantic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codegraph/internal/types"
)

func TestCircuitBreakerOpensAfterThresholdFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureWindow: time.Minute, FailureThreshold: 3, OpenTimeout: time.Hour, SuccessesToClose: 2,
	})

	failing := func(ctx context.Context) error { return errors.New("boom") }
	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), failing)
	}
	require.Equal(t, types.CircuitOpen, cb.State())
}

func TestCircuitBreakerRejectsWhileOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureWindow: time.Minute, FailureThreshold: 1, OpenTimeout: time.Hour, SuccessesToClose: 1,
	})
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	require.Equal(t, types.CircuitOpen, cb.State())

	err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	require.Error(t, err)
}

func TestCircuitBreakerClosesAfterHalfOpenSuccesses(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureWindow: time.Minute, FailureThreshold: 1, OpenTimeout: time.Millisecond, SuccessesToClose: 2,
	})
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	require.Equal(t, types.CircuitOpen, cb.State())

	time.Sleep(5 * time.Millisecond)
	ok := func(ctx context.Context) error { return nil }
	require.NoError(t, cb.Execute(context.Background(), ok))
	require.NoError(t, cb.Execute(context.Background(), ok))
	require.Equal(t, types.CircuitClosed, cb.State())
}
