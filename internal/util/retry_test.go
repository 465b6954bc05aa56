// ABOUTME: Tests for retry utilities including exponential backoff
// ABOUTME: Validates backoff bounds, jitter, and context-aware sleeping
package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBackoff_ZeroAttempt(t *testing.T) {
	assert.Zero(t, CalculateBackoff(time.Second, 0))
}

func TestCalculateBackoff_FirstAttempt(t *testing.T) {
	// First attempt: 2^1 * 100ms = 200ms, with ±25% jitter = 150ms to 250ms
	result := CalculateBackoff(100*time.Millisecond, 1)

	assert.GreaterOrEqual(t, result, 150*time.Millisecond)
	assert.LessOrEqual(t, result, 250*time.Millisecond)
}

func TestCalculateBackoff_ExponentialGrowth(t *testing.T) {
	baseDelay := 100 * time.Millisecond

	for attempt := 1; attempt <= 5; attempt++ {
		// Expected base: 2^attempt * 100ms
		expectedBase := baseDelay * time.Duration(1<<uint(attempt))

		result := CalculateBackoff(baseDelay, attempt)

		assert.GreaterOrEqual(t, result, expectedBase*3/4, "attempt %d", attempt)
		assert.LessOrEqual(t, result, expectedBase*5/4, "attempt %d", attempt)
	}
}

func TestCalculateBackoff_CapsAt30Seconds(t *testing.T) {
	// Attempt 10 would give 2^10 * 1s = 1024s without cap; 30s + 25% jitter max
	assert.LessOrEqual(t, CalculateBackoff(time.Second, 10), 37500*time.Millisecond)
}

func TestCalculateBackoff_AttemptCappedAt30(t *testing.T) {
	// Very high attempt values should not overflow or panic
	result := CalculateBackoff(time.Millisecond, 100)

	assert.LessOrEqual(t, result, 37500*time.Millisecond)
	assert.GreaterOrEqual(t, result, time.Duration(0))
}

func TestCalculateBackoff_JitterDistribution(t *testing.T) {
	// 2^2 * 1s = 4s base
	var results []time.Duration
	for i := 0; i < 100; i++ {
		results = append(results, CalculateBackoff(time.Second, 2))
	}

	allSame := true
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			allSame = false
			break
		}
	}
	assert.False(t, allSame, "jitter should produce varying results")

	// 4s ± 25% = 3s to 5s
	for i, r := range results {
		assert.GreaterOrEqual(t, r, 3*time.Second, "sample %d", i)
		assert.LessOrEqual(t, r, 5*time.Second, "sample %d", i)
	}
}

func TestCalculateBackoff_NegativeAttemptReturnsZero(t *testing.T) {
	assert.Zero(t, CalculateBackoff(time.Second, -1))
	assert.Zero(t, CalculateBackoff(time.Second, -100))
}

func TestCalculateBackoff_ZeroBaseDelay(t *testing.T) {
	assert.Zero(t, CalculateBackoff(0, 3))
}

func TestSleep_Completes(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSleep_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "Sleep should return promptly on cancel")
}
