package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithBackoffSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), DefaultConfig(), func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithBackoffStopsOnNonRetryable(t *testing.T) {
	calls := 0
	boom := errors.New("fatal")
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	err := WithBackoff(context.Background(), cfg, func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithBackoffRetryIfOverride(t *testing.T) {
	calls := 0
	transient := errors.New("transient")
	cfg := GatewayConfig(time.Millisecond, func(err error) bool {
		return errors.Is(err, transient)
	})
	err := WithBackoff(context.Background(), cfg, func() error {
		calls++
		return transient
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls, "gateway config allows exactly one retry")
}

func TestWithBackoffRecoversAfterRetry(t *testing.T) {
	calls := 0
	transient := errors.New("transient")
	cfg := GatewayConfig(time.Millisecond, func(error) bool { return true })
	err := WithBackoff(context.Background(), cfg, func() error {
		calls++
		if calls == 1 {
			return transient
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestIsRetryableHTTPError(t *testing.T) {
	assert.True(t, IsRetryable(&HTTPError{StatusCode: 503, Message: "unavailable"}))
	assert.True(t, IsRetryable(&HTTPError{StatusCode: 429, Message: "slow down"}))
	assert.False(t, IsRetryable(&HTTPError{StatusCode: 404, Message: "gone"}))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(nil))
}
