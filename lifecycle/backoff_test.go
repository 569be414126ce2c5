package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterRetryableFailures(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      10 * time.Millisecond,
		BackoffFactor: 2,
	}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("临时故障")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2,
	}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errors.New("一直失败")
	})

	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}

// 4xx 不重试：请求本身有问题
func TestRetry_NonRetryable4xx(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2,
	}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return &HTTPError{Status: 404, Message: "review not found"}
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 404, StatusOf(err))
}

func TestRetry_5xxIsRetryable(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:   2,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2,
	}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return &HTTPError{Status: 503, Message: "service unavailable"}
	})

	assert.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetry_BackoffDelays(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2,
	}

	var gaps []time.Duration
	last := time.Now()
	_ = Retry(context.Background(), cfg, func() error {
		gaps = append(gaps, time.Since(last))
		last = time.Now()
		return errors.New("fail")
	})

	require.Len(t, gaps, 3)
	// 第二次前等 ~50ms，第三次前等 ~100ms（翻倍）
	assert.GreaterOrEqual(t, gaps[1], 50*time.Millisecond)
	assert.GreaterOrEqual(t, gaps[2], 100*time.Millisecond)
	assert.Less(t, gaps[2], 500*time.Millisecond)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		BackoffFactor: 2,
	}

	err := Retry(ctx, cfg, func() error {
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatusOf_WrappedError(t *testing.T) {
	inner := &HTTPError{Status: 429, Message: "rate limited"}
	wrapped := fmt.Errorf("发布失败: %w", inner)

	assert.Equal(t, 429, StatusOf(wrapped))
	assert.Equal(t, 0, StatusOf(errors.New("plain")))
}

func TestNextRetryAt(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 10 * time.Second, BackoffFactor: 2}

	assert.Equal(t, now.Add(time.Second), NextRetryAt(now, 1, cfg))
	assert.Equal(t, now.Add(2*time.Second), NextRetryAt(now, 2, cfg))
	assert.Equal(t, now.Add(4*time.Second), NextRetryAt(now, 3, cfg))
	// 封顶
	assert.Equal(t, now.Add(10*time.Second), NextRetryAt(now, 10, cfg))
}
