//通用重试：指数退避，4xx 视为不可重试
package lifecycle

import (
	"context"
	"errors"
	"time"
)

// RetryConfig 重试参数
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig 默认：3次，1s起步，翻倍，封顶10s
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   DefaultMaxAttempts,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
	}
}

// HTTPError 携带 HTTP 状态码的错误，供重试判断使用
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// HTTPStatus 实现状态码接口
func (e *HTTPError) HTTPStatus() int {
	return e.Status
}

// StatusOf 沿错误链提取 HTTP 状态码，没有则返回 0
func StatusOf(err error) int {
	for err != nil {
		if se, ok := err.(interface{ HTTPStatus() int }); ok {
			return se.HTTPStatus()
		}
		err = errors.Unwrap(err)
	}
	return 0
}

// IsRetryable 4xx 不重试（请求本身有问题，重试也不会成功），其余都重试
func IsRetryable(err error) bool {
	status := StatusOf(err)
	if status >= 400 && status < 500 {
		return false
	}
	return true
}

// Retry 按配置重试 op，每次失败后等待延迟再试，延迟按因子递增并封顶
// 不可重试的错误立即透传
func Retry(ctx context.Context, cfg RetryConfig, op func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = 2
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}

// NextRetryAt 第 attempt 次失败后的下次重试时间（attempt 从1开始）
func NextRetryAt(now time.Time, attempt int, cfg RetryConfig) time.Time {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = 2
	}
	delay := cfg.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
			break
		}
	}
	return now.Add(delay)
}
