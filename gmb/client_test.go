package gmb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheTTL(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		expected  time.Duration
	}{
		{"正常令牌", now.Add(30 * time.Minute), 29 * time.Minute},
		{"一小时令牌", now.Add(time.Hour), 59 * time.Minute},
		{"短命令牌不产生负TTL", now.Add(30 * time.Second), 10 * time.Second},
		{"已过期令牌", now.Add(-time.Minute), 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttl := cacheTTL(tt.expiresAt, now)
			assert.Equal(t, tt.expected, ttl)
			assert.Greater(t, ttl, time.Duration(0))
		})
	}
}
