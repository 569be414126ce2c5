package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPriority(t *testing.T) {
	assert.Equal(t, 1, NextPriority(0))
	assert.Equal(t, 8, NextPriority(7))
}

func TestScheduleTime(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(30*time.Second), ScheduleTime(now, 30))
	assert.Equal(t, now.Add(120*time.Second), ScheduleTime(now, 120))
	// 未配置时用默认30秒
	assert.Equal(t, now.Add(30*time.Second), ScheduleTime(now, 0))
	assert.Equal(t, now.Add(30*time.Second), ScheduleTime(now, -5))
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name      string
		items     []int
		fromIndex int
		toIndex   int
		expected  []int
	}{
		{"首项后移两位", []int{1, 2, 3, 4}, 0, 2, []int{2, 3, 1, 4}},
		{"末项移到队首", []int{1, 2, 3, 4}, 3, 0, []int{4, 1, 2, 3}},
		{"原地不动", []int{1, 2, 3}, 1, 1, []int{1, 2, 3}},
		{"相邻互换", []int{1, 2}, 0, 1, []int{2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Reorder(tt.items, tt.fromIndex, tt.toIndex)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestReorder_OutOfRange(t *testing.T) {
	_, err := Reorder([]int{1, 2, 3}, 5, 0)
	assert.Error(t, err)

	_, err = Reorder([]int{1, 2, 3}, 0, 3)
	assert.Error(t, err)

	_, err = Reorder([]int{1, 2, 3}, -1, 1)
	assert.Error(t, err)
}
