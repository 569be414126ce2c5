//发布队列的纯计算部分：优先级计数、调度时间、手动重排
package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

const (
	// 入队默认最大尝试次数
	DefaultMaxAttempts = 3
	// 未配置时的入队延迟（秒）
	DefaultResponseDelay = 30
)

// NextPriority 租户内单调递增的入队计数
// priority 只是入队顺序号，消费方按 priority 升序读取，先入队先发布
// 手动排序以 position 为准
func NextPriority(currentMax int) int {
	return currentMax + 1
}

// ScheduleTime 计算可发布时间：入队时间 + 租户配置的延迟
func ScheduleTime(now time.Time, delaySeconds int) time.Time {
	if delaySeconds <= 0 {
		delaySeconds = DefaultResponseDelay
	}
	return now.Add(time.Duration(delaySeconds) * time.Second)
}

// ReorderError 重排参数越界
type ReorderError struct {
	Reason string
}

func (e *ReorderError) Error() string {
	return e.Reason
}

// IsReorderError 判断错误是否为重排参数错误
func IsReorderError(err error) bool {
	var re *ReorderError
	return errors.As(err, &re)
}

// Reorder 把 fromIndex 处的元素移到 toIndex，返回新顺序
// 调用方负责按新顺序从1开始重写 position
func Reorder[T any](items []T, fromIndex, toIndex int) ([]T, error) {
	n := len(items)
	if fromIndex < 0 || fromIndex >= n {
		return nil, &ReorderError{Reason: fmt.Sprintf("fromIndex 越界: %d", fromIndex)}
	}
	if toIndex < 0 || toIndex >= n {
		return nil, &ReorderError{Reason: fmt.Sprintf("toIndex 越界: %d", toIndex)}
	}

	result := make([]T, 0, n)
	result = append(result, items[:fromIndex]...)
	result = append(result, items[fromIndex+1:]...)

	// 在目标位置重新插入
	result = append(result[:toIndex], append([]T{items[fromIndex]}, result[toIndex:]...)...)
	return result, nil
}
