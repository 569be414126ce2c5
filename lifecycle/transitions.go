//回复与队列的状态机：唯一的流转入口，写状态时同时盖上操作者和时间戳
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"review-hub/models"
)

// TransitionError 非法的状态流转或缺少必要信息
// handlers 据此返回 409 而不是 500
type TransitionError struct {
	Reason string
}

func (e *TransitionError) Error() string {
	return e.Reason
}

// IsTransitionError 判断错误是否为状态流转错误
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// AIResponse 状态
const (
	ResponseGenerating    = "generating"
	ResponsePendingReview = "pending_review"
	ResponseDraft         = "draft"
	ResponseApproved      = "approved"
	ResponseRejected      = "rejected"
	ResponsePublished     = "published"
)

// 队列状态
const (
	QueuePending    = "pending"
	QueueProcessing = "processing"
	QueuePublished  = "published"
	QueueFailed     = "failed"
	QueueCancelled  = "cancelled"
)

// 每个目标状态允许的来源状态
var responseTransitions = map[string][]string{
	ResponsePendingReview: {ResponseGenerating},
	ResponseDraft:         {ResponseGenerating},
	ResponseApproved:      {ResponsePendingReview, ResponseDraft},
	// rejected 可以从任何非终态进入
	ResponseRejected:  {ResponseGenerating, ResponsePendingReview, ResponseDraft, ResponseApproved},
	ResponsePublished: {ResponseApproved},
}

var queueTransitions = map[string][]string{
	QueueProcessing: {QueuePending},
	QueuePublished:  {QueueProcessing},
	QueueFailed:     {QueueProcessing},
	QueueCancelled:  {QueuePending},
	// resume：cancelled 回到 pending；failed 重试也回到 pending；
	// processing 在可重试的发布失败后也回到 pending 等下一轮
	QueuePending: {QueueCancelled, QueueFailed, QueueProcessing},
}

// IsTerminalResponseStatus 终态判断，published / rejected 不再流转
func IsTerminalResponseStatus(status string) bool {
	return status == ResponsePublished || status == ResponseRejected
}

// IsActiveQueueStatus 活跃队列行：还会被调度的行
func IsActiveQueueStatus(status string) bool {
	return status == QueuePending || status == QueueProcessing
}

// CanTransitionResponse 校验回复状态流转是否合法
func CanTransitionResponse(from, to string) bool {
	for _, allowed := range responseTransitions[to] {
		if allowed == from {
			return true
		}
	}
	return false
}

// CanTransitionQueue 校验队列状态流转是否合法
func CanTransitionQueue(from, to string) bool {
	for _, allowed := range queueTransitions[to] {
		if allowed == from {
			return true
		}
	}
	return false
}

// ApplyResponseTransition 执行一次状态流转并盖章
// actor 必填（approve/reject/publish 都要记录操作者），feedback 仅 reject 使用
func ApplyResponseTransition(resp *models.AIResponse, to, actor, feedback string, now time.Time) error {
	if !CanTransitionResponse(resp.Status, to) {
		return &TransitionError{Reason: fmt.Sprintf("回复状态不允许从 %s 流转到 %s", resp.Status, to)}
	}

	switch to {
	case ResponseApproved:
		if actor == "" {
			return &TransitionError{Reason: "审批操作缺少操作者"}
		}
		resp.ApprovedAt = &now
		resp.ApprovedBy = &actor
	case ResponseRejected:
		if actor == "" {
			return &TransitionError{Reason: "驳回操作缺少操作者"}
		}
		resp.RejectedAt = &now
		resp.RejectedBy = &actor
		if feedback != "" {
			resp.RejectionFeedback = &feedback
		}
	case ResponsePublished:
		resp.PublishedAt = &now
		if actor != "" {
			resp.PublishedBy = &actor
		}
	}

	resp.Status = to
	resp.UpdatedAt = now
	return nil
}
