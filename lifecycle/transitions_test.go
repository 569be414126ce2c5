package lifecycle

import (
	"testing"
	"time"

	"review-hub/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionResponse(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"待审可以通过", ResponsePendingReview, ResponseApproved, true},
		{"草稿可以通过", ResponseDraft, ResponseApproved, true},
		{"待审可以驳回", ResponsePendingReview, ResponseRejected, true},
		{"已通过可以驳回", ResponseApproved, ResponseRejected, true},
		{"已通过可以发布", ResponseApproved, ResponsePublished, true},
		{"已驳回不能再通过", ResponseRejected, ResponseApproved, false},
		{"已驳回不能再驳回", ResponseRejected, ResponseRejected, false},
		{"已发布不能驳回", ResponsePublished, ResponseRejected, false},
		{"生成中不能直接通过", ResponseGenerating, ResponseApproved, false},
		{"待审不能直接发布", ResponsePendingReview, ResponsePublished, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransitionResponse(tt.from, tt.to))
		})
	}
}

func TestApplyResponseTransition_Approve(t *testing.T) {
	now := time.Now()
	resp := &models.AIResponse{Status: ResponsePendingReview}

	err := ApplyResponseTransition(resp, ResponseApproved, "user:12", "", now)
	require.NoError(t, err)

	assert.Equal(t, ResponseApproved, resp.Status)
	require.NotNil(t, resp.ApprovedAt)
	assert.Equal(t, now, *resp.ApprovedAt)
	require.NotNil(t, resp.ApprovedBy)
	assert.Equal(t, "user:12", *resp.ApprovedBy)
}

func TestApplyResponseTransition_RejectWithFeedback(t *testing.T) {
	now := time.Now()
	resp := &models.AIResponse{Status: ResponseApproved}

	err := ApplyResponseTransition(resp, ResponseRejected, "user:3", "语气太生硬", now)
	require.NoError(t, err)

	assert.Equal(t, ResponseRejected, resp.Status)
	require.NotNil(t, resp.RejectionFeedback)
	assert.Equal(t, "语气太生硬", *resp.RejectionFeedback)
	require.NotNil(t, resp.RejectedBy)
	assert.Equal(t, "user:3", *resp.RejectedBy)
}

// 驳回是终态：不能再回到 approved，必须重新生成草稿
func TestApplyResponseTransition_RejectionIsFinal(t *testing.T) {
	resp := &models.AIResponse{Status: ResponseRejected}

	err := ApplyResponseTransition(resp, ResponseApproved, "user:12", "", time.Now())
	assert.Error(t, err)
	assert.Equal(t, ResponseRejected, resp.Status)
}

func TestApplyResponseTransition_RequiresActor(t *testing.T) {
	resp := &models.AIResponse{Status: ResponsePendingReview}

	err := ApplyResponseTransition(resp, ResponseApproved, "", "", time.Now())
	assert.Error(t, err)
	assert.Equal(t, ResponsePendingReview, resp.Status)
}

func TestCanTransitionQueue(t *testing.T) {
	tests := []struct {
		from    string
		to      string
		allowed bool
	}{
		{QueuePending, QueueProcessing, true},
		{QueueProcessing, QueuePublished, true},
		{QueueProcessing, QueueFailed, true},
		{QueuePending, QueueCancelled, true},
		{QueueCancelled, QueuePending, true},
		{QueueFailed, QueuePending, true},
		{QueueProcessing, QueuePending, true},
		{QueuePublished, QueuePending, false},
		{QueueCancelled, QueuePublished, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, CanTransitionQueue(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestIsTerminalResponseStatus(t *testing.T) {
	assert.True(t, IsTerminalResponseStatus(ResponsePublished))
	assert.True(t, IsTerminalResponseStatus(ResponseRejected))
	assert.False(t, IsTerminalResponseStatus(ResponsePendingReview))
	assert.False(t, IsTerminalResponseStatus(ResponseApproved))
}
