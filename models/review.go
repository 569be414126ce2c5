package models

import "time"

// Review 一条从第三方平台同步下来的评价
// 自然键：(platform, platform_review_id, location_id)，重复同步走 upsert 不产生重复行
type Review struct {
	ReviewID         int        `json:"review_id"`
	TenantID         int        `json:"tenant_id"`
	LocationID       int        `json:"location_id"`
	Platform         string     `json:"platform"` // 目前只有 "google"
	PlatformReviewID string     `json:"platform_review_id"`
	ReviewerName     string     `json:"reviewer_name"`
	Rating           int        `json:"rating"` // 1-5
	ReviewText       string     `json:"review_text"`
	ReviewDate       time.Time  `json:"review_date"`
	ReviewUpdatedAt  time.Time  `json:"review_updated_at"`
	IsReviewEdited   bool       `json:"is_review_edited"`
	HasOwnerReply    bool       `json:"has_owner_reply"`
	OwnerReplyText   *string    `json:"owner_reply_text,omitempty"`
	OwnerReplyTime   *time.Time `json:"owner_reply_time,omitempty"`
	ResponseSource   *string    `json:"response_source,omitempty"` // "owner_external" 表示平台上商家自己回的
	Status           string     `json:"status"`                    // new / responded
	NeedsResponse    bool       `json:"needs_response"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// AIResponse 一条 AI 生成的草稿回复
// 状态流转见 lifecycle 包，终态为 published / rejected
type AIResponse struct {
	ResponseID        int        `json:"response_id"`
	TenantID          int        `json:"tenant_id"`
	ReviewID          int        `json:"review_id"`
	ResponseText      string     `json:"response_text"`
	Model             string     `json:"model"`
	ConfidenceScore   *float64   `json:"confidence_score,omitempty"` // 0-1
	QualityScore      *float64   `json:"quality_score,omitempty"`    // 0-1
	Status            string     `json:"status"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	ApprovedBy        *string    `json:"approved_by,omitempty"`
	RejectedAt        *time.Time `json:"rejected_at,omitempty"`
	RejectedBy        *string    `json:"rejected_by,omitempty"`
	RejectionFeedback *string    `json:"rejection_feedback,omitempty"`
	PublishedAt       *time.Time `json:"published_at,omitempty"`
	PublishedBy       *string    `json:"published_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ResponseQueueItem 发布队列里的一次发布计划
// 不变式：同一 response 同一时刻最多一条活跃行（pending/processing）
type ResponseQueueItem struct {
	QueueID             int        `json:"queue_id"`
	TenantID            int        `json:"tenant_id"`
	ResponseID          int        `json:"response_id"`
	ReviewID            int        `json:"review_id"`
	LocationID          int        `json:"location_id"`
	Platform            string     `json:"platform"`
	Status              string     `json:"status"` // pending / processing / published / failed / cancelled
	Priority            int        `json:"priority"`
	Position            int        `json:"position"` // 手动排序的权威序号，从1开始
	ScheduledFor        time.Time  `json:"scheduled_for"`
	AttemptCount        int        `json:"attempt_count"`
	MaxAttempts         int        `json:"max_attempts"`
	LastAttemptAt       *time.Time `json:"last_attempt_at,omitempty"`
	NextRetryAt         *time.Time `json:"next_retry_at,omitempty"`
	ErrorCode           *string    `json:"error_code,omitempty"`
	ErrorMessage        *string    `json:"error_message,omitempty"`
	ErrorDetails        *string    `json:"error_details,omitempty"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// RateLimits 租户级发布限速配置
type RateLimits struct {
	MaxPerHour    int `json:"max_per_hour"`   // 0-100
	MaxPerDay     int `json:"max_per_day"`
	ResponseDelay int `json:"response_delay"` // 入队到可发布的延迟，秒
}

// BusinessHours 仅在营业时间内发布的限制窗口
type BusinessHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start"` // "09:00"
	End      string `json:"end"`   // "18:00"
	Timezone string `json:"timezone"`
}

// ResponseSettings 每个租户一份的回复设置
type ResponseSettings struct {
	TenantID            int           `json:"tenant_id"`
	AutoPublishEnabled  bool          `json:"auto_publish_enabled"`
	AutoPublishRatings  map[int]bool  `json:"auto_publish_ratings"` // 按星级开关自动发布
	ConfidenceThreshold float64       `json:"confidence_threshold"` // 0-1
	QualityThreshold    float64       `json:"quality_threshold"`    // 0-1
	RateLimits          RateLimits    `json:"rate_limits"`
	BusinessHours       BusinessHours `json:"business_hours"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// DefaultResponseSettings 未配置时的默认值
func DefaultResponseSettings(tenantID int) ResponseSettings {
	return ResponseSettings{
		TenantID:            tenantID,
		AutoPublishEnabled:  false,
		AutoPublishRatings:  map[int]bool{5: true, 4: true},
		ConfidenceThreshold: 0.8,
		QualityThreshold:    0.7,
		RateLimits: RateLimits{
			MaxPerHour:    10,
			MaxPerDay:     50,
			ResponseDelay: 30,
		},
		BusinessHours: BusinessHours{
			Enabled:  false,
			Start:    "09:00",
			End:      "18:00",
			Timezone: "UTC",
		},
	}
}

// ResponseFeedback 针对某条 AI 回复的人工反馈，用于改进提示词
type ResponseFeedback struct {
	FeedbackID int       `json:"feedback_id"`
	TenantID   int       `json:"tenant_id"`
	ResponseID int       `json:"response_id"`
	UserID     int       `json:"user_id"`
	Rating     int       `json:"rating"` // 1-5
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReviewQuery 评价列表查询请求
type ReviewQuery struct {
	LocationID    *int    `json:"location_id,omitempty"`
	Rating        *int    `json:"rating,omitempty"`
	Status        *string `json:"status,omitempty"`
	NeedsResponse *bool   `json:"needs_response,omitempty"`
	Page          int     `json:"page"`
	Size          int     `json:"size"`
}

// Normalize 填充分页默认值
// handlers 回显和 SQL 分页用的必须是同一份数值
func (q *ReviewQuery) Normalize() {
	if q.Size <= 0 || q.Size > 100 {
		q.Size = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
}

// QueueStats 队列统计（用于前端展示和限速信息）
type QueueStats struct {
	Pending        int        `json:"pending"`
	Processing     int        `json:"processing"`
	PublishedToday int        `json:"published_today"`
	Failed         int        `json:"failed"`
	RateLimits     RateLimits `json:"rate_limits"`
}
