package handlers

import (
	"testing"

	"review-hub/models"

	"github.com/stretchr/testify/assert"
)

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.ResponseSettings)
		badField string
	}{
		{"默认值合法", func(s *models.ResponseSettings) {}, ""},
		{"置信度越界", func(s *models.ResponseSettings) { s.ConfidenceThreshold = 1.2 }, "confidence_threshold"},
		{"质量分为负", func(s *models.ResponseSettings) { s.QualityThreshold = -0.1 }, "quality_threshold"},
		{"小时上限超过100", func(s *models.ResponseSettings) { s.RateLimits.MaxPerHour = 200 }, "rate_limits.max_per_hour"},
		{"每日上限为负", func(s *models.ResponseSettings) { s.RateLimits.MaxPerDay = -1 }, "rate_limits.max_per_day"},
		{"延迟为负", func(s *models.ResponseSettings) { s.RateLimits.ResponseDelay = -5 }, "rate_limits.response_delay"},
		{"星级档位越界", func(s *models.ResponseSettings) { s.AutoPublishRatings[6] = true }, "auto_publish_ratings"},
		{"营业时间格式错误", func(s *models.ResponseSettings) {
			s.BusinessHours.Enabled = true
			s.BusinessHours.Start = "9点"
		}, "business_hours.start"},
		{"无效时区", func(s *models.ResponseSettings) {
			s.BusinessHours.Enabled = true
			s.BusinessHours.Timezone = "Mars/Olympus"
		}, "business_hours.timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := models.DefaultResponseSettings(1)
			tt.mutate(&settings)
			field, _ := validateSettings(&settings)
			assert.Equal(t, tt.badField, field)
		})
	}
}
