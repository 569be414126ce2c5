package lifecycle

import (
	"testing"

	"review-hub/models"

	"github.com/stretchr/testify/assert"
)

func TestDraftReply_RatingBands(t *testing.T) {
	tests := []struct {
		name   string
		rating int
	}{
		{"五星", 5},
		{"四星", 4},
		{"三星", 3},
		{"一星", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DraftReply(&models.Review{ReviewerName: "张三", Rating: tt.rating, ReviewText: "评价内容"})
			assert.NotEmpty(t, result.Text)
			assert.Contains(t, result.Text, "张三")
			assert.Equal(t, DraftModel, result.Model)
		})
	}
}

func TestDraftReply_EmptyTextLowersConfidence(t *testing.T) {
	withText := DraftReply(&models.Review{Rating: 5, ReviewText: "很好吃"})
	noText := DraftReply(&models.Review{Rating: 5})
	assert.Greater(t, withText.Confidence, noText.Confidence)
}

func TestDraftReply_LowRatingLowersQuality(t *testing.T) {
	good := DraftReply(&models.Review{Rating: 5, ReviewText: "好"})
	bad := DraftReply(&models.Review{Rating: 1, ReviewText: "差"})
	assert.Greater(t, good.Quality, bad.Quality)
}

func TestShouldAutoApprove(t *testing.T) {
	settings := models.DefaultResponseSettings(1)
	settings.AutoPublishEnabled = true

	tests := []struct {
		name       string
		rating     int
		confidence float64
		quality    float64
		expected   bool
	}{
		{"五星达标", 5, 0.9, 0.8, true},
		{"四星达标", 4, 0.85, 0.75, true},
		{"三星不在自动发布档位", 3, 0.95, 0.95, false},
		{"置信度不够", 5, 0.7, 0.9, false},
		{"质量分不够", 5, 0.9, 0.6, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShouldAutoApprove(&settings, tt.rating, tt.confidence, tt.quality))
		})
	}
}

func TestShouldAutoApprove_Disabled(t *testing.T) {
	settings := models.DefaultResponseSettings(1)
	assert.False(t, ShouldAutoApprove(&settings, 5, 1.0, 1.0))
	assert.False(t, ShouldAutoApprove(nil, 5, 1.0, 1.0))
}
