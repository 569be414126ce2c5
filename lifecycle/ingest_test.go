package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRatingFromStar(t *testing.T) {
	tests := []struct {
		star     string
		expected int
	}{
		{"FIVE", 5},
		{"FOUR", 4},
		{"THREE", 3},
		{"TWO", 2},
		{"ONE", 1},
		{"five", 5},
		{"", 1},
		{"STAR_RATING_UNSPECIFIED", 1},
	}

	for _, tt := range tests {
		t.Run(tt.star, func(t *testing.T) {
			assert.Equal(t, tt.expected, RatingFromStar(tt.star))
		})
	}
}

func TestNormalizeReviewName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "账号段收敛为通配符",
			input:    "accounts/1098765/locations/456/reviews/abc123",
			expected: "accounts/*/locations/456/reviews/abc123",
		},
		{
			name:     "不同账号别名得到相同自然键",
			input:    "accounts/2233445/locations/456/reviews/abc123",
			expected: "accounts/*/locations/456/reviews/abc123",
		},
		{
			name:     "非资源名格式原样返回",
			input:    "abc123",
			expected: "abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeReviewName(tt.input))
		})
	}
}

func TestNormalizeReview_NoReply(t *testing.T) {
	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	review := NormalizeReview(PlatformReview{
		Name:         "accounts/1/locations/2/reviews/r1",
		ReviewerName: "张三",
		StarRating:   "FOUR",
		Comment:      "菜品不错，上菜有点慢",
		CreateTime:   created,
		UpdateTime:   created,
	}, 7, 2)

	assert.Equal(t, 7, review.TenantID)
	assert.Equal(t, 2, review.LocationID)
	assert.Equal(t, "accounts/*/locations/2/reviews/r1", review.PlatformReviewID)
	assert.Equal(t, 4, review.Rating)
	assert.False(t, review.IsReviewEdited)
	assert.False(t, review.HasOwnerReply)
	assert.Equal(t, "new", review.Status)
	assert.True(t, review.NeedsResponse)
}

func TestNormalizeReview_WithOwnerReply(t *testing.T) {
	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	replied := created.Add(24 * time.Hour)

	review := NormalizeReview(PlatformReview{
		Name:       "accounts/1/locations/2/reviews/r2",
		StarRating: "TWO",
		Comment:    "等了一个小时",
		CreateTime: created,
		UpdateTime: created,
		Reply: &PlatformReply{
			Comment:    "非常抱歉，已为您补偿优惠券",
			UpdateTime: replied,
		},
	}, 7, 2)

	assert.True(t, review.HasOwnerReply)
	assert.Equal(t, "responded", review.Status)
	assert.False(t, review.NeedsResponse)
	assert.NotNil(t, review.ResponseSource)
	assert.Equal(t, ResponseSourceOwnerExternal, *review.ResponseSource)
	assert.NotNil(t, review.OwnerReplyText)
	assert.Equal(t, "非常抱歉，已为您补偿优惠券", *review.OwnerReplyText)
}

func TestNormalizeReview_EditDetection(t *testing.T) {
	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	review := NormalizeReview(PlatformReview{
		Name:       "accounts/1/locations/2/reviews/r3",
		StarRating: "FIVE",
		CreateTime: created,
		UpdateTime: created.Add(time.Hour),
	}, 7, 2)

	assert.True(t, review.IsReviewEdited)
}
