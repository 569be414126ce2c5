//评价归一化：平台原始 payload -> 内部 Review 行
package lifecycle

import (
	"strings"
	"time"

	"review-hub/models"
)

// 平台回复来源标记，表示商家在平台上自己回的
const ResponseSourceOwnerExternal = "owner_external"

// PlatformReview 平台侧的原始评价对象（gmb 包负责从 wire 格式转换过来）
type PlatformReview struct {
	Name         string // accounts/<id>/locations/<id>/reviews/<id>
	ReviewerName string
	StarRating   string // FIVE / FOUR / THREE / TWO / ONE
	Comment      string
	CreateTime   time.Time
	UpdateTime   time.Time
	Reply        *PlatformReply
}

// PlatformReply 评价上内嵌的商家回复
type PlatformReply struct {
	Comment    string
	UpdateTime time.Time
}

// RatingFromStar 星级枚举转整数，未识别的值按 1 处理
func RatingFromStar(star string) int {
	switch strings.ToUpper(star) {
	case "FIVE":
		return 5
	case "FOUR":
		return 4
	case "THREE":
		return 3
	case "TWO":
		return 2
	case "ONE":
		return 1
	default:
		return 1
	}
}

// NormalizeReviewName 把资源名里的账号段收敛成通配符
// 同一条评价在不同账号别名下同步时自然键保持一致
// accounts/123/locations/456/reviews/789 -> accounts/*/locations/456/reviews/789
func NormalizeReviewName(name string) string {
	parts := strings.Split(name, "/")
	if len(parts) >= 2 && parts[0] == "accounts" {
		parts[1] = "*"
		return strings.Join(parts, "/")
	}
	return name
}

// NormalizeReview 归一化一条平台评价
// 带内嵌商家回复的评价直接标记为已回复，不进入生成阶段
func NormalizeReview(pr PlatformReview, tenantID, locationID int) models.Review {
	review := models.Review{
		TenantID:         tenantID,
		LocationID:       locationID,
		Platform:         "google",
		PlatformReviewID: NormalizeReviewName(pr.Name),
		ReviewerName:     pr.ReviewerName,
		Rating:           RatingFromStar(pr.StarRating),
		ReviewText:       pr.Comment,
		ReviewDate:       pr.CreateTime,
		ReviewUpdatedAt:  pr.UpdateTime,
		IsReviewEdited:   !pr.CreateTime.Equal(pr.UpdateTime),
		Status:           "new",
		NeedsResponse:    true,
	}

	if pr.Reply != nil {
		source := ResponseSourceOwnerExternal
		replyText := pr.Reply.Comment
		replyTime := pr.Reply.UpdateTime
		review.HasOwnerReply = true
		review.OwnerReplyText = &replyText
		review.OwnerReplyTime = &replyTime
		review.ResponseSource = &source
		review.Status = "responded"
		review.NeedsResponse = false
	}

	return review
}
