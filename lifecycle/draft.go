package lifecycle

import (
	"fmt"
	"strings"

	"review-hub/models"
)

// DraftModel 当前草稿生成器的标识，写进 ai_responses.model 列
// 接入真实 LLM 后换成对应的模型名
const DraftModel = "template-v1"

// DraftResult 一次草稿生成的产物
type DraftResult struct {
	Text       string
	Model      string
	Confidence float64
	Quality    float64
}

// DraftReply 按星级模板生成回复草稿
// 置信度按评价文本长度打折：没有正文的评价能拿到的上下文最少
func DraftReply(review *models.Review) DraftResult {
	name := strings.TrimSpace(review.ReviewerName)
	if name == "" {
		name = "顾客"
	}

	var text string
	switch {
	case review.Rating >= 4:
		text = fmt.Sprintf("%s您好，感谢您的五星好评！期待您再次光临。", name)
		if review.Rating == 4 {
			text = fmt.Sprintf("%s您好，感谢您的认可！我们会继续努力做得更好，期待您再次光临。", name)
		}
	case review.Rating == 3:
		text = fmt.Sprintf("%s您好，感谢您的反馈。我们注意到这次体验还有提升空间，欢迎告诉我们具体的改进建议。", name)
	default:
		text = fmt.Sprintf("%s您好，非常抱歉这次没能让您满意。我们已记录您的反馈，会尽快改进，希望能有机会弥补。", name)
	}

	confidence := 0.9
	if len(strings.TrimSpace(review.ReviewText)) == 0 {
		confidence = 0.6
	}
	quality := 0.85
	if review.Rating <= 2 {
		// 差评回复风险高，压低质量分让人工兜底
		quality = 0.5
	}

	return DraftResult{
		Text:       text,
		Model:      DraftModel,
		Confidence: confidence,
		Quality:    quality,
	}
}

// ShouldAutoApprove 判断一条草稿是否满足租户的自动发布条件
func ShouldAutoApprove(settings *models.ResponseSettings, rating int, confidence, quality float64) bool {
	if settings == nil || !settings.AutoPublishEnabled {
		return false
	}
	if !settings.AutoPublishRatings[rating] {
		return false
	}
	return confidence >= settings.ConfidenceThreshold && quality >= settings.QualityThreshold
}
