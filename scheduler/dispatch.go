package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"review-hub/database"
	"review-hub/lifecycle"
	"review-hub/logging"
	"review-hub/models"
	"review-hub/monitoring"

	"github.com/sirupsen/logrus"
)

// RunDispatch 对队列里有活跃行的租户派发一轮到期的队列项
// 按队列本身选租户，不看同步开关：关掉同步不能把已入队的回复卡死
func (s *Service) RunDispatch() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	tenantIDs, err := database.ListTenantsWithQueuedResponses(s.db)
	if err != nil {
		logging.Error("获取待派发租户失败", logrus.Fields{"error": err})
		return
	}

	for _, tenantID := range tenantIDs {
		if err := s.DispatchTenant(ctx, tenantID); err != nil {
			logging.Error("租户派发失败", logrus.Fields{"tenantID": tenantID, "error": err})
		}
	}
}

// DispatchTenant 派发一个租户到期的队列项
// 受营业时间窗口和小时/每日限速约束，超限的项留到下一轮
func (s *Service) DispatchTenant(ctx context.Context, tenantID int) error {
	settings, err := database.GetResponseSettings(s.db, tenantID)
	if err != nil {
		return err
	}

	now := time.Now()
	if !lifecycle.WithinBusinessHours(settings.BusinessHours, now) {
		return nil
	}

	budget, err := s.publishBudget(tenantID, settings.RateLimits, now)
	if err != nil {
		return err
	}
	if budget <= 0 {
		return nil
	}

	items, err := database.ListDueQueueItems(s.db, tenantID, budget)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := s.publishItem(ctx, item.QueueID, tenantID, item.ResponseID, item.ReviewID, item.LocationID); err != nil {
			logging.Error("队列项发布失败", logrus.Fields{
				"tenantID": tenantID,
				"queueID":  item.QueueID,
				"error":    err,
			})
		}
	}

	// 队列深度上报放在派发后，数值是本轮处理完的余量
	stats, err := database.GetQueueStats(s.db, tenantID, settings.RateLimits)
	if err == nil {
		monitoring.QueueDepth.WithLabelValues(strconv.Itoa(tenantID)).Set(float64(stats.Pending))
	}
	return nil
}

// publishBudget 本轮还能发多少条：小时余量和每日余量取小
func (s *Service) publishBudget(tenantID int, limits models.RateLimits, now time.Time) (int, error) {
	hourly, err := database.CountPublishedSince(s.db, tenantID, now.Add(-time.Hour))
	if err != nil {
		return 0, err
	}
	daily, err := database.CountPublishedSince(s.db, tenantID, now.Truncate(24*time.Hour))
	if err != nil {
		return 0, err
	}

	budget := limits.MaxPerHour - hourly
	if rest := limits.MaxPerDay - daily; rest < budget {
		budget = rest
	}
	return budget, nil
}

func (s *Service) publishItem(ctx context.Context, queueID, tenantID, responseID, reviewID, locationID int) error {
	if err := database.MarkQueueProcessing(s.db, tenantID, queueID); err != nil {
		return err
	}

	resp, err := database.GetAIResponse(s.db, tenantID, responseID)
	if err != nil {
		return s.recordFailure(tenantID, queueID, err)
	}
	review, err := database.GetReviewByID(s.db, tenantID, reviewID)
	if err != nil {
		return s.recordFailure(tenantID, queueID, err)
	}
	loc, err := database.GetLocationByID(s.db, tenantID, locationID)
	if err != nil {
		return s.recordFailure(tenantID, queueID, err)
	}

	reviewName, err := publishName(loc.PlatformLocation, review.PlatformReviewID)
	if err != nil {
		return s.recordFailure(tenantID, queueID, err)
	}

	if err := s.gmb.PublishReply(ctx, tenantID, reviewName, resp.ResponseText); err != nil {
		monitoring.RepliesPublishedTotal.WithLabelValues("google", "failure").Inc()
		return s.recordFailure(tenantID, queueID, err)
	}

	if err := database.MarkQueuePublished(s.db, tenantID, queueID); err != nil {
		return err
	}
	if _, err := database.TransitionAIResponse(s.db, tenantID, responseID, lifecycle.ResponsePublished, "system", ""); err != nil {
		logging.Error("回复状态推进失败", logrus.Fields{"responseID": responseID, "error": err})
	}
	if err := database.MarkReviewResponded(s.db, tenantID, reviewID, "ai_generated"); err != nil {
		logging.Error("评价状态更新失败", logrus.Fields{"reviewID": reviewID, "error": err})
	}

	monitoring.RepliesPublishedTotal.WithLabelValues("google", "success").Inc()
	logging.Info("回复已发布", logrus.Fields{"tenantID": tenantID, "queueID": queueID, "reviewID": reviewID})
	return nil
}

func (s *Service) recordFailure(tenantID, queueID int, cause error) error {
	code := "publish_error"
	if status := lifecycle.StatusOf(cause); status > 0 {
		code = fmt.Sprintf("http_%d", status)
	}
	if err := database.RecordQueueFailure(s.db, tenantID, queueID, code, cause.Error(), ""); err != nil {
		return err
	}
	return cause
}

// publishName 还原发布用的评价资源名
// 库里的 platform_review_id 账号段被收敛成了通配符，发布时用门店自己的
// accounts/<id>/locations/<id> 前缀拼回去
func publishName(platformLocation, platformReviewID string) (string, error) {
	idx := strings.LastIndex(platformReviewID, "/reviews/")
	if idx < 0 {
		return "", fmt.Errorf("无法识别的评价资源名: %s", platformReviewID)
	}
	return platformLocation + platformReviewID[idx:], nil
}
