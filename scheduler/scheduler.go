//定时任务：评价同步 + 发布队列派发
package scheduler

import (
	"context"
	"database/sql"
	"os"
	"time"

	"review-hub/database"
	"review-hub/gmb"
	"review-hub/lifecycle"
	"review-hub/logging"
	"review-hub/monitoring"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	defaultSyncSchedule     = "@hourly"
	defaultDispatchSchedule = "@every 1m"
	runTimeout              = 10 * time.Minute
)

// Service 后台任务调度器
type Service struct {
	db   *sql.DB
	rp   *database.RedisPool
	gmb  *gmb.Client
	cron *cron.Cron
}

func NewService(db *sql.DB, rp *database.RedisPool, client *gmb.Client) *Service {
	return &Service{
		db:   db,
		rp:   rp,
		gmb:  client,
		cron: cron.New(),
	}
}

// Start 注册并启动定时任务
// 同步周期可用 SYNC_SCHEDULE 覆盖（cron 表达式或 @every/@hourly）
func (s *Service) Start() error {
	syncSchedule := os.Getenv("SYNC_SCHEDULE")
	if syncSchedule == "" {
		syncSchedule = defaultSyncSchedule
	}

	if _, err := s.cron.AddFunc(syncSchedule, s.RunSyncAll); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(defaultDispatchSchedule, s.RunDispatch); err != nil {
		return err
	}
	// 每天清一次过期的令牌黑名单
	if _, err := s.cron.AddFunc("@daily", s.runBlacklistCleanup); err != nil {
		return err
	}

	s.cron.Start()
	logging.Info("调度器已启动", logrus.Fields{"syncSchedule": syncSchedule})
	return nil
}

// Stop 停止调度，等待运行中的任务结束
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Service) runBlacklistCleanup() {
	removed, err := database.CleanupExpiredBlacklist(s.db)
	if err != nil {
		logging.Error("黑名单清理失败", logrus.Fields{"error": err})
		return
	}
	logging.Info("黑名单清理完成", logrus.Fields{"removed": removed})
}

// RunSyncAll 对所有开启同步的租户执行一轮评价同步
func (s *Service) RunSyncAll() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	tenantIDs, err := database.ListTenantsWithSyncEnabled(s.db)
	if err != nil {
		logging.Error("获取待同步租户失败", logrus.Fields{"error": err})
		return
	}

	for _, tenantID := range tenantIDs {
		synced, err := s.SyncTenant(ctx, tenantID)
		if err != nil {
			logging.Error("租户同步失败", logrus.Fields{"tenantID": tenantID, "error": err})
			continue
		}
		logging.Info("租户同步完成", logrus.Fields{"tenantID": tenantID, "synced": synced})
	}
}

// SyncTenant 同步一个租户所有开启同步的门店的评价
// 单条评价失败不会中断整个批次，只记入该门店的同步错误
func (s *Service) SyncTenant(ctx context.Context, tenantID int) (int, error) {
	locations, err := database.ListLocations(s.db, tenantID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, loc := range locations {
		if !loc.SyncEnabled {
			continue
		}

		synced, err := s.syncLocation(ctx, tenantID, loc.LocationID, loc.PlatformLocation)
		if dbErr := database.UpdateLocationSyncStatus(s.db, tenantID, loc.LocationID, time.Now(), err); dbErr != nil {
			logging.Error("更新门店同步状态失败", logrus.Fields{"locationID": loc.LocationID, "error": dbErr})
		}
		if err != nil {
			logging.Error("门店同步失败", logrus.Fields{
				"tenantID":   tenantID,
				"locationID": loc.LocationID,
				"error":      err,
			})
			continue
		}
		total += synced
	}
	return total, nil
}

func (s *Service) syncLocation(ctx context.Context, tenantID, locationID int, platformLocation string) (int, error) {
	reviews, err := s.gmb.FetchReviews(ctx, tenantID, platformLocation)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, pr := range reviews {
		review := lifecycle.NormalizeReview(pr, tenantID, locationID)
		if _, err := database.UpsertReview(s.db, &review); err != nil {
			logging.Error("评价落库失败", logrus.Fields{
				"tenantID":         tenantID,
				"platformReviewID": review.PlatformReviewID,
				"error":            err,
			})
			continue
		}
		synced++
	}
	monitoring.ReviewsSyncedTotal.WithLabelValues("google").Add(float64(synced))
	return synced, nil
}
