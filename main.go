//程序入口，初始化路由、数据库连接、启动服务器
package main

import (
	"database/sql"
	"net/http"
	"time"

	"review-hub/database"
	"review-hub/gmb"
	"review-hub/handlers"
	"review-hub/logging"
	"review-hub/monitoring"
	"review-hub/response"
	"review-hub/scheduler"

	"github.com/sirupsen/logrus"
)

var (
	db *sql.DB
	rp *database.RedisPool
)

func main() {
	var err error
	// 初始化日志
	logging.Init()

	// 初始化 Redis 连接池
	rp, err = database.InitRedis()
	if err != nil {
		logging.Error("Redis初始化失败", logrus.Fields{"error": err})
	}

	// 初始化数据库连接
	db, err = database.InitDB()
	if err != nil {
		// 连接失败时启动重试机制
		db, err = database.RetryConnect(3)
		if err != nil {
			logging.Error("数据库连接失败", logrus.Fields{"error": err})
		}
	}
	defer db.Close()

	//启动数据库监控
	go database.StartDBMonitor(db, 5*time.Minute) // 每5分钟监控一次

	// Google Business Profile 客户端和后台调度（评价同步 + 队列派发）
	gmbClient := gmb.NewClient(db)
	sched := scheduler.NewService(db, rp, gmbClient)
	if err := sched.Start(); err != nil {
		logging.Error("调度器启动失败", logrus.Fields{"error": err})
	}
	defer sched.Stop()

	// 中间件链
	public := func(h http.Handler) http.Handler {
		return handlers.LoggingMiddleware(monitoring.PrometheusMiddleware(h))
	}
	authed := func(h http.Handler) http.Handler {
		return public(handlers.AuthenticateToken()(h))
	}
	tenant := func(h http.Handler) http.Handler {
		return authed(handlers.RequireTenant(db)(h))
	}
	admin := func(h http.Handler) http.Handler {
		return authed(handlers.RequireTenant(db)(handlers.RequireRole(database.RoleAdmin)(h)))
	}
	owner := func(h http.Handler) http.Handler {
		return authed(handlers.RequireTenant(db)(handlers.RequireRole(database.RoleOwner)(h)))
	}

	// 暴露 /metrics 接口
	http.Handle("/metrics", handlers.LoggingMiddleware(monitoring.MetricsHandler()))

	// 无需Token验证的路由
	http.Handle("/api/auth/register", public(handlers.HandleRegister(db)))
	http.Handle("/api/auth/login", public(handlers.HandleLogin(db)))
	http.Handle("/api/auth/refresh", public(handlers.HandleRefreshToken(db)))
	http.Handle("/api/auth/logout", public(handlers.HandleLogout(db)))

	// 登录即可访问（不要求租户上下文）
	http.Handle("/api/v1/me", authed(handlers.HandleMe(db)))
	http.Handle("/api/v1/tenants", authed(handlers.HandleListTenants(db)))
	http.Handle("/api/v1/team/accept-invitation", authed(handlers.HandleAcceptInvitation(db)))
	http.Handle("/api/v1/team", authedOrTenant(db, authed, tenant))

	// 评价路由
	http.Handle("/api/v1/reviews", tenant(handlers.HandleReviews(db)))
	http.Handle("/api/v1/reviews/generate", tenant(handlers.HandleGenerateResponse(db)))
	http.Handle("/api/v1/reviews/batch-generate", tenant(handlers.HandleBatchGenerate(db, rp)))
	http.Handle("/api/v1/reviews/batch-status", tenant(handlers.HandleBatchStatus(rp)))
	http.Handle("/api/v1/reviews/sync", tenant(handlers.HandleSyncReviews(sched)))

	// 发布队列路由
	http.Handle("/api/v1/reviews/queue", tenant(handlers.HandleQueue(db)))
	http.Handle("/api/v1/reviews/queue/reorder", tenant(handlers.HandleQueueReorder(db)))
	http.Handle("/api/v1/reviews/queue/", tenant(handlers.HandleQueueItem(db)))

	// 回复审批路由（{id}/approve 等子路径都归这条）
	http.Handle("/api/v1/responses/bulk", tenant(handlers.HandleBulkResponseAction(db)))
	http.Handle("/api/v1/responses/", tenant(handlers.HandleResponseAction(db)))

	// 设置路由
	http.Handle("/api/v1/reviews/settings", admin(handlers.HandleSettings(db, rp)))

	// 团队路由
	http.Handle("/api/v1/team/invite", admin(handlers.HandleInvite(db)))
	http.Handle("/api/v1/team/members/", admin(handlers.HandleMember(db)))
	http.Handle("/api/v1/team/transfer-ownership", owner(handlers.HandleTransferOwnership(db)))
	http.Handle("/api/v1/onboarding/complete", admin(handlers.HandleCompleteOnboarding(db)))

	// Google 接入与门店同步配置
	http.Handle("/api/v1/google-sync", admin(handlers.HandleGoogleSync(db, gmbClient)))
	http.Handle("/api/v1/locations/sync-details", admin(handlers.HandleLocationSyncDetails(db)))

	// 启动服务器，最外层挂请求ID、CORS 和 panic 恢复
	root := response.ResponseMiddleware(response.CORSMiddleware(response.RecoverMiddleware(http.DefaultServeMux)))
	logging.Info("服务器启动，端口 :8080", nil)
	if err := http.ListenAndServe(":8080", root); err != nil {
		logging.Error("服务器启动失败", logrus.Fields{"error": err})
	}
}

// authedOrTenant /api/v1/team 的特殊分发：
// POST 创建新租户只要求登录，GET 成员列表要求租户上下文
func authedOrTenant(db *sql.DB, authed, tenant func(http.Handler) http.Handler) http.Handler {
	h := handlers.HandleTeam(db)
	withTenant := tenant(h)
	loginOnly := authed(h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			loginOnly.ServeHTTP(w, r)
			return
		}
		withTenant.ServeHTTP(w, r)
	})
}
