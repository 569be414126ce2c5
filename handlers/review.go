//评价相关接口：列表、草稿生成、批量生成、手动同步
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"review-hub/database"
	"review-hub/lifecycle"
	"review-hub/logging"
	"review-hub/models"
	"review-hub/response"
	"review-hub/scheduler"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	batchJobTTL       = time.Hour
	batchJobKeyPrefix = "batch_job_"
)

// HandleReviews 评价列表
// GET 用查询参数过滤，POST 用 JSON body（前端的复合筛选走这条）
func HandleReviews(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantIDFromContext(r)

		var q models.ReviewQuery
		switch r.Method {
		case http.MethodGet:
			q = reviewQueryFromParams(r)
		case http.MethodPost:
			if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
				response.BadRequest(w, "请求格式错误", "无效的JSON格式")
				return
			}
		default:
			response.Error(w, "不支持的请求方法", http.StatusMethodNotAllowed)
			return
		}
		q.Normalize()

		reviews, total, err := database.ListReviews(db, tenantID, q)
		if err != nil {
			response.ServerError(w, err)
			return
		}

		response.Success(w, map[string]interface{}{
			"reviews": reviews,
			"total":   total,
			"page":    q.Page,
			"size":    q.Size,
		}, "查询成功")
	}
}

func reviewQueryFromParams(r *http.Request) models.ReviewQuery {
	var q models.ReviewQuery
	params := r.URL.Query()

	if v, err := strconv.Atoi(params.Get("location_id")); err == nil {
		q.LocationID = &v
	}
	if v, err := strconv.Atoi(params.Get("rating")); err == nil {
		q.Rating = &v
	}
	if v := params.Get("status"); v != "" {
		q.Status = &v
	}
	if v := params.Get("needs_response"); v != "" {
		needs := v == "true"
		q.NeedsResponse = &needs
	}
	q.Page, _ = strconv.Atoi(params.Get("page"))
	q.Size, _ = strconv.Atoi(params.Get("size"))
	return q
}

// HandleGenerateResponse 为单条评价生成回复草稿
// 评价已有处理中的回复时返回 409
func HandleGenerateResponse(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantIDFromContext(r)

		var body struct {
			ReviewID int `json:"review_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ReviewID == 0 {
			response.BadRequest(w, "请求格式错误", "review_id 不能为空")
			return
		}

		resp, err := generateForReview(db, tenantID, body.ReviewID)
		if err != nil {
			switch err {
			case database.ErrNotFound:
				response.NotFound(w, "评价不存在")
			case database.ErrActiveResponseExists:
				response.Conflict(w, "该评价已有处理中的回复")
			default:
				response.ServerError(w, err)
			}
			return
		}

		response.Created(w, resp, "回复草稿已生成")
	}
}

// generateForReview 生成草稿并按租户设置走自动审批
// 单条生成和批量生成共用这条路径
func generateForReview(db *sql.DB, tenantID, reviewID int) (*models.AIResponse, error) {
	review, err := database.GetReviewByID(db, tenantID, reviewID)
	if err != nil {
		return nil, err
	}

	draft := lifecycle.DraftReply(review)
	resp := &models.AIResponse{
		TenantID:        tenantID,
		ReviewID:        reviewID,
		ResponseText:    draft.Text,
		Model:           draft.Model,
		ConfidenceScore: &draft.Confidence,
		QualityScore:    &draft.Quality,
		Status:          lifecycle.ResponsePendingReview,
	}

	responseID, err := database.InsertAIResponse(db, resp)
	if err != nil {
		return nil, err
	}
	resp.ResponseID = responseID

	settings, err := database.GetResponseSettings(db, tenantID)
	if err != nil {
		logging.Error("读取回复设置失败，跳过自动审批", logrus.Fields{"tenantID": tenantID, "error": err})
		return resp, nil
	}

	if lifecycle.ShouldAutoApprove(settings, review.Rating, draft.Confidence, draft.Quality) {
		approved, err := database.TransitionAIResponse(db, tenantID, responseID, lifecycle.ResponseApproved, "auto", "")
		if err != nil {
			logging.Error("自动审批失败", logrus.Fields{"responseID": responseID, "error": err})
			return resp, nil
		}
		if _, err := database.EnqueueResponse(db, tenantID, responseID, settings.RateLimits.ResponseDelay); err != nil {
			logging.Error("自动入队失败", logrus.Fields{"responseID": responseID, "error": err})
		}
		return approved, nil
	}

	return resp, nil
}

// HandleBatchGenerate 批量生成草稿
// 立即返回任务ID，后台逐条处理，进度写 Redis
func HandleBatchGenerate(db *sql.DB, rp *database.RedisPool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantIDFromContext(r)

		var body struct {
			ReviewIDs  []int `json:"review_ids"`
			LocationID *int  `json:"location_id"`
			Limit      int   `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.BadRequest(w, "请求格式错误", "无效的JSON格式")
			return
		}

		reviewIDs := body.ReviewIDs
		if len(reviewIDs) == 0 {
			// 未指定时取所有待回复的评价
			limit := body.Limit
			if limit <= 0 || limit > 200 {
				limit = 200
			}
			reviews, err := database.ListReviewsNeedingResponse(db, tenantID, body.LocationID, limit)
			if err != nil {
				response.ServerError(w, err)
				return
			}
			for _, rv := range reviews {
				reviewIDs = append(reviewIDs, rv.ReviewID)
			}
		}

		job := models.BatchJob{
			JobID:     uuid.New().String(),
			TenantID:  tenantID,
			Total:     len(reviewIDs),
			Status:    "running",
			StartedAt: time.Now(),
		}
		if err := saveBatchJob(rp, &job); err != nil {
			response.ServerError(w, err)
			return
		}

		go runBatchGenerate(db, rp, job, reviewIDs)

		response.SuccessWithCode(w, map[string]string{"job_id": job.JobID}, "批量生成任务已创建", http.StatusAccepted)
	}
}

func runBatchGenerate(db *sql.DB, rp *database.RedisPool, job models.BatchJob, reviewIDs []int) {
	for _, reviewID := range reviewIDs {
		_, err := generateForReview(db, job.TenantID, reviewID)
		job.Processed++
		if err != nil {
			job.Failed++
			logging.Error("批量生成单条失败", logrus.Fields{
				"jobID":    job.JobID,
				"reviewID": reviewID,
				"error":    err,
			})
		} else {
			job.Succeeded++
		}
		if err := saveBatchJob(rp, &job); err != nil {
			logging.Error("批量任务进度写入失败", logrus.Fields{"jobID": job.JobID, "error": err})
		}
	}

	job.Status = "completed"
	if err := saveBatchJob(rp, &job); err != nil {
		logging.Error("批量任务收尾写入失败", logrus.Fields{"jobID": job.JobID, "error": err})
	}
	logging.Info("批量生成完成", logrus.Fields{
		"jobID":     job.JobID,
		"succeeded": job.Succeeded,
		"failed":    job.Failed,
	})
}

func saveBatchJob(rp *database.RedisPool, job *models.BatchJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return database.SetToCache(rp, batchJobKeyPrefix+job.JobID, string(data), batchJobTTL)
}

// HandleBatchStatus 查询批量生成任务进度
func HandleBatchStatus(rp *database.RedisPool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantIDFromContext(r)

		jobID := r.URL.Query().Get("jobId")
		if jobID == "" {
			response.BadRequest(w, "缺少参数", "jobId 不能为空")
			return
		}

		data, err := database.GetFromCache(rp, batchJobKeyPrefix+jobID)
		if database.IsCacheMiss(err) {
			response.NotFound(w, "任务不存在或已过期")
			return
		}
		if err != nil {
			response.ServerError(w, err)
			return
		}

		var job models.BatchJob
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			response.ServerError(w, err)
			return
		}
		// 任务也按租户隔离
		if job.TenantID != tenantID {
			response.NotFound(w, "任务不存在或已过期")
			return
		}

		response.Success(w, job, "查询成功")
	}
}

// HandleSyncReviews 手动触发当前租户的评价同步
func HandleSyncReviews(sched *scheduler.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantIDFromContext(r)

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
		defer cancel()

		synced, err := sched.SyncTenant(ctx, tenantID)
		if err != nil {
			response.ServerError(w, err)
			return
		}

		response.Success(w, map[string]int{"synced": synced}, "同步完成")
	}
}
