//回复草稿的审批、编辑与人工反馈接口
package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"review-hub/database"
	"review-hub/lifecycle"
	"review-hub/models"
	"review-hub/response"
)

// pathID 从 /prefix/{id}/suffix 形式的路径里取出数字ID
func pathID(path, prefix string) (int, bool) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	if idx := strings.Index(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}
	id, err := strconv.Atoi(rest)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// HandleResponseAction 单条回复的审批动作
// POST /api/v1/responses/{id}/approve | reject | feedback
// PATCH /api/v1/responses/{id}（修改草稿文本）
func HandleResponseAction(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantIDFromContext(r)

		responseID, ok := pathID(r.URL.Path, "/api/v1/responses/")
		if !ok {
			response.BadRequest(w, "无效的回复ID", nil)
			return
		}

		switch {
		case r.Method == http.MethodPatch:
			editResponse(db, w, r, tenantID, responseID)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/approve"):
			transitionResponse(db, w, r, tenantID, responseID, lifecycle.ResponseApproved)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/reject"):
			transitionResponse(db, w, r, tenantID, responseID, lifecycle.ResponseRejected)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/feedback"):
			submitFeedback(db, w, r, tenantID, responseID)
		case r.Method == http.MethodGet:
			resp, err := database.GetAIResponse(db, tenantID, responseID)
			if err == database.ErrNotFound {
				response.NotFound(w, "回复不存在")
				return
			}
			if err != nil {
				response.ServerError(w, err)
				return
			}
			response.Success(w, resp, "查询成功")
		default:
			response.Error(w, "不支持的请求方法", http.StatusMethodNotAllowed)
		}
	}
}

func transitionResponse(db *sql.DB, w http.ResponseWriter, r *http.Request, tenantID, responseID int, to string) {
	var body struct {
		Feedback string `json:"feedback"`
		// 审批通过后是否直接入队
		Enqueue bool `json:"enqueue"`
	}
	// body 可为空
	_ = json.NewDecoder(r.Body).Decode(&body)

	actor := strconv.Itoa(UserIDFromContext(r))

	resp, err := database.TransitionAIResponse(db, tenantID, responseID, to, actor, body.Feedback)
	if err != nil {
		switch {
		case err == database.ErrNotFound:
			response.NotFound(w, "回复不存在")
		case lifecycle.IsTransitionError(err):
			response.Conflict(w, err.Error())
		default:
			response.ServerError(w, err)
		}
		return
	}

	if to == lifecycle.ResponseApproved && body.Enqueue {
		settings, sErr := database.GetResponseSettings(db, tenantID)
		delay := lifecycle.DefaultResponseDelay
		if sErr == nil {
			delay = settings.RateLimits.ResponseDelay
		}
		if _, qErr := database.EnqueueResponse(db, tenantID, responseID, delay); qErr != nil && qErr != database.ErrAlreadyQueued {
			response.ServerError(w, qErr)
			return
		}
	}

	response.Success(w, resp, "状态已更新")
}

func editResponse(db *sql.DB, w http.ResponseWriter, r *http.Request, tenantID, responseID int) {
	var body struct {
		ResponseText string `json:"response_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.ResponseText) == "" {
		response.ValidationError(w, "回复内容不能为空", "response_text")
		return
	}

	if err := database.UpdateResponseText(db, tenantID, responseID, body.ResponseText); err != nil {
		if err == database.ErrNotFound {
			// 不存在或已过了可编辑阶段
			response.Conflict(w, "回复不存在或已不可编辑")
			return
		}
		response.ServerError(w, err)
		return
	}

	response.Success(w, nil, "回复已更新")
}

func submitFeedback(db *sql.DB, w http.ResponseWriter, r *http.Request, tenantID, responseID int) {
	var body struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "请求格式错误", "无效的JSON格式")
		return
	}
	if body.Rating < 1 || body.Rating > 5 {
		response.ValidationError(w, "评分必须在1-5之间", "rating")
		return
	}

	// 确认回复在当前租户下
	if _, err := database.GetAIResponse(db, tenantID, responseID); err != nil {
		if err == database.ErrNotFound {
			response.NotFound(w, "回复不存在")
			return
		}
		response.ServerError(w, err)
		return
	}

	fb := &models.ResponseFeedback{
		TenantID:   tenantID,
		ResponseID: responseID,
		UserID:     UserIDFromContext(r),
		Rating:     body.Rating,
		Comment:    body.Comment,
	}
	feedbackID, err := database.InsertResponseFeedback(db, fb)
	if err != nil {
		response.ServerError(w, err)
		return
	}
	fb.FeedbackID = feedbackID

	response.Created(w, fb, "反馈已提交")
}

// HandleBulkResponseAction 批量审批
// POST /api/v1/responses/bulk  body: {response_ids, action: approve|reject}
// 不属于当前租户或状态不允许的ID会被静默跳过，返回实际生效条数
func HandleBulkResponseAction(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantIDFromContext(r)

		var body struct {
			ResponseIDs []int  `json:"response_ids"`
			Action      string `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.ResponseIDs) == 0 {
			response.BadRequest(w, "请求格式错误", "response_ids 不能为空")
			return
		}

		var to string
		switch body.Action {
		case "approve":
			to = lifecycle.ResponseApproved
		case "reject":
			to = lifecycle.ResponseRejected
		default:
			response.ValidationError(w, "action 只支持 approve / reject", "action")
			return
		}

		actor := strconv.Itoa(UserIDFromContext(r))
		affected, err := database.BulkTransitionAIResponses(db, tenantID, body.ResponseIDs, to, actor)
		if err != nil {
			response.ServerError(w, err)
			return
		}

		response.Success(w, map[string]interface{}{
			"requested": len(body.ResponseIDs),
			"affected":  affected,
		}, "批量操作完成")
	}
}
