//发布队列接口：查看、入队、暂停/恢复、删除、手动排序
package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"review-hub/database"
	"review-hub/lifecycle"
	"review-hub/response"
)

// HandleQueue 队列主入口
// GET 返回活跃队列和统计，POST 手动入队，PATCH 暂停/恢复
func HandleQueue(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listQueue(db, w, r)
		case http.MethodPost:
			enqueue(db, w, r)
		case http.MethodPatch:
			toggleQueue(db, w, r)
		default:
			response.Error(w, "不支持的请求方法", http.StatusMethodNotAllowed)
		}
	}
}

func listQueue(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	tenantID := TenantIDFromContext(r)

	settings, err := database.GetResponseSettings(db, tenantID)
	if err != nil {
		response.ServerError(w, err)
		return
	}

	items, err := database.ListActiveQueue(db, tenantID)
	if err != nil {
		response.ServerError(w, err)
		return
	}
	stats, err := database.GetQueueStats(db, tenantID, settings.RateLimits)
	if err != nil {
		response.ServerError(w, err)
		return
	}

	response.Success(w, map[string]interface{}{
		"items": items,
		"stats": stats,
	}, "查询成功")
}

func enqueue(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	tenantID := TenantIDFromContext(r)

	var body struct {
		ResponseID int `json:"response_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ResponseID == 0 {
		response.BadRequest(w, "请求格式错误", "response_id 不能为空")
		return
	}

	settings, err := database.GetResponseSettings(db, tenantID)
	delay := lifecycle.DefaultResponseDelay
	if err == nil {
		delay = settings.RateLimits.ResponseDelay
	}

	item, err := database.EnqueueResponse(db, tenantID, body.ResponseID, delay)
	if err != nil {
		switch err {
		case database.ErrNotFound:
			response.NotFound(w, "回复不存在")
		case database.ErrAlreadyQueued:
			response.Conflict(w, "该回复已在队列中")
		default:
			if lifecycle.IsTransitionError(err) {
				response.Conflict(w, err.Error())
				return
			}
			response.ServerError(w, err)
		}
		return
	}

	response.Created(w, item, "已加入发布队列")
}

func toggleQueue(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	tenantID := TenantIDFromContext(r)

	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "请求格式错误", "无效的JSON格式")
		return
	}

	var affected int64
	var err error
	switch body.Action {
	case "pause":
		affected, err = database.PauseQueue(db, tenantID)
	case "resume":
		affected, err = database.ResumeQueue(db, tenantID)
	default:
		response.ValidationError(w, "action 只支持 pause / resume", "action")
		return
	}
	if err != nil {
		response.ServerError(w, err)
		return
	}

	response.Success(w, map[string]int64{"affected": affected}, "队列状态已更新")
}

// HandleQueueItem 删除（取消）单个队列项
// DELETE /api/v1/reviews/queue/{id}
func HandleQueueItem(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			response.Error(w, "不支持的请求方法", http.StatusMethodNotAllowed)
			return
		}
		tenantID := TenantIDFromContext(r)

		queueID, ok := pathID(r.URL.Path, "/api/v1/reviews/queue/")
		if !ok {
			response.BadRequest(w, "无效的队列项ID", nil)
			return
		}

		if err := database.CancelQueueItem(db, tenantID, queueID); err != nil {
			if err == database.ErrNotFound {
				response.NotFound(w, "队列项不存在或不可取消")
				return
			}
			response.ServerError(w, err)
			return
		}

		response.Success(w, nil, "队列项已取消")
	}
}

// HandleQueueReorder 手动调整发布顺序
// PATCH body: {from_index, to_index}，0 起始，针对活跃队列的当前排序
func HandleQueueReorder(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantIDFromContext(r)

		var body struct {
			FromIndex int `json:"from_index"`
			ToIndex   int `json:"to_index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.BadRequest(w, "请求格式错误", "无效的JSON格式")
			return
		}

		items, err := database.ReorderQueue(db, tenantID, body.FromIndex, body.ToIndex)
		if err != nil {
			if lifecycle.IsReorderError(err) {
				response.ValidationError(w, err.Error(), "from_index,to_index")
				return
			}
			response.ServerError(w, err)
			return
		}

		response.Success(w, map[string]interface{}{"items": items}, "排序已更新")
	}
}
