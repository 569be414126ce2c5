package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"review-hub/lifecycle"
	"review-hub/logging"
	"review-hub/models"
	"review-hub/monitoring"

	"github.com/sirupsen/logrus"
)

// ErrAlreadyQueued 该回复已有活跃的队列行，重复入队是幂等空操作
var ErrAlreadyQueued = errors.New("回复已在发布队列中")

// EnqueueResponse 把一条已通过审批的回复加入发布队列
// priority 取租户当前最大值+1（单调递增的入队序号），position 排到队尾
// scheduled_for = 当前时间 + 租户配置的延迟
// 同一回复已有 pending/processing 行时返回 ErrAlreadyQueued
func EnqueueResponse(db *sql.DB, tenantID, responseID, delaySeconds int) (*models.ResponseQueueItem, error) {
	var item *models.ResponseQueueItem
	err := monitoring.RecordDBTime("EnqueueResponse", func() error {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("开启事务失败: %v", err)
		}
		defer tx.Rollback()

		// 回复必须存在、属于本租户、且已通过审批；加锁防并发双入队
		var reviewID int
		var status string
		respQuery := `
			SELECT review_id, status FROM ai_responses
			WHERE response_id = $1 AND tenant_id = $2
			FOR UPDATE
		`
		err = tx.QueryRow(respQuery, responseID, tenantID).Scan(&reviewID, &status)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("查询回复失败: %v", err)
		}
		if status != lifecycle.ResponseApproved {
			return &lifecycle.TransitionError{Reason: fmt.Sprintf("回复当前状态为 %s，未通过审批不能入队", status)}
		}

		var active int
		checkQuery := `
			SELECT COUNT(*) FROM response_queue
			WHERE response_id = $1 AND tenant_id = $2 AND status IN ('pending', 'processing')
		`
		if err := tx.QueryRow(checkQuery, responseID, tenantID).Scan(&active); err != nil {
			return fmt.Errorf("检查队列失败: %v", err)
		}
		if active > 0 {
			return ErrAlreadyQueued
		}

		// 评价带出 location 和 platform
		var locationID int
		var platform string
		reviewQuery := `SELECT location_id, platform FROM reviews WHERE review_id = $1 AND tenant_id = $2`
		if err := tx.QueryRow(reviewQuery, reviewID, tenantID).Scan(&locationID, &platform); err != nil {
			return fmt.Errorf("查询评价失败: %v", err)
		}

		var maxPriority, maxPosition int
		maxQuery := `
			SELECT COALESCE(MAX(priority), 0), COALESCE(MAX("position"), 0)
			FROM response_queue
			WHERE tenant_id = $1 AND status IN ('pending', 'processing')
		`
		if err := tx.QueryRow(maxQuery, tenantID).Scan(&maxPriority, &maxPosition); err != nil {
			return fmt.Errorf("查询队列序号失败: %v", err)
		}

		now := time.Now()
		queued := &models.ResponseQueueItem{
			TenantID:     tenantID,
			ResponseID:   responseID,
			ReviewID:     reviewID,
			LocationID:   locationID,
			Platform:     platform,
			Status:       lifecycle.QueuePending,
			Priority:     lifecycle.NextPriority(maxPriority),
			Position:     maxPosition + 1,
			ScheduledFor: lifecycle.ScheduleTime(now, delaySeconds),
			MaxAttempts:  lifecycle.DefaultMaxAttempts,
			CreatedAt:    now,
		}

		insertQuery := `
			INSERT INTO response_queue (
				tenant_id, response_id, review_id, location_id, platform,
				status, priority, "position", scheduled_for, attempt_count, max_attempts, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,0,$10,$11)
			RETURNING queue_id
		`
		if err := tx.QueryRow(insertQuery,
			queued.TenantID, queued.ResponseID, queued.ReviewID, queued.LocationID, queued.Platform,
			queued.Status, queued.Priority, queued.Position, queued.ScheduledFor, queued.MaxAttempts, queued.CreatedAt,
		).Scan(&queued.QueueID); err != nil {
			return fmt.Errorf("入队失败: %v", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("提交事务失败: %v", err)
		}
		item = queued
		return nil
	})
	if err != nil {
		if err == ErrAlreadyQueued || err == ErrNotFound {
			return nil, err
		}
		logging.Error("入队失败", logrus.Fields{"error": err, "responseID": responseID})
		return nil, err
	}
	logging.Info("回复已入队", logrus.Fields{"queueID": item.QueueID, "responseID": responseID, "scheduledFor": item.ScheduledFor})
	return item, nil
}

const queueColumns = `
	queue_id, tenant_id, response_id, review_id, location_id, platform,
	status, priority, "position", scheduled_for, attempt_count, max_attempts,
	last_attempt_at, next_retry_at, error_code, error_message, error_details,
	processing_started_at, completed_at, created_at
`

func scanQueueItem(rows *sql.Rows) (models.ResponseQueueItem, error) {
	var item models.ResponseQueueItem
	err := rows.Scan(
		&item.QueueID, &item.TenantID, &item.ResponseID, &item.ReviewID, &item.LocationID, &item.Platform,
		&item.Status, &item.Priority, &item.Position, &item.ScheduledFor, &item.AttemptCount, &item.MaxAttempts,
		&item.LastAttemptAt, &item.NextRetryAt, &item.ErrorCode, &item.ErrorMessage, &item.ErrorDetails,
		&item.ProcessingStartedAt, &item.CompletedAt, &item.CreatedAt,
	)
	return item, err
}

// ListActiveQueue 租户当前活跃队列，按手动排序序号排列，序号相同按入队顺序
func ListActiveQueue(db *sql.DB, tenantID int) ([]models.ResponseQueueItem, error) {
	var items []models.ResponseQueueItem
	err := monitoring.RecordDBTime("ListActiveQueue", func() error {
		query := `
			SELECT ` + queueColumns + `
			FROM response_queue
			WHERE tenant_id = $1 AND status IN ('pending', 'processing')
			ORDER BY "position" ASC, priority ASC
		`
		rows, err := db.Query(query, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			item, err := scanQueueItem(rows)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("查询队列失败: %v", err)
	}
	return items, nil
}

// ListDueQueueItems 到点可以发布的行：pending、scheduled_for 已到、不在重试冷却期
// 按 priority 升序，先入队先发布
func ListDueQueueItems(db *sql.DB, tenantID, limit int) ([]models.ResponseQueueItem, error) {
	if limit <= 0 {
		limit = 10
	}
	var items []models.ResponseQueueItem
	err := monitoring.RecordDBTime("ListDueQueueItems", func() error {
		query := `
			SELECT ` + queueColumns + `
			FROM response_queue
			WHERE tenant_id = $1 AND status = 'pending'
			  AND scheduled_for <= NOW()
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY "position" ASC, priority ASC
			LIMIT $2
		`
		rows, err := db.Query(query, tenantID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			item, err := scanQueueItem(rows)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("查询待发布队列失败: %v", err)
	}
	return items, nil
}

// GetQueueStats 队列统计和限速展示数据
func GetQueueStats(db *sql.DB, tenantID int, limits models.RateLimits) (*models.QueueStats, error) {
	stats := &models.QueueStats{RateLimits: limits}
	err := monitoring.RecordDBTime("GetQueueStats", func() error {
		query := `
			SELECT
				COUNT(*) FILTER (WHERE status = 'pending'),
				COUNT(*) FILTER (WHERE status = 'processing'),
				COUNT(*) FILTER (WHERE status = 'failed'),
				COUNT(*) FILTER (WHERE status = 'published' AND completed_at >= CURRENT_DATE)
			FROM response_queue
			WHERE tenant_id = $1
		`
		return db.QueryRow(query, tenantID).Scan(&stats.Pending, &stats.Processing, &stats.Failed, &stats.PublishedToday)
	})
	if err != nil {
		return nil, fmt.Errorf("查询队列统计失败: %v", err)
	}
	return stats, nil
}

// CountPublishedSince 统计某时间点以来发布成功的条数（限速窗口用）
func CountPublishedSince(db *sql.DB, tenantID int, since time.Time) (int, error) {
	var count int
	err := monitoring.RecordDBTime("CountPublishedSince", func() error {
		query := `
			SELECT COUNT(*) FROM response_queue
			WHERE tenant_id = $1 AND status = 'published' AND completed_at >= $2
		`
		return db.QueryRow(query, tenantID, since).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("统计发布数失败: %v", err)
	}
	return count, nil
}

// CancelQueueItem 取消单条待发布的队列项
func CancelQueueItem(db *sql.DB, tenantID, queueID int) error {
	return monitoring.RecordDBTime("CancelQueueItem", func() error {
		query := `
			UPDATE response_queue
			SET status = 'cancelled'
			WHERE queue_id = $1 AND tenant_id = $2 AND status = 'pending'
		`
		result, err := db.Exec(query, queueID, tenantID)
		if err != nil {
			return fmt.Errorf("取消队列项失败: %v", err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ReorderQueue 手动重排：把第 fromIndex 项移到 toIndex，整个列表从1开始重写 position
// 每行 position 是独立写入，不在一个事务里；中途崩溃会留下部分重排的列表（已知限制）
func ReorderQueue(db *sql.DB, tenantID, fromIndex, toIndex int) ([]models.ResponseQueueItem, error) {
	items, err := ListActiveQueue(db, tenantID)
	if err != nil {
		return nil, err
	}

	reordered, err := lifecycle.Reorder(items, fromIndex, toIndex)
	if err != nil {
		return nil, err
	}

	for i := range reordered {
		reordered[i].Position = i + 1
		updateErr := monitoring.RecordDBTime("ReorderQueueWrite", func() error {
			query := `UPDATE response_queue SET "position" = $3 WHERE queue_id = $1 AND tenant_id = $2`
			_, err := db.Exec(query, reordered[i].QueueID, tenantID, reordered[i].Position)
			return err
		})
		if updateErr != nil {
			logging.Error("重排写入失败", logrus.Fields{"error": updateErr, "queueID": reordered[i].QueueID})
			return nil, fmt.Errorf("重排写入失败: %v", updateErr)
		}
	}

	logging.Info("队列已重排", logrus.Fields{"tenantID": tenantID, "from": fromIndex, "to": toIndex})
	return reordered, nil
}

// PauseQueue 暂停租户队列：所有 pending 置为 cancelled
// 粗粒度的整租户操作，不区分单独取消和批量暂停的行
func PauseQueue(db *sql.DB, tenantID int) (int64, error) {
	var affected int64
	err := monitoring.RecordDBTime("PauseQueue", func() error {
		result, err := db.Exec(
			`UPDATE response_queue SET status = 'cancelled' WHERE tenant_id = $1 AND status = 'pending'`,
			tenantID,
		)
		if err != nil {
			return err
		}
		affected, _ = result.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("暂停队列失败: %v", err)
	}
	logging.Info("队列已暂停", logrus.Fields{"tenantID": tenantID, "affected": affected})
	return affected, nil
}

// ResumeQueue 恢复租户队列：所有 cancelled 回到 pending
func ResumeQueue(db *sql.DB, tenantID int) (int64, error) {
	var affected int64
	err := monitoring.RecordDBTime("ResumeQueue", func() error {
		result, err := db.Exec(
			`UPDATE response_queue SET status = 'pending' WHERE tenant_id = $1 AND status = 'cancelled'`,
			tenantID,
		)
		if err != nil {
			return err
		}
		affected, _ = result.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("恢复队列失败: %v", err)
	}
	logging.Info("队列已恢复", logrus.Fields{"tenantID": tenantID, "affected": affected})
	return affected, nil
}

// MarkQueueProcessing 领取一条队列项开始发布
func MarkQueueProcessing(db *sql.DB, tenantID, queueID int) error {
	return monitoring.RecordDBTime("MarkQueueProcessing", func() error {
		query := `
			UPDATE response_queue
			SET status = 'processing', processing_started_at = NOW(), last_attempt_at = NOW(),
			    attempt_count = attempt_count + 1
			WHERE queue_id = $1 AND tenant_id = $2 AND status = 'pending'
		`
		result, err := db.Exec(query, queueID, tenantID)
		if err != nil {
			return fmt.Errorf("更新队列状态失败: %v", err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// MarkQueuePublished 发布成功
func MarkQueuePublished(db *sql.DB, tenantID, queueID int) error {
	return monitoring.RecordDBTime("MarkQueuePublished", func() error {
		query := `
			UPDATE response_queue
			SET status = 'published', completed_at = NOW(), error_code = NULL, error_message = NULL, error_details = NULL
			WHERE queue_id = $1 AND tenant_id = $2 AND status = 'processing'
		`
		result, err := db.Exec(query, queueID, tenantID)
		if err != nil {
			return fmt.Errorf("更新队列状态失败: %v", err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// RecordQueueFailure 记录一次发布失败
// 未用完尝试次数时回到 pending 并设置 next_retry_at（指数退避）；用完置为 failed
func RecordQueueFailure(db *sql.DB, tenantID, queueID int, code, message, details string) error {
	return monitoring.RecordDBTime("RecordQueueFailure", func() error {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("开启事务失败: %v", err)
		}
		defer tx.Rollback()

		var attemptCount, maxAttempts int
		query := `
			SELECT attempt_count, max_attempts FROM response_queue
			WHERE queue_id = $1 AND tenant_id = $2
			FOR UPDATE
		`
		err = tx.QueryRow(query, queueID, tenantID).Scan(&attemptCount, &maxAttempts)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("查询队列项失败: %v", err)
		}

		status := lifecycle.QueuePending
		var nextRetry *time.Time
		if attemptCount >= maxAttempts {
			status = lifecycle.QueueFailed
		} else {
			t := lifecycle.NextRetryAt(time.Now(), attemptCount, lifecycle.DefaultRetryConfig())
			nextRetry = &t
		}

		updateQuery := `
			UPDATE response_queue
			SET status = $3, next_retry_at = $4, error_code = $5, error_message = $6, error_details = $7
			WHERE queue_id = $1 AND tenant_id = $2
		`
		if _, err := tx.Exec(updateQuery, queueID, tenantID, status, nextRetry, code, message, details); err != nil {
			return fmt.Errorf("记录失败信息出错: %v", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("提交事务失败: %v", err)
		}
		logging.Warn("发布失败已记录", logrus.Fields{
			"queueID": queueID, "attempt": attemptCount, "maxAttempts": maxAttempts, "status": status, "code": code,
		})
		return nil
	})
}
