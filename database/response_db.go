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

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// ErrActiveResponseExists 评价已有未走完流程的回复，不允许重复生成草稿
var ErrActiveResponseExists = errors.New("评价已有处理中的回复")

// InsertAIResponse 为评价创建一条草稿回复
// 前置条件：该评价没有非终态的回复（在同一事务里加锁检查）
func InsertAIResponse(db *sql.DB, resp *models.AIResponse) (int, error) {
	var responseID int
	err := monitoring.RecordDBTime("InsertAIResponse", func() error {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("开启事务失败: %v", err)
		}
		defer tx.Rollback()

		// 锁住评价行，挡住并发的重复生成
		var lockedID int
		lockQuery := `SELECT review_id FROM reviews WHERE review_id = $1 AND tenant_id = $2 FOR UPDATE`
		err = tx.QueryRow(lockQuery, resp.ReviewID, resp.TenantID).Scan(&lockedID)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("查询评价失败: %v", err)
		}

		var active int
		checkQuery := `
			SELECT COUNT(*) FROM ai_responses
			WHERE review_id = $1 AND tenant_id = $2 AND status NOT IN ('published', 'rejected')
		`
		if err := tx.QueryRow(checkQuery, resp.ReviewID, resp.TenantID).Scan(&active); err != nil {
			return fmt.Errorf("检查已有回复失败: %v", err)
		}
		if active > 0 {
			return ErrActiveResponseExists
		}

		insertQuery := `
			INSERT INTO ai_responses (
				tenant_id, review_id, response_text, model,
				confidence_score, quality_score, status, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
			RETURNING response_id
		`
		if err := tx.QueryRow(insertQuery,
			resp.TenantID, resp.ReviewID, resp.ResponseText, resp.Model,
			resp.ConfidenceScore, resp.QualityScore, resp.Status,
		).Scan(&responseID); err != nil {
			return fmt.Errorf("插入回复失败: %v", err)
		}

		return tx.Commit()
	})
	if err != nil {
		if err == ErrNotFound || err == ErrActiveResponseExists {
			return 0, err
		}
		logging.Error("创建回复草稿失败", logrus.Fields{"error": err, "reviewID": resp.ReviewID})
		return 0, err
	}
	logging.Info("回复草稿已创建", logrus.Fields{"responseID": responseID, "reviewID": resp.ReviewID})
	return responseID, nil
}

// GetAIResponse 按租户范围查询单条回复
func GetAIResponse(db *sql.DB, tenantID, responseID int) (*models.AIResponse, error) {
	var resp models.AIResponse
	err := monitoring.RecordDBTime("GetAIResponse", func() error {
		query := `
			SELECT response_id, tenant_id, review_id, response_text, model,
			       confidence_score, quality_score, status,
			       approved_at, approved_by, rejected_at, rejected_by, rejection_feedback,
			       published_at, published_by, created_at, updated_at
			FROM ai_responses
			WHERE response_id = $1 AND tenant_id = $2
		`
		return db.QueryRow(query, responseID, tenantID).Scan(
			&resp.ResponseID, &resp.TenantID, &resp.ReviewID, &resp.ResponseText, &resp.Model,
			&resp.ConfidenceScore, &resp.QualityScore, &resp.Status,
			&resp.ApprovedAt, &resp.ApprovedBy, &resp.RejectedAt, &resp.RejectedBy, &resp.RejectionFeedback,
			&resp.PublishedAt, &resp.PublishedBy, &resp.CreatedAt, &resp.UpdatedAt,
		)
	})
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询回复失败: %v", err)
	}
	return &resp, nil
}

// TransitionAIResponse 执行一次回复状态流转
// 状态校验和盖章统一走 lifecycle 包，校验和写库在同一事务里完成
func TransitionAIResponse(db *sql.DB, tenantID, responseID int, to, actor, feedback string) (*models.AIResponse, error) {
	var resp *models.AIResponse
	err := monitoring.RecordDBTime("TransitionAIResponse", func() error {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("开启事务失败: %v", err)
		}
		defer tx.Rollback()

		current := &models.AIResponse{}
		lockQuery := `
			SELECT response_id, tenant_id, review_id, status
			FROM ai_responses
			WHERE response_id = $1 AND tenant_id = $2
			FOR UPDATE
		`
		err = tx.QueryRow(lockQuery, responseID, tenantID).Scan(
			&current.ResponseID, &current.TenantID, &current.ReviewID, &current.Status,
		)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("查询回复失败: %v", err)
		}

		if err := lifecycle.ApplyResponseTransition(current, to, actor, feedback, time.Now()); err != nil {
			return err
		}

		updateQuery := `
			UPDATE ai_responses
			SET status = $3,
			    approved_at = COALESCE($4, approved_at),
			    approved_by = COALESCE($5, approved_by),
			    rejected_at = COALESCE($6, rejected_at),
			    rejected_by = COALESCE($7, rejected_by),
			    rejection_feedback = COALESCE($8, rejection_feedback),
			    published_at = COALESCE($9, published_at),
			    published_by = COALESCE($10, published_by),
			    updated_at = NOW()
			WHERE response_id = $1 AND tenant_id = $2
		`
		if _, err := tx.Exec(updateQuery, responseID, tenantID, current.Status,
			current.ApprovedAt, current.ApprovedBy,
			current.RejectedAt, current.RejectedBy, current.RejectionFeedback,
			current.PublishedAt, current.PublishedBy,
		); err != nil {
			return fmt.Errorf("更新回复状态失败: %v", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("提交事务失败: %v", err)
		}
		resp = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.Info("回复状态已流转", logrus.Fields{"responseID": responseID, "to": to, "actor": actor})
	return resp, nil
}

// UpdateResponseText 审批前修改回复文本，状态不变
func UpdateResponseText(db *sql.DB, tenantID, responseID int, text string) error {
	return monitoring.RecordDBTime("UpdateResponseText", func() error {
		query := `
			UPDATE ai_responses
			SET response_text = $3, updated_at = NOW()
			WHERE response_id = $1 AND tenant_id = $2
			  AND status IN ('draft', 'pending_review')
		`
		result, err := db.Exec(query, responseID, tenantID, text)
		if err != nil {
			return fmt.Errorf("修改回复文本失败: %v", err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// BulkTransitionAIResponses 批量通过/驳回
// 过滤条件 id = ANY(...) AND tenant_id = ... 会静默排除不属于本租户或状态不合法的 id
// 返回实际更新的行数，部分失败不会让整批失败
func BulkTransitionAIResponses(db *sql.DB, tenantID int, responseIDs []int, to, actor string) (int64, error) {
	var sources []string
	switch to {
	case lifecycle.ResponseApproved:
		sources = []string{lifecycle.ResponsePendingReview, lifecycle.ResponseDraft}
	case lifecycle.ResponseRejected:
		sources = []string{lifecycle.ResponseGenerating, lifecycle.ResponsePendingReview, lifecycle.ResponseDraft, lifecycle.ResponseApproved}
	default:
		return 0, fmt.Errorf("不支持的批量操作: %s", to)
	}

	var affected int64
	err := monitoring.RecordDBTime("BulkTransitionAIResponses", func() error {
		var query string
		if to == lifecycle.ResponseApproved {
			query = `
				UPDATE ai_responses
				SET status = $3, approved_at = NOW(), approved_by = $4, updated_at = NOW()
				WHERE response_id = ANY($1) AND tenant_id = $2 AND status = ANY($5)
			`
		} else {
			query = `
				UPDATE ai_responses
				SET status = $3, rejected_at = NOW(), rejected_by = $4, updated_at = NOW()
				WHERE response_id = ANY($1) AND tenant_id = $2 AND status = ANY($5)
			`
		}
		result, err := db.Exec(query, pq.Array(responseIDs), tenantID, to, actor, pq.Array(sources))
		if err != nil {
			return fmt.Errorf("批量更新失败: %v", err)
		}
		affected, _ = result.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	logging.Info("批量流转完成", logrus.Fields{"tenantID": tenantID, "to": to, "requested": len(responseIDs), "affected": affected})
	return affected, nil
}

// InsertResponseFeedback 记录针对某条回复的人工反馈
func InsertResponseFeedback(db *sql.DB, fb *models.ResponseFeedback) (int, error) {
	var feedbackID int
	err := monitoring.RecordDBTime("InsertResponseFeedback", func() error {
		// 回复必须属于当前租户
		var exists bool
		check := `SELECT EXISTS(SELECT 1 FROM ai_responses WHERE response_id = $1 AND tenant_id = $2)`
		if err := db.QueryRow(check, fb.ResponseID, fb.TenantID).Scan(&exists); err != nil {
			return fmt.Errorf("查询回复失败: %v", err)
		}
		if !exists {
			return ErrNotFound
		}

		query := `
			INSERT INTO response_feedback (tenant_id, response_id, user_id, rating, comment, created_at)
			VALUES ($1,$2,$3,$4,$5,NOW())
			RETURNING feedback_id
		`
		return db.QueryRow(query, fb.TenantID, fb.ResponseID, fb.UserID, fb.Rating, fb.Comment).Scan(&feedbackID)
	})
	if err != nil {
		return 0, err
	}
	return feedbackID, nil
}
