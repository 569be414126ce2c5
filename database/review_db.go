package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"review-hub/logging"
	"review-hub/models"
	"review-hub/monitoring"

	"github.com/sirupsen/logrus"
)

// ErrNotFound 实体不存在或不属于当前租户
var ErrNotFound = errors.New("记录不存在")

// UpsertReview 按自然键 (platform, platform_review_id, location_id) 插入或更新评价
// 重复同步同一条评价收敛到同一行；平台上出现编辑或商家直接回复时更新对应字段
// status/needs_response 只在平台出现商家回复时收紧，不会把已回复的评价改回待回复
func UpsertReview(db *sql.DB, review *models.Review) (int, error) {
	var reviewID int
	err := monitoring.RecordDBTime("UpsertReview", func() error {
		query := `
			INSERT INTO reviews (
				tenant_id, location_id, platform, platform_review_id,
				reviewer_name, rating, review_text, review_date, review_updated_at,
				is_review_edited, has_owner_reply, owner_reply_text, owner_reply_time,
				response_source, status, needs_response, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NOW(),NOW())
			ON CONFLICT (platform, platform_review_id, location_id) DO UPDATE SET
				reviewer_name     = EXCLUDED.reviewer_name,
				rating            = EXCLUDED.rating,
				review_text       = EXCLUDED.review_text,
				review_updated_at = EXCLUDED.review_updated_at,
				is_review_edited  = EXCLUDED.is_review_edited,
				has_owner_reply   = EXCLUDED.has_owner_reply,
				owner_reply_text  = COALESCE(EXCLUDED.owner_reply_text, reviews.owner_reply_text),
				owner_reply_time  = COALESCE(EXCLUDED.owner_reply_time, reviews.owner_reply_time),
				response_source   = COALESCE(EXCLUDED.response_source, reviews.response_source),
				status            = CASE WHEN EXCLUDED.has_owner_reply THEN 'responded' ELSE reviews.status END,
				needs_response    = CASE WHEN EXCLUDED.has_owner_reply THEN FALSE ELSE reviews.needs_response END,
				updated_at        = NOW()
			RETURNING review_id
		`
		return db.QueryRow(query,
			review.TenantID, review.LocationID, review.Platform, review.PlatformReviewID,
			review.ReviewerName, review.Rating, review.ReviewText, review.ReviewDate, review.ReviewUpdatedAt,
			review.IsReviewEdited, review.HasOwnerReply, review.OwnerReplyText, review.OwnerReplyTime,
			review.ResponseSource, review.Status, review.NeedsResponse,
		).Scan(&reviewID)
	})
	if err != nil {
		logging.Error("评价upsert失败", logrus.Fields{"error": err, "platformReviewID": review.PlatformReviewID})
		return 0, fmt.Errorf("评价upsert失败: %v", err)
	}
	return reviewID, nil
}

// GetReviewByID 按租户范围查询单条评价
func GetReviewByID(db *sql.DB, tenantID, reviewID int) (*models.Review, error) {
	var review models.Review
	err := monitoring.RecordDBTime("GetReviewByID", func() error {
		query := `
			SELECT review_id, tenant_id, location_id, platform, platform_review_id,
			       reviewer_name, rating, review_text, review_date, review_updated_at,
			       is_review_edited, has_owner_reply, owner_reply_text, owner_reply_time,
			       response_source, status, needs_response, created_at, updated_at
			FROM reviews
			WHERE review_id = $1 AND tenant_id = $2
		`
		return db.QueryRow(query, reviewID, tenantID).Scan(
			&review.ReviewID, &review.TenantID, &review.LocationID, &review.Platform, &review.PlatformReviewID,
			&review.ReviewerName, &review.Rating, &review.ReviewText, &review.ReviewDate, &review.ReviewUpdatedAt,
			&review.IsReviewEdited, &review.HasOwnerReply, &review.OwnerReplyText, &review.OwnerReplyTime,
			&review.ResponseSource, &review.Status, &review.NeedsResponse, &review.CreatedAt, &review.UpdatedAt,
		)
	})
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询评价失败: %v", err)
	}
	return &review, nil
}

// ListReviews 按条件分页查询租户评价，按评价时间倒序
func ListReviews(db *sql.DB, tenantID int, q models.ReviewQuery) ([]models.Review, int, error) {
	q.Normalize()

	// 动态拼接过滤条件，tenant_id 永远是第一个条件
	where := "WHERE tenant_id = $1"
	args := []interface{}{tenantID}
	if q.LocationID != nil {
		args = append(args, *q.LocationID)
		where += " AND location_id = $" + strconv.Itoa(len(args))
	}
	if q.Rating != nil {
		args = append(args, *q.Rating)
		where += " AND rating = $" + strconv.Itoa(len(args))
	}
	if q.Status != nil {
		args = append(args, *q.Status)
		where += " AND status = $" + strconv.Itoa(len(args))
	}
	if q.NeedsResponse != nil {
		args = append(args, *q.NeedsResponse)
		where += " AND needs_response = $" + strconv.Itoa(len(args))
	}

	var total int
	err := monitoring.RecordDBTime("CountReviews", func() error {
		return db.QueryRow("SELECT COUNT(*) FROM reviews "+where, args...).Scan(&total)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("统计评价失败: %v", err)
	}

	args = append(args, q.Size, (q.Page-1)*q.Size)
	query := fmt.Sprintf(`
		SELECT review_id, tenant_id, location_id, platform, platform_review_id,
		       reviewer_name, rating, review_text, review_date, review_updated_at,
		       is_review_edited, has_owner_reply, owner_reply_text, owner_reply_time,
		       response_source, status, needs_response, created_at, updated_at
		FROM reviews %s
		ORDER BY review_date DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	var reviews []models.Review
	err = monitoring.RecordDBTime("ListReviews", func() error {
		rows, err := db.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var review models.Review
			if err := rows.Scan(
				&review.ReviewID, &review.TenantID, &review.LocationID, &review.Platform, &review.PlatformReviewID,
				&review.ReviewerName, &review.Rating, &review.ReviewText, &review.ReviewDate, &review.ReviewUpdatedAt,
				&review.IsReviewEdited, &review.HasOwnerReply, &review.OwnerReplyText, &review.OwnerReplyTime,
				&review.ResponseSource, &review.Status, &review.NeedsResponse, &review.CreatedAt, &review.UpdatedAt,
			); err != nil {
				return err
			}
			reviews = append(reviews, review)
		}
		return rows.Err()
	})
	if err != nil {
		logging.Error("查询评价列表失败", logrus.Fields{"error": err, "tenantID": tenantID})
		return nil, 0, fmt.Errorf("查询评价列表失败: %v", err)
	}
	return reviews, total, nil
}

// ListReviewsNeedingResponse 待回复的评价（批量生成用）
func ListReviewsNeedingResponse(db *sql.DB, tenantID int, locationID *int, limit int) ([]models.Review, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := models.ReviewQuery{LocationID: locationID, Page: 1, Size: limit}
	needs := true
	q.NeedsResponse = &needs
	reviews, _, err := ListReviews(db, tenantID, q)
	return reviews, err
}

// MarkReviewResponded 发布成功后更新评价状态
func MarkReviewResponded(db *sql.DB, tenantID, reviewID int, source string) error {
	err := monitoring.RecordDBTime("MarkReviewResponded", func() error {
		query := `
			UPDATE reviews
			SET status = 'responded', needs_response = FALSE, response_source = $3, updated_at = NOW()
			WHERE review_id = $1 AND tenant_id = $2
		`
		result, err := db.Exec(query, reviewID, tenantID, source)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil && err != ErrNotFound {
		return fmt.Errorf("更新评价状态失败: %v", err)
	}
	return err
}
