package database

import (
	"database/sql"
	"testing"
	"time"

	"review-hub/lifecycle"
	"review-hub/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func sampleReview() *models.Review {
	return &models.Review{
		TenantID:         1,
		LocationID:       3,
		Platform:         "google",
		PlatformReviewID: "accounts/*/locations/456/reviews/789",
		ReviewerName:     "张三",
		Rating:           5,
		ReviewText:       "很好",
		ReviewDate:       time.Now(),
		ReviewUpdatedAt:  time.Now(),
		Status:           "new",
		NeedsResponse:    true,
	}
}

// 同一条评价重复 upsert 走的是带自然键冲突子句的单条语句，两次都落到同一行
func TestUpsertReview_Idempotent(t *testing.T) {
	db, mock := newMockDB(t)

	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`INSERT INTO reviews .* ON CONFLICT \(platform, platform_review_id, location_id\) DO UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"review_id"}).AddRow(7))
	}

	first, err := UpsertReview(db, sampleReview())
	require.NoError(t, err)
	second, err := UpsertReview(db, sampleReview())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 评价已有非终态回复时拒绝重复生成，事务回滚不落库
func TestInsertAIResponse_ActiveResponseExists(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT review_id FROM reviews WHERE review_id = \$1 AND tenant_id = \$2 FOR UPDATE`).
		WithArgs(42, 1).
		WillReturnRows(sqlmock.NewRows([]string{"review_id"}).AddRow(42))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ai_responses`).
		WithArgs(42, 1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := InsertAIResponse(db, &models.AIResponse{
		TenantID:     1,
		ReviewID:     42,
		ResponseText: "感谢好评",
		Status:       lifecycle.ResponsePendingReview,
	})

	assert.ErrorIs(t, err, ErrActiveResponseExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 评价不属于调用方租户时按不存在处理
func TestInsertAIResponse_ForeignTenant(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT review_id FROM reviews`).
		WithArgs(42, 2).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := InsertAIResponse(db, &models.AIResponse{TenantID: 2, ReviewID: 42})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 同一回复已有活跃队列行时再次入队是 no-op 冲突
func TestEnqueueResponse_AlreadyQueued(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT review_id, status FROM ai_responses`).
		WithArgs(9, 1).
		WillReturnRows(sqlmock.NewRows([]string{"review_id", "status"}).AddRow(42, lifecycle.ResponseApproved))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM response_queue`).
		WithArgs(9, 1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := EnqueueResponse(db, 1, 9, 30)

	assert.ErrorIs(t, err, ErrAlreadyQueued)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 未通过审批的回复不能入队，报状态冲突而不是服务器错误
func TestEnqueueResponse_NotApproved(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT review_id, status FROM ai_responses`).
		WithArgs(9, 1).
		WillReturnRows(sqlmock.NewRows([]string{"review_id", "status"}).AddRow(42, lifecycle.ResponsePendingReview))
	mock.ExpectRollback()

	_, err := EnqueueResponse(db, 1, 9, 30)

	assert.True(t, lifecycle.IsTransitionError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 跨租户读取按不存在处理，查询始终带 tenant_id 条件
func TestGetReviewByID_TenantIsolation(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`FROM reviews WHERE review_id = \$1 AND tenant_id = \$2`).
		WithArgs(42, 2).
		WillReturnError(sql.ErrNoRows)

	_, err := GetReviewByID(db, 2, 42)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 派发租户按队列活跃行 + 已接入平台来选，不依赖门店的同步开关
func TestListTenantsWithQueuedResponses(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT DISTINCT q\.tenant_id FROM response_queue q JOIN oauth_tokens o ON o\.tenant_id = q\.tenant_id WHERE q\.status IN \('pending', 'processing'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow(1).AddRow(4))

	ids, err := ListTenantsWithQueuedResponses(db)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
