package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"review-hub/logging"
	"review-hub/models"
	"review-hub/monitoring"

	"github.com/sirupsen/logrus"
)

// GetResponseSettings 读取租户回复设置，没有配置过就返回默认值
func GetResponseSettings(db *sql.DB, tenantID int) (*models.ResponseSettings, error) {
	var settings models.ResponseSettings
	var ratingsJSON, hoursJSON []byte

	err := monitoring.RecordDBTime("GetResponseSettings", func() error {
		query := `
			SELECT tenant_id, auto_publish_enabled, auto_publish_ratings,
			       confidence_threshold, quality_threshold,
			       max_per_hour, max_per_day, response_delay,
			       business_hours, updated_at
			FROM response_settings
			WHERE tenant_id = $1
		`
		return db.QueryRow(query, tenantID).Scan(
			&settings.TenantID, &settings.AutoPublishEnabled, &ratingsJSON,
			&settings.ConfidenceThreshold, &settings.QualityThreshold,
			&settings.RateLimits.MaxPerHour, &settings.RateLimits.MaxPerDay, &settings.RateLimits.ResponseDelay,
			&hoursJSON, &settings.UpdatedAt,
		)
	})
	if err == sql.ErrNoRows {
		defaults := models.DefaultResponseSettings(tenantID)
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询回复设置失败: %v", err)
	}

	if err := json.Unmarshal(ratingsJSON, &settings.AutoPublishRatings); err != nil {
		return nil, fmt.Errorf("解析星级开关失败: %v", err)
	}
	if err := json.Unmarshal(hoursJSON, &settings.BusinessHours); err != nil {
		return nil, fmt.Errorf("解析营业时间失败: %v", err)
	}
	return &settings, nil
}

// UpsertResponseSettings 写入租户回复设置（每租户一行）
// 数值范围校验在 handler 层完成
func UpsertResponseSettings(db *sql.DB, settings *models.ResponseSettings) error {
	ratingsJSON, err := json.Marshal(settings.AutoPublishRatings)
	if err != nil {
		return fmt.Errorf("序列化星级开关失败: %v", err)
	}
	hoursJSON, err := json.Marshal(settings.BusinessHours)
	if err != nil {
		return fmt.Errorf("序列化营业时间失败: %v", err)
	}

	err = monitoring.RecordDBTime("UpsertResponseSettings", func() error {
		query := `
			INSERT INTO response_settings (
				tenant_id, auto_publish_enabled, auto_publish_ratings,
				confidence_threshold, quality_threshold,
				max_per_hour, max_per_day, response_delay,
				business_hours, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
			ON CONFLICT (tenant_id) DO UPDATE SET
				auto_publish_enabled = EXCLUDED.auto_publish_enabled,
				auto_publish_ratings = EXCLUDED.auto_publish_ratings,
				confidence_threshold = EXCLUDED.confidence_threshold,
				quality_threshold    = EXCLUDED.quality_threshold,
				max_per_hour         = EXCLUDED.max_per_hour,
				max_per_day          = EXCLUDED.max_per_day,
				response_delay       = EXCLUDED.response_delay,
				business_hours       = EXCLUDED.business_hours,
				updated_at           = NOW()
		`
		_, err := db.Exec(query,
			settings.TenantID, settings.AutoPublishEnabled, ratingsJSON,
			settings.ConfidenceThreshold, settings.QualityThreshold,
			settings.RateLimits.MaxPerHour, settings.RateLimits.MaxPerDay, settings.RateLimits.ResponseDelay,
			hoursJSON,
		)
		return err
	})
	if err != nil {
		logging.Error("写入回复设置失败", logrus.Fields{"error": err, "tenantID": settings.TenantID})
		return fmt.Errorf("写入回复设置失败: %v", err)
	}
	logging.Info("回复设置已更新", logrus.Fields{"tenantID": settings.TenantID})
	return nil
}
