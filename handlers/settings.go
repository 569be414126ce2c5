//租户回复设置接口
package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"review-hub/database"
	"review-hub/logging"
	"review-hub/models"
	"review-hub/response"

	"github.com/sirupsen/logrus"
)

const (
	settingsCacheTTL       = 5 * time.Minute
	settingsCacheKeyPrefix = "settings_"
)

// HandleSettings 回复设置
// GET 返回当前设置（Redis 缓存5分钟，无记录时返回默认值），POST 全量覆盖并清缓存
func HandleSettings(db *sql.DB, rp *database.RedisPool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantIDFromContext(r)
		cacheKey := settingsCacheKeyPrefix + strconv.Itoa(tenantID)

		switch r.Method {
		case http.MethodGet:
			if cached, err := database.GetFromCache(rp, cacheKey); err == nil {
				var settings models.ResponseSettings
				if err := json.Unmarshal([]byte(cached), &settings); err == nil {
					response.Success(w, settings, "查询成功")
					return
				}
			}

			settings, err := database.GetResponseSettings(db, tenantID)
			if err != nil {
				response.ServerError(w, err)
				return
			}
			if data, err := json.Marshal(settings); err == nil {
				if err := database.SetToCache(rp, cacheKey, string(data), settingsCacheTTL); err != nil {
					logging.Warn("设置缓存写入失败", logrus.Fields{"tenantID": tenantID, "error": err})
				}
			}
			response.Success(w, settings, "查询成功")

		case http.MethodPost:
			var settings models.ResponseSettings
			if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
				response.BadRequest(w, "请求格式错误", "无效的JSON格式")
				return
			}
			settings.TenantID = tenantID

			if field, msg := validateSettings(&settings); field != "" {
				response.ValidationError(w, msg, field)
				return
			}

			if err := database.UpsertResponseSettings(db, &settings); err != nil {
				response.ServerError(w, err)
				return
			}
			if err := database.DeleteFromCache(rp, cacheKey); err != nil {
				logging.Warn("设置缓存清理失败", logrus.Fields{"tenantID": tenantID, "error": err})
			}
			response.Success(w, settings, "设置已保存")

		default:
			response.Error(w, "不支持的请求方法", http.StatusMethodNotAllowed)
		}
	}
}

// validateSettings 校验设置取值，返回第一个出错的字段
func validateSettings(s *models.ResponseSettings) (field, msg string) {
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return "confidence_threshold", "置信度阈值必须在0-1之间"
	}
	if s.QualityThreshold < 0 || s.QualityThreshold > 1 {
		return "quality_threshold", "质量分阈值必须在0-1之间"
	}
	if s.RateLimits.MaxPerHour < 0 || s.RateLimits.MaxPerHour > 100 {
		return "rate_limits.max_per_hour", "每小时发布上限必须在0-100之间"
	}
	if s.RateLimits.MaxPerDay < 0 {
		return "rate_limits.max_per_day", "每日发布上限不能为负数"
	}
	if s.RateLimits.ResponseDelay < 0 {
		return "rate_limits.response_delay", "发布延迟不能为负数"
	}
	for rating := range s.AutoPublishRatings {
		if rating < 1 || rating > 5 {
			return "auto_publish_ratings", "星级档位必须在1-5之间"
		}
	}
	if s.BusinessHours.Enabled {
		if _, err := time.Parse("15:04", s.BusinessHours.Start); err != nil {
			return "business_hours.start", "营业开始时间格式应为 HH:MM"
		}
		if _, err := time.Parse("15:04", s.BusinessHours.End); err != nil {
			return "business_hours.end", "营业结束时间格式应为 HH:MM"
		}
		if _, err := time.LoadLocation(s.BusinessHours.Timezone); err != nil {
			return "business_hours.timezone", "无效的时区"
		}
	}
	return "", ""
}
