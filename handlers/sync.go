//Google 账号接入与门店同步配置接口
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"review-hub/database"
	"review-hub/gmb"
	"review-hub/logging"
	"review-hub/models"
	"review-hub/response"

	"github.com/sirupsen/logrus"
)

// HandleGoogleSync Google 接入管理
// GET 连接状态，POST 保存授权令牌并拉取门店，DELETE 断开连接
func HandleGoogleSync(db *sql.DB, client *gmb.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantIDFromContext(r)

		switch r.Method {
		case http.MethodGet:
			googleSyncStatus(db, w, tenantID)
		case http.MethodPost:
			connectGoogle(db, client, w, r, tenantID)
		case http.MethodDelete:
			if err := database.DeleteOAuthToken(db, tenantID, gmb.Provider); err != nil {
				response.ServerError(w, err)
				return
			}
			response.Success(w, nil, "已断开连接")
		default:
			response.Error(w, "不支持的请求方法", http.StatusMethodNotAllowed)
		}
	}
}

func googleSyncStatus(db *sql.DB, w http.ResponseWriter, tenantID int) {
	token, err := database.GetOAuthToken(db, tenantID, gmb.Provider)
	if err == database.ErrNotFound {
		response.Success(w, map[string]interface{}{"connected": false}, "查询成功")
		return
	}
	if err != nil {
		response.ServerError(w, err)
		return
	}

	locations, err := database.ListLocations(db, tenantID)
	if err != nil {
		response.ServerError(w, err)
		return
	}

	response.Success(w, map[string]interface{}{
		"connected":  true,
		"expires_at": token.ExpiresAt,
		"updated_at": token.UpdatedAt,
		"locations":  len(locations),
	}, "查询成功")
}

func connectGoogle(db *sql.DB, client *gmb.Client, w http.ResponseWriter, r *http.Request, tenantID int) {
	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		Account      string `json:"account"` // accounts/<id>
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "请求格式错误", "无效的JSON格式")
		return
	}
	if body.AccessToken == "" || body.RefreshToken == "" || body.Account == "" {
		response.ValidationError(w, "令牌和账号不能为空", "access_token,refresh_token,account")
		return
	}

	token := &models.OAuthToken{
		TenantID:     tenantID,
		Provider:     gmb.Provider,
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}
	if err := database.SaveOAuthToken(db, token); err != nil {
		response.ServerError(w, err)
		return
	}

	// 令牌存好后立刻拉一次门店列表
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	locations, err := client.FetchLocations(ctx, tenantID, body.Account)
	if err != nil {
		logging.Error("门店拉取失败", logrus.Fields{"tenantID": tenantID, "error": err})
		response.Success(w, map[string]interface{}{
			"connected": true,
			"locations": 0,
		}, "授权已保存，门店拉取失败，请稍后重试")
		return
	}

	saved := 0
	for _, loc := range locations {
		record := &models.Location{
			TenantID:         tenantID,
			PlatformLocation: loc.Name,
			LocationName:     loc.Title,
			Address:          loc.Address(),
			SyncEnabled:      true,
		}
		if _, err := database.UpsertLocation(db, record); err != nil {
			logging.Error("门店落库失败", logrus.Fields{"tenantID": tenantID, "location": loc.Name, "error": err})
			continue
		}
		saved++
	}

	response.Success(w, map[string]interface{}{
		"connected": true,
		"locations": saved,
	}, "授权成功")
}

// HandleLocationSyncDetails 门店同步配置
// GET 返回各门店的同步状态，POST 批量开关同步
func HandleLocationSyncDetails(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantIDFromContext(r)

		switch r.Method {
		case http.MethodGet:
			locations, err := database.ListLocations(db, tenantID)
			if err != nil {
				response.ServerError(w, err)
				return
			}
			response.Success(w, locations, "查询成功")

		case http.MethodPost:
			var body struct {
				Locations []struct {
					LocationID  int  `json:"location_id"`
					SyncEnabled bool `json:"sync_enabled"`
				} `json:"locations"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Locations) == 0 {
				response.BadRequest(w, "请求格式错误", "locations 不能为空")
				return
			}

			for _, loc := range body.Locations {
				if err := database.SetLocationSyncEnabled(db, tenantID, loc.LocationID, loc.SyncEnabled); err != nil {
					if err == database.ErrNotFound {
						response.NotFound(w, "门店不存在")
						return
					}
					response.ServerError(w, err)
					return
				}
			}
			response.Success(w, nil, "同步配置已更新")

		default:
			response.Error(w, "不支持的请求方法", http.StatusMethodNotAllowed)
		}
	}
}
