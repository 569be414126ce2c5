package database

import (
	"database/sql"
	"fmt"
	"time"

	"review-hub/logging"
	"review-hub/models"
	"review-hub/monitoring"
	"review-hub/secrets"

	"github.com/sirupsen/logrus"
)

// SaveOAuthToken 保存租户的 OAuth 令牌，明文先加密再落库
// 每个租户每个 provider 一行
func SaveOAuthToken(db *sql.DB, token *models.OAuthToken) error {
	encryptedAccess, err := secrets.Encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("加密access token失败: %v", err)
	}
	encryptedRefresh, err := secrets.Encrypt(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("加密refresh token失败: %v", err)
	}

	err = monitoring.RecordDBTime("SaveOAuthToken", func() error {
		query := `
			INSERT INTO oauth_tokens (tenant_id, provider, access_token, refresh_token, expires_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,NOW())
			ON CONFLICT (tenant_id, provider) DO UPDATE SET
				access_token  = EXCLUDED.access_token,
				refresh_token = EXCLUDED.refresh_token,
				expires_at    = EXCLUDED.expires_at,
				updated_at    = NOW()
		`
		_, err := db.Exec(query, token.TenantID, token.Provider, encryptedAccess, encryptedRefresh, token.ExpiresAt)
		return err
	})
	if err != nil {
		logging.Error("保存OAuth令牌失败", logrus.Fields{"error": err, "tenantID": token.TenantID})
		return fmt.Errorf("保存OAuth令牌失败: %v", err)
	}
	logging.Info("OAuth令牌已保存", logrus.Fields{"tenantID": token.TenantID, "provider": token.Provider})
	return nil
}

// GetOAuthToken 读取并解密租户的 OAuth 令牌
func GetOAuthToken(db *sql.DB, tenantID int, provider string) (*models.OAuthToken, error) {
	var token models.OAuthToken
	var encryptedAccess, encryptedRefresh string

	err := monitoring.RecordDBTime("GetOAuthToken", func() error {
		query := `
			SELECT token_id, tenant_id, provider, access_token, refresh_token, expires_at, updated_at
			FROM oauth_tokens
			WHERE tenant_id = $1 AND provider = $2
		`
		return db.QueryRow(query, tenantID, provider).Scan(
			&token.TokenID, &token.TenantID, &token.Provider,
			&encryptedAccess, &encryptedRefresh, &token.ExpiresAt, &token.UpdatedAt,
		)
	})
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询OAuth令牌失败: %v", err)
	}

	if token.AccessToken, err = secrets.Decrypt(encryptedAccess); err != nil {
		return nil, fmt.Errorf("解密access token失败: %v", err)
	}
	if token.RefreshToken, err = secrets.Decrypt(encryptedRefresh); err != nil {
		return nil, fmt.Errorf("解密refresh token失败: %v", err)
	}
	return &token, nil
}

// UpdateAccessToken 刷新后更新 access token 和过期时间
func UpdateAccessToken(db *sql.DB, tenantID int, provider, accessToken string, expiresAt time.Time) error {
	encrypted, err := secrets.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("加密access token失败: %v", err)
	}
	return monitoring.RecordDBTime("UpdateAccessToken", func() error {
		result, err := db.Exec(
			`UPDATE oauth_tokens SET access_token = $3, expires_at = $4, updated_at = NOW() WHERE tenant_id = $1 AND provider = $2`,
			tenantID, provider, encrypted, expiresAt,
		)
		if err != nil {
			return fmt.Errorf("更新access token失败: %v", err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteOAuthToken 断开连接时删除令牌
func DeleteOAuthToken(db *sql.DB, tenantID int, provider string) error {
	return monitoring.RecordDBTime("DeleteOAuthToken", func() error {
		_, err := db.Exec(`DELETE FROM oauth_tokens WHERE tenant_id = $1 AND provider = $2`, tenantID, provider)
		if err != nil {
			return fmt.Errorf("删除OAuth令牌失败: %v", err)
		}
		return nil
	})
}
