package database

import (
	"database/sql"
	"time"

	"review-hub/monitoring"
)

// AddTokenToBlacklist 把刷新令牌的 JTI 拉黑
func AddTokenToBlacklist(db *sql.DB, jti string, expiresAt time.Time) error {
	return monitoring.RecordDBTime("AddTokenToBlacklist", func() error {
		query := `INSERT INTO token_blacklist (jti, expires_at) VALUES ($1, $2)`
		_, err := db.Exec(query, jti, expiresAt)
		return err
	})
}

// IsTokenBlacklisted 检查 JTI 是否已被拉黑
func IsTokenBlacklisted(db *sql.DB, jti string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM token_blacklist WHERE jti = $1)`
	err := monitoring.RecordDBTime("IsTokenBlacklisted", func() error {
		return db.QueryRow(query, jti).Scan(&exists)
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CleanupExpiredBlacklist 清理已过期的黑名单行，定期任务调用
func CleanupExpiredBlacklist(db *sql.DB) (int64, error) {
	var affected int64
	err := monitoring.RecordDBTime("CleanupExpiredBlacklist", func() error {
		result, err := db.Exec(`DELETE FROM token_blacklist WHERE expires_at < NOW()`)
		if err != nil {
			return err
		}
		affected, _ = result.RowsAffected()
		return nil
	})
	return affected, err
}
