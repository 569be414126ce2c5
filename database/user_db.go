package database

import (
	"database/sql"
	"fmt"

	"review-hub/logging"
	"review-hub/models"
	"review-hub/monitoring"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

//创建用户，邮箱唯一
func InsertUser(db *sql.DB, user *models.User) (int64, error) {
	logging.Info("Attempting to insert a new user", logrus.Fields{"email": user.UserEmail})
	var userID int64
	err := monitoring.RecordDBTime("InsertUser", func() error {
		//开启事务
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("开启事务失败: %v", err)
		}
		defer tx.Rollback()

		//检查邮箱是否已注册
		var count int
		checkQuery := `SELECT COUNT(*) FROM users WHERE user_email = $1`
		if err := tx.QueryRow(checkQuery, user.UserEmail).Scan(&count); err != nil {
			return fmt.Errorf("查询邮箱失败: %v", err)
		}
		if count > 0 {
			return fmt.Errorf("该邮箱已被注册")
		}

		query := `INSERT INTO users (user_name, user_email, user_password, created_at) VALUES ($1, $2, $3, NOW()) RETURNING user_id`
		if err := tx.QueryRow(query, user.UserName, user.UserEmail, user.UserPassword).Scan(&userID); err != nil {
			return fmt.Errorf("插入用户失败: %v", err)
		}

		return tx.Commit()
	})
	if err != nil {
		logging.Error("Failed to insert user", logrus.Fields{"error": err, "email": user.UserEmail})
		return 0, err
	}
	logging.Info("Successfully inserted new user", logrus.Fields{"userID": userID})
	return userID, nil
}

// ValidateUser 校验邮箱+密码，成功返回用户信息
func ValidateUser(db *sql.DB, email, password string) (*models.User, error) {
	var user models.User
	var hashed string
	err := monitoring.RecordDBTime("ValidateUser", func() error {
		query := `SELECT user_id, user_name, user_email, user_password, created_at FROM users WHERE user_email = $1`
		return db.QueryRow(query, email).Scan(&user.UserID, &user.UserName, &user.UserEmail, &hashed, &user.CreatedAt)
	})
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("账号不存在")
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %v", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)); err != nil {
		return nil, fmt.Errorf("密码错误")
	}

	user.UserPassword = ""
	return &user, nil
}

// GetUserByID 按ID查询用户
func GetUserByID(db *sql.DB, userID int) (*models.User, error) {
	var user models.User
	err := monitoring.RecordDBTime("GetUserByID", func() error {
		query := `SELECT user_id, user_name, user_email, created_at FROM users WHERE user_id = $1`
		return db.QueryRow(query, userID).Scan(&user.UserID, &user.UserName, &user.UserEmail, &user.CreatedAt)
	})
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %v", err)
	}
	return &user, nil
}
