package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"review-hub/database"
	"review-hub/models"
	"review-hub/response"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var jwtSecretKey = []byte(os.Getenv("JWT_SECRET_KEY"))

type contextKey string

const (
	userIDKey   contextKey = "userID"
	tenantIDKey contextKey = "tenantID"
	roleKey     contextKey = "tenantRole"

	// 前端登录后写入的当前租户 cookie
	tenantCookieName = "current_tenant_id"
	tenantHeaderName = "X-Tenant-ID"
)

// GenerateTokenPair generates access and refresh tokens for a user
func GenerateTokenPair(userID int) (models.TokenPair, error) {
	if string(jwtSecretKey) == "" {
		jwtSecretKey = []byte("your_secret_key") // Fallback for dev
	}

	// Create Access Token
	accessTokenClaims := models.Claims{
		UserID: userID,
		Type:   "access",
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(30 * time.Minute).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}
	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessTokenClaims)
	accessTokenString, err := accessToken.SignedString(jwtSecretKey)
	if err != nil {
		return models.TokenPair{}, err
	}

	// Create Refresh Token
	refreshTokenClaims := models.Claims{
		UserID: userID,
		Type:   "refresh",
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(30 * 24 * time.Hour).Unix(), // 30 days
			IssuedAt:  time.Now().Unix(),
			Id:        uuid.New().String(),
		},
	}
	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshTokenClaims)
	refreshTokenString, err := refreshToken.SignedString(jwtSecretKey)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
	}, nil
}

// ParseToken validates and parses a JWT token string
func ParseToken(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return jwtSecretKey, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, jwt.NewValidationError("invalid token", jwt.ValidationErrorMalformed)
	}

	return claims, nil
}

// HandleRegister handles user registration
func HandleRegister(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var user models.User
		if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
			response.BadRequest(w, "请求格式错误", "无效的JSON格式")
			return
		}

		// 参数验证
		if user.UserEmail == "" || user.UserPassword == "" {
			response.ValidationError(w, "邮箱和密码不能为空", "user_email,user_password")
			return
		}
		if len(user.UserPassword) < 8 {
			response.ValidationError(w, "密码长度不能少于8位", "user_password")
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.UserPassword), bcrypt.DefaultCost)
		if err != nil {
			response.ServerError(w, err)
			return
		}
		user.UserPassword = string(hashedPassword)

		userID, err := database.InsertUser(db, &user)
		if err != nil {
			// 检查是否为重复注册
			if strings.Contains(err.Error(), "已被注册") || strings.Contains(err.Error(), "duplicate") {
				response.ValidationError(w, "该邮箱已被注册", "user_email")
			} else {
				response.ServerError(w, err)
			}
			return
		}
		user.UserID = int(userID)

		user.UserPassword = "" // Do not return password

		response.Created(w, user, "用户注册成功")
	}
}

// HandleLogin handles user login
func HandleLogin(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Email    string `json:"user_email"`
			Password string `json:"user_password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			response.BadRequest(w, "请求格式错误", "无效的JSON格式")
			return
		}

		// 参数验证
		if creds.Email == "" || creds.Password == "" {
			response.ValidationError(w, "邮箱和密码不能为空", "user_email,user_password")
			return
		}

		user, err := database.ValidateUser(db, creds.Email, creds.Password)
		if err != nil {
			response.Unauthorized(w, "账号或密码错误")
			return
		}

		tokenPair, err := GenerateTokenPair(user.UserID)
		if err != nil {
			response.ServerError(w, err)
			return
		}

		// 默认选中用户的第一个租户，前端可再切换
		tenants, err := database.ListTenantsForUser(db, user.UserID)
		if err == nil && len(tenants) > 0 {
			http.SetCookie(w, &http.Cookie{
				Name:     tenantCookieName,
				Value:    strconv.Itoa(tenants[0].TenantID),
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		response.Success(w, tokenPair, "登录成功")
	}
}

// HandleRefreshToken handles token renewal with rotation
func HandleRefreshToken(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.BadRequest(w, "请求格式错误", "无效的JSON格式")
			return
		}

		claims, err := ParseToken(body.RefreshToken)
		if err != nil || claims.Type != "refresh" {
			response.Unauthorized(w, "无效的刷新令牌")
			return
		}

		// Check blacklist
		isBlacklisted, err := database.IsTokenBlacklisted(db, claims.Id)
		if err != nil {
			response.ServerError(w, err)
			return
		}
		if isBlacklisted {
			response.Unauthorized(w, "刷新令牌已被吊销")
			return
		}

		// Blacklist the old refresh token
		expiresAt := time.Unix(claims.ExpiresAt, 0)
		if err := database.AddTokenToBlacklist(db, claims.Id, expiresAt); err != nil {
			response.ServerError(w, err)
			return
		}

		tokenPair, err := GenerateTokenPair(claims.UserID)
		if err != nil {
			response.ServerError(w, err)
			return
		}

		response.Success(w, tokenPair, "令牌刷新成功")
	}
}

// HandleLogout invalidates a refresh token
func HandleLogout(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.BadRequest(w, "请求格式错误", "无效的JSON格式")
			return
		}

		claims, err := ParseToken(body.RefreshToken)
		if err != nil || claims.Type != "refresh" {
			response.Unauthorized(w, "无效的刷新令牌")
			return
		}

		// Blacklist the refresh token
		expiresAt := time.Unix(claims.ExpiresAt, 0)
		if err := database.AddTokenToBlacklist(db, claims.Id, expiresAt); err != nil {
			response.ServerError(w, err)
			return
		}

		// 清掉租户 cookie
		http.SetCookie(w, &http.Cookie{
			Name:   tenantCookieName,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})

		response.Success(w, nil, "登出成功")
	}
}

// HandleMe 当前登录用户的信息
func HandleMe(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := database.GetUserByID(db, UserIDFromContext(r))
		if err != nil {
			if err == database.ErrNotFound {
				response.NotFound(w, "用户不存在")
				return
			}
			response.ServerError(w, err)
			return
		}
		response.Success(w, user, "查询成功")
	}
}

// AuthenticateToken 返回用户认证中间件
func AuthenticateToken() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "缺少授权头")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := ParseToken(tokenString)
			if err != nil {
				response.Unauthorized(w, "无效令牌")
				return
			}

			if claims.Type != "access" || claims.UserID == 0 {
				response.Unauthorized(w, "无效的用户令牌")
				return
			}

			// Add user_id to context
			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant 返回租户解析中间件：从 cookie（或 X-Tenant-ID 头）取当前租户，
// 校验用户确实是该租户成员，并把租户ID和角色放进 context
func RequireTenant(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r)
			if userID == 0 {
				response.Unauthorized(w, "缺少用户身份")
				return
			}

			tenantID := 0
			if cookie, err := r.Cookie(tenantCookieName); err == nil {
				tenantID, _ = strconv.Atoi(cookie.Value)
			}
			if tenantID == 0 {
				tenantID, _ = strconv.Atoi(r.Header.Get(tenantHeaderName))
			}
			if tenantID == 0 {
				response.BadRequest(w, "未选择租户", "请先选择当前租户")
				return
			}

			role, err := database.GetMemberRole(db, tenantID, userID)
			if err != nil {
				if err == database.ErrNotMember {
					response.Forbidden(w, "不是该租户的成员")
				} else {
					response.ServerError(w, err)
				}
				return
			}

			ctx := context.WithValue(r.Context(), tenantIDKey, tenantID)
			ctx = context.WithValue(ctx, roleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// roleRank 角色权重，member < admin < owner
func roleRank(role string) int {
	switch role {
	case database.RoleOwner:
		return 3
	case database.RoleAdmin:
		return 2
	case database.RoleMember:
		return 1
	default:
		return 0
	}
}

// RequireRole 返回角色门禁中间件，要求当前成员角色不低于 minRole
func RequireRole(minRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if roleRank(RoleFromContext(r)) < roleRank(minRole) {
				response.Forbidden(w, "权限不足")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext 从 context 取当前用户ID，没有则返回 0
func UserIDFromContext(r *http.Request) int {
	if v, ok := r.Context().Value(userIDKey).(int); ok {
		return v
	}
	return 0
}

// TenantIDFromContext 从 context 取当前租户ID，没有则返回 0
func TenantIDFromContext(r *http.Request) int {
	if v, ok := r.Context().Value(tenantIDKey).(int); ok {
		return v
	}
	return 0
}

// RoleFromContext 从 context 取当前成员角色
func RoleFromContext(r *http.Request) string {
	if v, ok := r.Context().Value(roleKey).(string); ok {
		return v
	}
	return ""
}
