package models

import (
	"time"

	"github.com/golang-jwt/jwt"
)

// 用户结构体（平台登录账号，可属于多个租户）
type User struct {
	UserID       int       `json:"user_id"`
	UserName     string    `json:"user_name"`
	UserEmail    string    `json:"user_email"`
	UserPassword string    `json:"user_password,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// 租户结构体（一个客户组织，所有业务数据按 tenant_id 隔离）
type Tenant struct {
	TenantID            int       `json:"tenant_id"`
	TenantName          string    `json:"tenant_name"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
}

// 租户成员关系，Role 取值 owner / admin / member
type TenantUser struct {
	TenantID  int       `json:"tenant_id"`
	UserID    int       `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	UserEmail string    `json:"user_email,omitempty"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

// 租户邀请
type TenantInvitation struct {
	InvitationID int        `json:"invitation_id"`
	TenantID     int        `json:"tenant_id"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	Token        string     `json:"token"`
	InvitedBy    int        `json:"invited_by"`
	ExpiresAt    time.Time  `json:"expires_at"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// 门店/地点结构体（Google Business Profile 的 location）
type Location struct {
	LocationID       int        `json:"location_id"`
	TenantID         int        `json:"tenant_id"`
	PlatformLocation string     `json:"platform_location"` // accounts/<id>/locations/<id> 资源名
	LocationName     string     `json:"location_name"`
	Address          string     `json:"address,omitempty"`
	SyncEnabled      bool       `json:"sync_enabled"`
	LastSyncedAt     *time.Time `json:"last_synced_at,omitempty"`
	LastSyncError    *string    `json:"last_sync_error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// OAuth 令牌（密文落库，见 secrets 包）
type OAuthToken struct {
	TokenID      int       `json:"token_id"`
	TenantID     int       `json:"tenant_id"`
	Provider     string    `json:"provider"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// JWT claims
type Claims struct {
	UserID int    `json:"user_id,omitempty"`
	Type   string `json:"type"` // "access" 或 "refresh"
	jwt.StandardClaims
}

// TokenPair 登录返回的令牌对
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// 批量生成任务状态（存 Redis）
type BatchJob struct {
	JobID     string    `json:"job_id"`
	TenantID  int       `json:"tenant_id"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Status    string    `json:"status"` // running / completed
	StartedAt time.Time `json:"started_at"`
}
