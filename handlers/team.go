//租户与团队管理接口
package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"review-hub/database"
	"review-hub/models"
	"review-hub/response"
)

// HandleTeam 团队入口
// GET 返回成员列表，POST 创建新租户（创建者自动成为 owner）
func HandleTeam(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			tenantID := TenantIDFromContext(r)
			members, err := database.ListMembers(db, tenantID)
			if err != nil {
				response.ServerError(w, err)
				return
			}
			response.Success(w, members, "查询成功")

		case http.MethodPost:
			var body struct {
				TenantName string `json:"tenant_name"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.TenantName) == "" {
				response.ValidationError(w, "租户名称不能为空", "tenant_name")
				return
			}

			tenantID, err := database.InsertTenant(db, body.TenantName, UserIDFromContext(r))
			if err != nil {
				response.ServerError(w, err)
				return
			}
			response.Created(w, map[string]int{"tenant_id": tenantID}, "租户创建成功")

		default:
			response.Error(w, "不支持的请求方法", http.StatusMethodNotAllowed)
		}
	}
}

// HandleInvite 邀请新成员，admin 以上可用
func HandleInvite(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantIDFromContext(r)

		var body struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
			response.ValidationError(w, "邮箱不能为空", "email")
			return
		}
		if body.Role == "" {
			body.Role = database.RoleMember
		}
		if body.Role != database.RoleMember && body.Role != database.RoleAdmin {
			response.ValidationError(w, "只能邀请为 member 或 admin", "role")
			return
		}

		invitation, err := database.InsertInvitation(db, tenantID, UserIDFromContext(r), body.Email, body.Role)
		if err != nil {
			response.ServerError(w, err)
			return
		}

		response.Created(w, invitation, "邀请已创建")
	}
}

// HandleAcceptInvitation 接受邀请加入租户
// 只要求登录态，不要求当前已是任何租户的成员
func HandleAcceptInvitation(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
			response.ValidationError(w, "邀请令牌不能为空", "token")
			return
		}

		tenantID, err := database.AcceptInvitation(db, body.Token, UserIDFromContext(r))
		if err != nil {
			if err == database.ErrNotFound {
				response.NotFound(w, "邀请不存在、已过期或已被使用")
				return
			}
			response.ServerError(w, err)
			return
		}

		response.Success(w, map[string]int{"tenant_id": tenantID}, "已加入租户")
	}
}

// HandleMember 成员管理
// PATCH /api/v1/team/members/{userId} 改角色，DELETE 移除成员
func HandleMember(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantIDFromContext(r)

		userID, ok := pathID(r.URL.Path, "/api/v1/team/members/")
		if !ok {
			response.BadRequest(w, "无效的用户ID", nil)
			return
		}

		switch r.Method {
		case http.MethodPatch:
			var body struct {
				Role string `json:"role"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				response.BadRequest(w, "请求格式错误", "无效的JSON格式")
				return
			}
			if err := database.UpdateMemberRole(db, tenantID, userID, body.Role); err != nil {
				handleMemberError(w, err)
				return
			}
			response.Success(w, nil, "角色已更新")

		case http.MethodDelete:
			if userID == UserIDFromContext(r) {
				response.BadRequest(w, "不能移除自己", nil)
				return
			}
			if err := database.RemoveMember(db, tenantID, userID); err != nil {
				handleMemberError(w, err)
				return
			}
			response.Success(w, nil, "成员已移除")

		default:
			response.Error(w, "不支持的请求方法", http.StatusMethodNotAllowed)
		}
	}
}

func handleMemberError(w http.ResponseWriter, err error) {
	switch {
	case err == database.ErrNotFound:
		// owner 行在 SQL 里就被排除了，对外统一按不存在处理
		response.NotFound(w, "成员不存在或不可操作")
	case strings.Contains(err.Error(), "不允许的角色"):
		response.ValidationError(w, err.Error(), "role")
	default:
		response.ServerError(w, err)
	}
}

// HandleTransferOwnership 转移租户所有权，仅 owner 可用
func HandleTransferOwnership(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantIDFromContext(r)

		var body struct {
			NewOwnerID int `json:"new_owner_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.NewOwnerID == 0 {
			response.ValidationError(w, "new_owner_id 不能为空", "new_owner_id")
			return
		}

		currentOwnerID := UserIDFromContext(r)
		if body.NewOwnerID == currentOwnerID {
			response.BadRequest(w, "不能转移给自己", nil)
			return
		}

		if err := database.TransferOwnership(db, tenantID, currentOwnerID, body.NewOwnerID); err != nil {
			if err == database.ErrNotMember {
				response.NotFound(w, "目标用户不是该租户成员")
				return
			}
			response.ServerError(w, err)
			return
		}

		response.Success(w, nil, "所有权已转移")
	}
}

// HandleCompleteOnboarding 标记租户完成引导流程
func HandleCompleteOnboarding(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantIDFromContext(r)

		if err := database.CompleteOnboarding(db, tenantID); err != nil {
			response.ServerError(w, err)
			return
		}
		response.Success(w, nil, "引导流程已完成")
	}
}

// HandleListTenants 当前用户所属的租户列表（前端租户切换器用）
func HandleListTenants(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenants, err := database.ListTenantsForUser(db, UserIDFromContext(r))
		if err != nil {
			response.ServerError(w, err)
			return
		}
		if tenants == nil {
			tenants = []models.Tenant{}
		}
		response.Success(w, tenants, "查询成功")
	}
}
