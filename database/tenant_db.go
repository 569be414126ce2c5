package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"review-hub/logging"
	"review-hub/models"
	"review-hub/monitoring"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// 角色常量，权限从低到高
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

// ErrNotMember 用户不是该租户的成员
var ErrNotMember = errors.New("用户不属于该租户")

// 邀请有效期
const invitationTTL = 7 * 24 * time.Hour

// InsertTenant 创建租户并把创建者设为 owner，同一事务完成
func InsertTenant(db *sql.DB, name string, creatorUserID int) (int, error) {
	var tenantID int
	err := monitoring.RecordDBTime("InsertTenant", func() error {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("开启事务失败: %v", err)
		}
		defer tx.Rollback()

		query := `INSERT INTO tenants (tenant_name, onboarding_completed, created_at) VALUES ($1, FALSE, NOW()) RETURNING tenant_id`
		if err := tx.QueryRow(query, name).Scan(&tenantID); err != nil {
			return fmt.Errorf("创建租户失败: %v", err)
		}

		memberQuery := `INSERT INTO tenant_users (tenant_id, user_id, role, joined_at) VALUES ($1, $2, $3, NOW())`
		if _, err := tx.Exec(memberQuery, tenantID, creatorUserID, RoleOwner); err != nil {
			return fmt.Errorf("创建成员关系失败: %v", err)
		}

		return tx.Commit()
	})
	if err != nil {
		logging.Error("创建租户失败", logrus.Fields{"error": err, "userID": creatorUserID})
		return 0, err
	}
	logging.Info("租户已创建", logrus.Fields{"tenantID": tenantID, "ownerID": creatorUserID})
	return tenantID, nil
}

// GetMemberRole 查询用户在租户内的角色，非成员返回 ErrNotMember
func GetMemberRole(db *sql.DB, tenantID, userID int) (string, error) {
	var role string
	err := monitoring.RecordDBTime("GetMemberRole", func() error {
		query := `SELECT role FROM tenant_users WHERE tenant_id = $1 AND user_id = $2`
		return db.QueryRow(query, tenantID, userID).Scan(&role)
	})
	if err == sql.ErrNoRows {
		return "", ErrNotMember
	}
	if err != nil {
		return "", fmt.Errorf("查询成员角色失败: %v", err)
	}
	return role, nil
}

// ListMembers 租户成员列表
func ListMembers(db *sql.DB, tenantID int) ([]models.TenantUser, error) {
	var members []models.TenantUser
	err := monitoring.RecordDBTime("ListMembers", func() error {
		query := `
			SELECT tu.tenant_id, tu.user_id, u.user_name, u.user_email, tu.role, tu.joined_at
			FROM tenant_users tu
			JOIN users u ON u.user_id = tu.user_id
			WHERE tu.tenant_id = $1
			ORDER BY tu.joined_at ASC
		`
		rows, err := db.Query(query, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m models.TenantUser
			if err := rows.Scan(&m.TenantID, &m.UserID, &m.UserName, &m.UserEmail, &m.Role, &m.JoinedAt); err != nil {
				return err
			}
			members = append(members, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("查询成员列表失败: %v", err)
	}
	return members, nil
}

// InsertInvitation 创建邀请，token 用 uuid，七天有效
func InsertInvitation(db *sql.DB, tenantID, invitedBy int, email, role string) (*models.TenantInvitation, error) {
	invitation := &models.TenantInvitation{
		TenantID:  tenantID,
		Email:     email,
		Role:      role,
		Token:     uuid.New().String(),
		InvitedBy: invitedBy,
		ExpiresAt: time.Now().Add(invitationTTL),
	}
	err := monitoring.RecordDBTime("InsertInvitation", func() error {
		query := `
			INSERT INTO tenant_invitations (tenant_id, email, role, token, invited_by, expires_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,NOW())
			RETURNING invitation_id, created_at
		`
		return db.QueryRow(query,
			invitation.TenantID, invitation.Email, invitation.Role,
			invitation.Token, invitation.InvitedBy, invitation.ExpiresAt,
		).Scan(&invitation.InvitationID, &invitation.CreatedAt)
	})
	if err != nil {
		logging.Error("创建邀请失败", logrus.Fields{"error": err, "tenantID": tenantID, "email": email})
		return nil, fmt.Errorf("创建邀请失败: %v", err)
	}
	logging.Info("邀请已创建", logrus.Fields{"tenantID": tenantID, "email": email, "role": role})
	return invitation, nil
}

// AcceptInvitation 接受邀请：校验 token 未过期未使用，建立成员关系
func AcceptInvitation(db *sql.DB, token string, userID int) (int, error) {
	var tenantID int
	err := monitoring.RecordDBTime("AcceptInvitation", func() error {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("开启事务失败: %v", err)
		}
		defer tx.Rollback()

		var role string
		query := `
			SELECT tenant_id, role FROM tenant_invitations
			WHERE token = $1 AND accepted_at IS NULL AND expires_at > NOW()
			FOR UPDATE
		`
		err = tx.QueryRow(query, token).Scan(&tenantID, &role)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("查询邀请失败: %v", err)
		}

		memberQuery := `
			INSERT INTO tenant_users (tenant_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (tenant_id, user_id) DO NOTHING
		`
		if _, err := tx.Exec(memberQuery, tenantID, userID, role); err != nil {
			return fmt.Errorf("创建成员关系失败: %v", err)
		}

		if _, err := tx.Exec(`UPDATE tenant_invitations SET accepted_at = NOW() WHERE token = $1`, token); err != nil {
			return fmt.Errorf("更新邀请状态失败: %v", err)
		}

		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	logging.Info("邀请已接受", logrus.Fields{"tenantID": tenantID, "userID": userID})
	return tenantID, nil
}

// UpdateMemberRole 修改成员角色（不允许直接改 owner，见 TransferOwnership）
func UpdateMemberRole(db *sql.DB, tenantID, userID int, role string) error {
	if role != RoleMember && role != RoleAdmin {
		return fmt.Errorf("不允许的角色: %s", role)
	}
	return monitoring.RecordDBTime("UpdateMemberRole", func() error {
		query := `
			UPDATE tenant_users SET role = $3
			WHERE tenant_id = $1 AND user_id = $2 AND role <> 'owner'
		`
		result, err := db.Exec(query, tenantID, userID, role)
		if err != nil {
			return fmt.Errorf("修改角色失败: %v", err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// RemoveMember 移除成员（owner 不能被移除）
func RemoveMember(db *sql.DB, tenantID, userID int) error {
	return monitoring.RecordDBTime("RemoveMember", func() error {
		query := `DELETE FROM tenant_users WHERE tenant_id = $1 AND user_id = $2 AND role <> 'owner'`
		result, err := db.Exec(query, tenantID, userID)
		if err != nil {
			return fmt.Errorf("移除成员失败: %v", err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// TransferOwnership 转让所有权：老 owner 降为 admin，新 owner 升级，同一事务
func TransferOwnership(db *sql.DB, tenantID, currentOwnerID, newOwnerID int) error {
	err := monitoring.RecordDBTime("TransferOwnership", func() error {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("开启事务失败: %v", err)
		}
		defer tx.Rollback()

		// 新 owner 必须已是成员
		var role string
		query := `SELECT role FROM tenant_users WHERE tenant_id = $1 AND user_id = $2 FOR UPDATE`
		err = tx.QueryRow(query, tenantID, newOwnerID).Scan(&role)
		if err == sql.ErrNoRows {
			return ErrNotMember
		}
		if err != nil {
			return fmt.Errorf("查询新所有者失败: %v", err)
		}

		if _, err := tx.Exec(
			`UPDATE tenant_users SET role = 'admin' WHERE tenant_id = $1 AND user_id = $2 AND role = 'owner'`,
			tenantID, currentOwnerID,
		); err != nil {
			return fmt.Errorf("降级原所有者失败: %v", err)
		}

		if _, err := tx.Exec(
			`UPDATE tenant_users SET role = 'owner' WHERE tenant_id = $1 AND user_id = $2`,
			tenantID, newOwnerID,
		); err != nil {
			return fmt.Errorf("升级新所有者失败: %v", err)
		}

		return tx.Commit()
	})
	if err != nil {
		logging.Error("转让所有权失败", logrus.Fields{"error": err, "tenantID": tenantID})
		return err
	}
	logging.Info("所有权已转让", logrus.Fields{"tenantID": tenantID, "from": currentOwnerID, "to": newOwnerID})
	return nil
}

// CompleteOnboarding 标记租户完成引导流程
func CompleteOnboarding(db *sql.DB, tenantID int) error {
	return monitoring.RecordDBTime("CompleteOnboarding", func() error {
		result, err := db.Exec(
			`UPDATE tenants SET onboarding_completed = TRUE WHERE tenant_id = $1`,
			tenantID,
		)
		if err != nil {
			return fmt.Errorf("更新引导状态失败: %v", err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListTenantsForUser 用户所属的租户列表
func ListTenantsForUser(db *sql.DB, userID int) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := monitoring.RecordDBTime("ListTenantsForUser", func() error {
		query := `
			SELECT t.tenant_id, t.tenant_name, t.onboarding_completed, t.created_at
			FROM tenants t
			JOIN tenant_users tu ON tu.tenant_id = t.tenant_id
			WHERE tu.user_id = $1
			ORDER BY t.created_at ASC
		`
		rows, err := db.Query(query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t models.Tenant
			if err := rows.Scan(&t.TenantID, &t.TenantName, &t.OnboardingCompleted, &t.CreatedAt); err != nil {
				return err
			}
			tenants = append(tenants, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("查询租户列表失败: %v", err)
	}
	return tenants, nil
}

// ListTenantsWithSyncEnabled 有已连接 Google 且开启同步的租户（定时同步用）
func ListTenantsWithSyncEnabled(db *sql.DB) ([]int, error) {
	var tenantIDs []int
	err := monitoring.RecordDBTime("ListTenantsWithSyncEnabled", func() error {
		query := `
			SELECT DISTINCT t.tenant_id
			FROM tenants t
			JOIN oauth_tokens o ON o.tenant_id = t.tenant_id
			JOIN locations l ON l.tenant_id = t.tenant_id AND l.sync_enabled = TRUE
		`
		rows, err := db.Query(query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				return err
			}
			tenantIDs = append(tenantIDs, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("查询可同步租户失败: %v", err)
	}
	return tenantIDs, nil
}

// ListTenantsWithQueuedResponses 队列里有活跃行且已连接平台的租户（派发用）
// 不看门店的 sync_enabled：同步开关关了，已经入队的回复也要照常发出去
func ListTenantsWithQueuedResponses(db *sql.DB) ([]int, error) {
	var tenantIDs []int
	err := monitoring.RecordDBTime("ListTenantsWithQueuedResponses", func() error {
		query := `
			SELECT DISTINCT q.tenant_id
			FROM response_queue q
			JOIN oauth_tokens o ON o.tenant_id = q.tenant_id
			WHERE q.status IN ('pending', 'processing')
		`
		rows, err := db.Query(query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				return err
			}
			tenantIDs = append(tenantIDs, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("查询待派发租户失败: %v", err)
	}
	return tenantIDs, nil
}
