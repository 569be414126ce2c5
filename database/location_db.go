package database

import (
	"database/sql"
	"fmt"
	"time"

	"review-hub/logging"
	"review-hub/models"
	"review-hub/monitoring"

	"github.com/sirupsen/logrus"
)

// UpsertLocation 按 (tenant_id, platform_location) 插入或更新门店
func UpsertLocation(db *sql.DB, loc *models.Location) (int, error) {
	var locationID int
	err := monitoring.RecordDBTime("UpsertLocation", func() error {
		query := `
			INSERT INTO locations (tenant_id, platform_location, location_name, address, sync_enabled, created_at)
			VALUES ($1,$2,$3,$4,$5,NOW())
			ON CONFLICT (tenant_id, platform_location) DO UPDATE SET
				location_name = EXCLUDED.location_name,
				address       = EXCLUDED.address
			RETURNING location_id
		`
		return db.QueryRow(query,
			loc.TenantID, loc.PlatformLocation, loc.LocationName, loc.Address, loc.SyncEnabled,
		).Scan(&locationID)
	})
	if err != nil {
		logging.Error("门店upsert失败", logrus.Fields{"error": err, "platformLocation": loc.PlatformLocation})
		return 0, fmt.Errorf("门店upsert失败: %v", err)
	}
	return locationID, nil
}

// ListLocations 租户门店列表
func ListLocations(db *sql.DB, tenantID int) ([]models.Location, error) {
	var locations []models.Location
	err := monitoring.RecordDBTime("ListLocations", func() error {
		query := `
			SELECT location_id, tenant_id, platform_location, location_name, address,
			       sync_enabled, last_synced_at, last_sync_error, created_at
			FROM locations
			WHERE tenant_id = $1
			ORDER BY location_name ASC
		`
		rows, err := db.Query(query, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var loc models.Location
			if err := rows.Scan(
				&loc.LocationID, &loc.TenantID, &loc.PlatformLocation, &loc.LocationName, &loc.Address,
				&loc.SyncEnabled, &loc.LastSyncedAt, &loc.LastSyncError, &loc.CreatedAt,
			); err != nil {
				return err
			}
			locations = append(locations, loc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("查询门店列表失败: %v", err)
	}
	return locations, nil
}

// GetLocationByID 按租户范围查询单个门店
func GetLocationByID(db *sql.DB, tenantID, locationID int) (*models.Location, error) {
	var loc models.Location
	err := monitoring.RecordDBTime("GetLocationByID", func() error {
		query := `
			SELECT location_id, tenant_id, platform_location, location_name, address,
			       sync_enabled, last_synced_at, last_sync_error, created_at
			FROM locations
			WHERE location_id = $1 AND tenant_id = $2
		`
		return db.QueryRow(query, locationID, tenantID).Scan(
			&loc.LocationID, &loc.TenantID, &loc.PlatformLocation, &loc.LocationName, &loc.Address,
			&loc.SyncEnabled, &loc.LastSyncedAt, &loc.LastSyncError, &loc.CreatedAt,
		)
	})
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询门店失败: %v", err)
	}
	return &loc, nil
}

// UpdateLocationSyncStatus 记录一次同步结果
func UpdateLocationSyncStatus(db *sql.DB, tenantID, locationID int, syncedAt time.Time, syncErr error) error {
	return monitoring.RecordDBTime("UpdateLocationSyncStatus", func() error {
		var errMsg *string
		if syncErr != nil {
			msg := syncErr.Error()
			errMsg = &msg
		}
		query := `
			UPDATE locations
			SET last_synced_at = $3, last_sync_error = $4
			WHERE location_id = $1 AND tenant_id = $2
		`
		_, err := db.Exec(query, locationID, tenantID, syncedAt, errMsg)
		if err != nil {
			return fmt.Errorf("更新同步状态失败: %v", err)
		}
		return nil
	})
}

// SetLocationSyncEnabled 开关门店同步
func SetLocationSyncEnabled(db *sql.DB, tenantID, locationID int, enabled bool) error {
	return monitoring.RecordDBTime("SetLocationSyncEnabled", func() error {
		result, err := db.Exec(
			`UPDATE locations SET sync_enabled = $3 WHERE location_id = $1 AND tenant_id = $2`,
			locationID, tenantID, enabled,
		)
		if err != nil {
			return fmt.Errorf("更新同步开关失败: %v", err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
