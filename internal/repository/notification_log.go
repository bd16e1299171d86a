package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wisefido-temp-monitor/internal/models"
)

// NotificationLogRepository 通知审计记录仓库（对应 temp_notifications 表）
type NotificationLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationLogRepository 创建通知审计记录仓库
func NewNotificationLogRepository(db *sql.DB, logger *zap.Logger) *NotificationLogRepository {
	return &NotificationLogRepository{
		db:     db,
		logger: logger,
	}
}

// CreateNotification 写入一条通知审计记录
func (r *NotificationLogRepository) CreateNotification(ctx context.Context, record *models.NotificationRecord) error {
	if record.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if record.SensorID == "" {
		return fmt.Errorf("sensor_id is required")
	}

	query := `
		INSERT INTO temp_notifications (
			event_id,
			sensor_id,
			kind,
			message,
			triggered_at,
			trigger_data,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.EventID,
		record.SensorID,
		record.Kind,
		record.Message,
		record.TriggeredAt,
		record.TriggerData,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification record: %w", err)
	}

	return nil
}

// GetRecentNotification 查询某传感器某类型最近 withinMinutes 分钟内的通知
// 不存在时返回 (nil, nil)
func (r *NotificationLogRepository) GetRecentNotification(ctx context.Context, sensorID, kind string, withinMinutes int) (*models.NotificationRecord, error) {
	if sensorID == "" {
		return nil, fmt.Errorf("sensor_id is required")
	}

	query := `
		SELECT
			event_id,
			sensor_id,
			kind,
			message,
			triggered_at,
			trigger_data,
			created_at
		FROM temp_notifications
		WHERE sensor_id = $1
		  AND kind = $2
		  AND triggered_at >= $3
		ORDER BY triggered_at DESC
		LIMIT 1
	`

	since := time.Now().Add(-time.Duration(withinMinutes) * time.Minute)

	var record models.NotificationRecord
	err := r.db.QueryRowContext(ctx, query, sensorID, kind, since).Scan(
		&record.EventID,
		&record.SensorID,
		&record.Kind,
		&record.Message,
		&record.TriggeredAt,
		&record.TriggerData,
		&record.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query recent notification: %w", err)
	}

	return &record, nil
}

// ListNotifications 按传感器查询通知历史（按触发时间倒序）
func (r *NotificationLogRepository) ListNotifications(ctx context.Context, sensorID string, limit int) ([]models.NotificationRecord, error) {
	if sensorID == "" {
		return nil, fmt.Errorf("sensor_id is required")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT
			event_id,
			sensor_id,
			kind,
			message,
			triggered_at,
			trigger_data,
			created_at
		FROM temp_notifications
		WHERE sensor_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, sensorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var records []models.NotificationRecord
	for rows.Next() {
		var record models.NotificationRecord
		if err := rows.Scan(
			&record.EventID,
			&record.SensorID,
			&record.Kind,
			&record.Message,
			&record.TriggeredAt,
			&record.TriggerData,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notification records: %w", err)
	}

	return records, nil
}
