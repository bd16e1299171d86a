package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// SensorRepository 传感器仓库（读取传感器显示名称等监控配置）
type SensorRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSensorRepository 创建传感器仓库
func NewSensorRepository(db *sql.DB, logger *zap.Logger) *SensorRepository {
	return &SensorRepository{
		db:     db,
		logger: logger,
	}
}

// GetSensorName 获取传感器显示名称
// 未配置时返回 ("", nil)，调用方回退到传感器标识
func (r *SensorRepository) GetSensorName(ctx context.Context, sensorID string) (string, error) {
	if sensorID == "" {
		return "", fmt.Errorf("sensor_id is required")
	}

	query := `
		SELECT sensor_name
		FROM sensors
		WHERE sensor_id = $1
	`

	var name string
	err := r.db.QueryRowContext(ctx, query, sensorID).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to query sensor name: %w", err)
	}

	return name, nil
}
