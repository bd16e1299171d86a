package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"wisefido-temp-monitor/internal/config"
	"wisefido-temp-monitor/internal/models"
)

// SensorStatusStore 传感器状态存储
// 按规范化后的传感器标识持久化 SensorStatus，负责旧记录迁移和重复键修复
type SensorStatusStore struct {
	config *config.Config
	kv     KV
	logger *zap.Logger
}

// NewSensorStatusStore 创建状态存储
func NewSensorStatusStore(cfg *config.Config, kv KV, logger *zap.Logger) *SensorStatusStore {
	return &SensorStatusStore{
		config: cfg,
		kv:     kv,
		logger: logger,
	}
}

// statusKey 构建状态键（标识必须已规范化）
func (s *SensorStatusStore) statusKey(canonicalID string) string {
	return s.config.Monitor.Cache.StateKeyPrefix + canonicalID + s.config.Monitor.Cache.StateSuffix
}

// Get 读取传感器状态记录（当前形状或 legacy 形状）
// 查找按规范化标识进行；如果记录是旧版本以非规范形式的键保存的，
// 读取时搬迁到规范键下，保证之后同一个传感器只有一条记录。
// 记录不存在或已损坏（无法识别的形状）时返回 (nil, nil)，调用方走重建路径
func (s *SensorStatusStore) Get(ctx context.Context, sensorID string) (*models.StatusRecord, error) {
	canonical := CanonicalSensorID(sensorID)

	raw, err := s.kv.Get(ctx, s.statusKey(canonical))
	if errors.Is(err, ErrMiss) && sensorID != canonical {
		// 旧版本可能用原始形式（如 "42.0"）作为键写入过
		altKey := s.statusKey(sensorID)
		raw, err = s.kv.Get(ctx, altKey)
		if err == nil {
			if relocateErr := s.relocate(ctx, altKey, s.statusKey(canonical), raw); relocateErr != nil {
				s.logger.Warn("Failed to relocate sensor status to canonical key",
					zap.String("sensor_id", sensorID),
					zap.Error(relocateErr),
				)
			}
		}
	}
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sensor status: %w", err)
	}

	record := models.DecodeStatusRecord([]byte(raw))
	if record == nil {
		// 损坏的记录按不存在处理，读数处理绝不因此中断
		s.logger.Warn("Malformed sensor status record, will recreate",
			zap.String("sensor_id", canonical),
		)
		return nil, nil
	}

	return record, nil
}

// Put 持久化传感器状态（写到规范键下，覆盖而不是新增）
func (s *SensorStatusStore) Put(ctx context.Context, sensorID string, status *models.SensorStatus) error {
	canonical := CanonicalSensorID(sensorID)

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal sensor status: %w", err)
	}

	if err := s.kv.Set(ctx, s.statusKey(canonical), string(data), 0); err != nil {
		return fmt.Errorf("failed to set sensor status: %w", err)
	}

	// 同一个传感器的非规范键（如果存在）一并清掉，写后保证至多一条记录
	if sensorID != canonical {
		if err := s.kv.Del(ctx, s.statusKey(sensorID)); err != nil {
			s.logger.Warn("Failed to delete alternate-form sensor status key",
				zap.String("sensor_id", sensorID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// Migrate 将旧版本记录迁移为当前形状
// 迁移有损：保留 lastTemp/lastNotification，inRange 按当前读数重算，
// 越界起点设为现在（当前越界），notified 和恢复计时一律重置
func (s *SensorStatusStore) Migrate(legacy *models.LegacySensorStatus, currentValue float64, inRange bool, now int64) *models.SensorStatus {
	status := &models.SensorStatus{
		LastValue: currentValue,
		InRange:   inRange,
		Notified:  false,
	}

	if legacy.LastTemp != nil {
		status.LastValue = *legacy.LastTemp
	}
	if legacy.LastNotification != nil {
		ts := *legacy.LastNotification
		status.LastNotification = &ts
	}
	if !inRange {
		start := now
		status.OutOfRangeStart = &start
	}

	return status
}

// InitializeMissing 为没有记录的传感器创建初始状态并持久化
// 创建本身绝不产生通知，即使第一条读数已经越界（延迟计时从这条读数开始）
func (s *SensorStatusStore) InitializeMissing(ctx context.Context, sensorID string, currentValue float64, inRange bool, now int64) (*models.SensorStatus, error) {
	status := &models.SensorStatus{
		LastValue: currentValue,
		InRange:   inRange,
		Notified:  false,
	}
	if !inRange {
		start := now
		status.OutOfRangeStart = &start
	}

	if err := s.Put(ctx, sensorID, status); err != nil {
		return nil, err
	}

	s.logger.Info("Initialized sensor status",
		zap.String("sensor_id", CanonicalSensorID(sensorID)),
		zap.Float64("value", currentValue),
		zap.Bool("in_range", inRange),
	)

	return status, nil
}

// Deduplicate 启动时修复重复键
// 早期版本用不同形式的键（数字 / 字符串）给同一个传感器写过多条记录，
// 这里按规范化标识归并，先扫到的记录保留，其余删除
func (s *SensorStatusStore) Deduplicate(ctx context.Context) error {
	pattern := s.config.Monitor.Cache.StateKeyPrefix + "*"
	keys, err := s.kv.ScanKeys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to scan sensor status keys: %w", err)
	}

	seen := make(map[string]string) // canonical ID → 保留的键
	removed := 0

	for _, key := range keys {
		canonical := CanonicalSensorID(s.sensorIDFromKey(key))
		canonicalKey := s.statusKey(canonical)

		if keptKey, ok := seen[canonical]; ok {
			if key == keptKey {
				// 前面搬迁时已经落在这个键上，不是重复
				continue
			}
			// 同一个传感器的后续记录直接删除（先扫到的优先）
			if err := s.kv.Del(ctx, key); err != nil {
				return fmt.Errorf("failed to delete duplicate key %s: %w", key, err)
			}
			removed++
			continue
		}
		seen[canonical] = key

		// 保留的记录如果不在规范键下，搬迁过去
		if key != canonicalKey {
			raw, err := s.kv.Get(ctx, key)
			if err != nil {
				return fmt.Errorf("failed to read key %s during dedup: %w", key, err)
			}
			if err := s.relocate(ctx, key, canonicalKey, raw); err != nil {
				return fmt.Errorf("failed to relocate key %s during dedup: %w", key, err)
			}
			seen[canonical] = canonicalKey
		}
	}

	if removed > 0 {
		s.logger.Info("Deduplicated sensor status records",
			zap.Int("removed", removed),
			zap.Int("sensors", len(seen)),
		)
	}

	return nil
}

// relocate 将记录从旧键搬到新键
func (s *SensorStatusStore) relocate(ctx context.Context, fromKey, toKey, raw string) error {
	if err := s.kv.Set(ctx, toKey, raw, 0); err != nil {
		return err
	}
	return s.kv.Del(ctx, fromKey)
}

// sensorIDFromKey 从状态键还原传感器标识
func (s *SensorStatusStore) sensorIDFromKey(key string) string {
	id := strings.TrimPrefix(key, s.config.Monitor.Cache.StateKeyPrefix)
	return strings.TrimSuffix(id, s.config.Monitor.Cache.StateSuffix)
}
