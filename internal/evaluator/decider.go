package evaluator

import (
	"time"

	"go.uber.org/zap"

	"wisefido-temp-monitor/internal/config"
	"wisefido-temp-monitor/internal/models"
)

// minRestoreInterval 恢复通知的最小间隔（固定常量，不可配置）
const minRestoreInterval = 5 * time.Minute

// Decider 通知决策器（每个传感器的通知状态机）
// 给定上一次状态和一条新读数，计算下一个状态和零或一条通知
type Decider struct {
	minBound        float64
	maxBound        float64
	initialDelay    time.Duration
	repeatInterval  time.Duration
	notifyOnRestore bool
	logger          *zap.Logger
}

// NewDecider 创建通知决策器
func NewDecider(cfg *config.Config, logger *zap.Logger) *Decider {
	return &Decider{
		minBound:        cfg.Monitor.MinBound,
		maxBound:        cfg.Monitor.MaxBound,
		initialDelay:    time.Duration(cfg.Monitor.InitialDelayMinutes) * time.Minute,
		repeatInterval:  time.Duration(cfg.Monitor.RepeatIntervalMinutes) * time.Minute,
		notifyOnRestore: cfg.Monitor.NotifyOnRestore,
		logger:          logger,
	}
}

// Decide 处理一条读数：就地更新状态，返回需要发送的通知（最多一条，可能为 nil）
// now 使用读数自带的时间戳（Unix 秒），所有耗时比较都用 >=（恰好等于阈值即满足）
func (d *Decider) Decide(sensorID, sensorName string, status *models.SensorStatus, value float64, now int64) *models.Notification {
	inRange := InRange(value, d.minBound, d.maxBound)
	wasInRange := status.InRange

	var notification *models.Notification

	switch {
	case wasInRange && !inRange:
		// 进入越界：启动延迟计时，本条读数不发通知
		start := now
		status.OutOfRangeStart = &start
		status.Notified = false

		d.logger.Debug("Sensor went out of range",
			zap.String("sensor_id", sensorID),
			zap.Float64("value", value),
		)

	case !wasInRange && inRange:
		// 回到范围内：清除越界状态，按 minRestoreInterval 去抖后发恢复通知
		status.OutOfRangeStart = nil
		status.Notified = false

		if d.notifyOnRestore && d.restoreAllowed(status.LastRestoreNotification, now) {
			notification = &models.Notification{
				Kind:       models.KindRestoreAlert,
				SensorID:   sensorID,
				SensorName: sensorName,
				Value:      value,
				Message:    restoreMessage(sensorName, value),
				Timestamp:  now,
			}
			ts := now
			status.LastRestoreNotification = &ts
		}

	case !wasInRange && !inRange:
		// 持续越界：先等 initial delay 发初次报警，之后按 repeat interval 重复
		if status.OutOfRangeStart == nil {
			// 状态缺失（迁移丢失等），以本条读数作为越界起点重新计时
			start := now
			status.OutOfRangeStart = &start
			status.Notified = false
		} else if !status.Notified && now-*status.OutOfRangeStart >= seconds(d.initialDelay) {
			notification = d.buildAlert(sensorID, sensorName, value, now, false)
			ts := now
			status.LastNotification = &ts
			status.Notified = true
		} else if status.Notified && status.LastNotification != nil &&
			now-*status.LastNotification >= seconds(d.repeatInterval) {
			notification = d.buildAlert(sensorID, sensorName, value, now, true)
			ts := now
			status.LastNotification = &ts
		}

	default:
		// 持续在范围内：无状态变化，无通知
	}

	// 无论哪个分支，最后都更新当前读数和分类
	status.LastValue = value
	status.InRange = inRange

	return notification
}

// buildAlert 构建越界报警通知（低温 / 高温，初次 / 重复）
func (d *Decider) buildAlert(sensorID, sensorName string, value float64, now int64, repeat bool) *models.Notification {
	kind := models.KindInitialAlert
	if repeat {
		kind = models.KindRepeatAlert
	}

	var message string
	if value < d.minBound {
		message = lowBreachMessage(sensorName, value, d.minBound, repeat)
	} else {
		message = highBreachMessage(sensorName, value, d.maxBound, repeat)
	}

	return &models.Notification{
		Kind:       kind,
		SensorID:   sensorID,
		SensorName: sensorName,
		Value:      value,
		Message:    message,
		Timestamp:  now,
	}
}

// restoreAllowed 恢复通知去抖检查（从未发送过恢复通知视为满足）
func (d *Decider) restoreAllowed(lastRestore *int64, now int64) bool {
	if lastRestore == nil {
		return true
	}
	return now-*lastRestore >= seconds(minRestoreInterval)
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
