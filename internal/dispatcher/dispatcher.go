package dispatcher

import (
	"context"

	"go.uber.org/zap"

	"wisefido-temp-monitor/internal/models"
)

// Target 通知目标（MQTT、日志等）
type Target interface {
	Name() string
	Send(ctx context.Context, notification *models.Notification) error
}

// Dispatcher 通知分发器
// 把一条通知扇出到所有已注册的目标；投递失败只记日志，不影响读数处理
type Dispatcher struct {
	targets []Target
	logger  *zap.Logger
}

// NewDispatcher 创建通知分发器
func NewDispatcher(logger *zap.Logger, targets ...Target) *Dispatcher {
	return &Dispatcher{
		targets: targets,
		logger:  logger,
	}
}

// Dispatch 分发通知到所有目标
func (d *Dispatcher) Dispatch(ctx context.Context, notification *models.Notification) {
	for _, target := range d.targets {
		if err := target.Send(ctx, notification); err != nil {
			d.logger.Error("Failed to send notification",
				zap.String("target", target.Name()),
				zap.String("kind", notification.Kind),
				zap.String("sensor_id", notification.SensorID),
				zap.Error(err),
			)
			// 继续发送其他目标，不中断
			continue
		}

		d.logger.Info("Notification sent",
			zap.String("target", target.Name()),
			zap.String("kind", notification.Kind),
			zap.String("sensor_id", notification.SensorID),
			zap.String("message", notification.Message),
		)
	}
}
