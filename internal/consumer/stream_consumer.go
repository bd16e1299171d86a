package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wisefido-temp-monitor/internal/config"
	"wisefido-temp-monitor/internal/models"
	redisx "wisefido-temp-monitor/internal/redis"
)

// ReadingHandler 读数处理器接口
type ReadingHandler interface {
	// HandleReading 处理一条读数（取状态 → 决策 → 持久化 → 分发通知）
	HandleReading(ctx context.Context, reading models.Reading) error
}

// StreamConsumer 读数流消费者（消费上游采集服务写入的 Redis Streams）
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewStreamConsumer 创建读数流消费者
func NewStreamConsumer(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// Start 启动消费循环（阻塞，直到 ctx 取消）
func (c *StreamConsumer) Start(ctx context.Context, handler ReadingHandler) error {
	stream := c.config.Monitor.Stream.Name
	group := c.config.Monitor.Stream.Group
	consumer := c.config.Monitor.Stream.Consumer

	if err := redisx.CreateConsumerGroup(ctx, c.redisClient, stream, group); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("Reading stream consumer started",
		zap.String("stream", stream),
		zap.String("group", group),
		zap.String("consumer", consumer),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Reading stream consumer stopped")
			return nil
		default:
		}

		messages, err := redisx.ReadFromStream(ctx, c.redisClient, stream, group, consumer, 10)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Reading stream consumer stopped")
				return nil
			}
			c.logger.Error("Failed to read from stream",
				zap.String("stream", stream),
				zap.Error(err),
			)
			// 短暂等待后重试，不中断消费
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range messages {
			c.handleMessage(ctx, msg, handler)
		}
	}
}

// handleMessage 处理单条流消息（解析失败或处理失败都只记日志并确认，避免消息堆积）
func (c *StreamConsumer) handleMessage(ctx context.Context, msg redisx.StreamMessage, handler ReadingHandler) {
	reading, err := decodeReading(msg.Values)
	if err != nil {
		c.logger.Warn("Failed to decode reading message",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		c.ack(ctx, msg.ID)
		return
	}

	if err := handler.HandleReading(ctx, *reading); err != nil {
		c.logger.Error("Failed to handle reading",
			zap.String("message_id", msg.ID),
			zap.String("sensor_id", reading.SensorID),
			zap.Error(err),
		)
	}

	c.ack(ctx, msg.ID)
}

func (c *StreamConsumer) ack(ctx context.Context, id string) {
	if err := redisx.AckMessage(ctx, c.redisClient, c.config.Monitor.Stream.Name, c.config.Monitor.Stream.Group, id); err != nil {
		c.logger.Warn("Failed to ack message",
			zap.String("message_id", id),
			zap.Error(err),
		)
	}
}

// decodeReading 解析流消息里的读数
// sensor_id 可能是 JSON 字符串也可能是数字，这里统一转成字符串形式
func decodeReading(values map[string]interface{}) (*models.Reading, error) {
	data, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing data field")
	}

	var payload struct {
		SensorID  json.RawMessage `json:"sensor_id"`
		Value     *float64        `json:"value"`
		Timestamp int64           `json:"timestamp"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reading: %w", err)
	}
	if len(payload.SensorID) == 0 {
		return nil, fmt.Errorf("missing sensor_id")
	}
	if payload.Value == nil {
		return nil, fmt.Errorf("missing value")
	}

	var sensorID string
	if err := json.Unmarshal(payload.SensorID, &sensorID); err != nil {
		// 数字形式的标识，直接用字面量
		sensorID = string(payload.SensorID)
	}

	timestamp := payload.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	return &models.Reading{
		SensorID:  sensorID,
		Value:     *payload.Value,
		Timestamp: timestamp,
	}, nil
}
