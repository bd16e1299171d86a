package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-temp-monitor/internal/config"
	"wisefido-temp-monitor/internal/consumer"
	"wisefido-temp-monitor/internal/database"
	"wisefido-temp-monitor/internal/dispatcher"
	"wisefido-temp-monitor/internal/evaluator"
	"wisefido-temp-monitor/internal/models"
	"wisefido-temp-monitor/internal/mqtt"
	redisx "wisefido-temp-monitor/internal/redis"
	"wisefido-temp-monitor/internal/repository"
	"wisefido-temp-monitor/internal/store"
)

// SensorNameProvider 传感器显示名称查询
type SensorNameProvider interface {
	GetSensorName(ctx context.Context, sensorID string) (string, error)
}

// NotificationLogger 通知审计写入
type NotificationLogger interface {
	CreateNotification(ctx context.Context, record *models.NotificationRecord) error
}

// NotificationDispatcher 通知分发
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, notification *models.Notification)
}

// MonitorService 温度监控服务（整合各层）
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger

	statusStore *store.SensorStatusStore
	decider     *evaluator.Decider
	dispatcher  NotificationDispatcher
	consumer    *consumer.StreamConsumer
	sensorRepo  SensorNameProvider
	notifLog    NotificationLogger

	// 每个传感器一把锁：同一传感器的读数严格串行处理（取状态-决策-写回期间不被打断），
	// 不同传感器互不影响
	mu          sync.Mutex
	sensorLocks map[string]*sync.Mutex
}

// NewMonitorService 创建温度监控服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redisx.NewRedisClient(&cfg.Redis)
	if err := redisx.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT（通知目标）
	var targets []dispatcher.Target
	var mqttClient *mqtt.Client
	if cfg.Monitor.Dispatch.MQTTTopic != "" {
		mqttClient, err = mqtt.NewClient(&cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("failed to connect mqtt: %w", err)
		}
		targets = append(targets, dispatcher.NewMQTTTarget(mqttClient, cfg.Monitor.Dispatch.MQTTTopic, cfg.MQTT.QoS))
	}

	// 4. 组装各层组件
	s := newMonitor(
		cfg,
		logger,
		store.NewSensorStatusStore(cfg, store.NewRedisKV(redisClient), logger),
		evaluator.NewDecider(cfg, logger),
		dispatcher.NewDispatcher(logger, targets...),
		repository.NewSensorRepository(db, logger),
		repository.NewNotificationLogRepository(db, logger),
	)
	s.db = db
	s.redisClient = redisClient
	s.mqttClient = mqttClient
	s.consumer = consumer.NewStreamConsumer(cfg, redisClient, logger)

	return s, nil
}

// newMonitor 组装服务（不建立外部连接）
func newMonitor(
	cfg *config.Config,
	logger *zap.Logger,
	statusStore *store.SensorStatusStore,
	decider *evaluator.Decider,
	disp NotificationDispatcher,
	sensorRepo SensorNameProvider,
	notifLog NotificationLogger,
) *MonitorService {
	return &MonitorService{
		config:      cfg,
		logger:      logger,
		statusStore: statusStore,
		decider:     decider,
		dispatcher:  disp,
		sensorRepo:  sensorRepo,
		notifLog:    notifLog,
		sensorLocks: make(map[string]*sync.Mutex),
	}
}

// Start 启动服务：先修复历史重复记录，再开始消费读数流
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting temp monitor service",
		zap.Float64("min_bound", s.config.Monitor.MinBound),
		zap.Float64("max_bound", s.config.Monitor.MaxBound),
		zap.Int("initial_delay_minutes", s.config.Monitor.InitialDelayMinutes),
		zap.Int("repeat_interval_minutes", s.config.Monitor.RepeatIntervalMinutes),
		zap.Bool("notify_on_restore", s.config.Monitor.NotifyOnRestore),
	)

	if err := s.statusStore.Deduplicate(ctx); err != nil {
		return fmt.Errorf("failed to deduplicate sensor status records: %w", err)
	}

	return s.consumer.Start(ctx, s)
}

// Stop 停止服务
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping temp monitor service")

	if s.mqttClient != nil && s.mqttClient.IsConnected() {
		s.mqttClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := redisx.Close(s.redisClient); err != nil {
			s.logger.Error("Failed to close redis",
				zap.Error(err),
			)
		}
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	return nil
}

// HandleReading 处理一条读数（实现 consumer.ReadingHandler）
// 整个取状态-决策-写回-分发序列在该传感器的锁内完成
func (s *MonitorService) HandleReading(ctx context.Context, reading models.Reading) error {
	canonical := store.CanonicalSensorID(reading.SensorID)
	if canonical == "" {
		return fmt.Errorf("empty sensor_id")
	}

	lock := s.lockFor(canonical)
	lock.Lock()
	defer lock.Unlock()

	inRange := evaluator.InRange(reading.Value, s.config.Monitor.MinBound, s.config.Monitor.MaxBound)

	record, err := s.statusStore.Get(ctx, canonical)
	if err != nil {
		return err
	}

	if record == nil {
		// 新传感器（或无法恢复的记录）：创建初始状态，本条读数不产生通知
		_, err := s.statusStore.InitializeMissing(ctx, canonical, reading.Value, inRange, reading.Timestamp)
		return err
	}

	status := record.Current
	if status == nil {
		// legacy 记录：加载时一次性迁移
		status = s.statusStore.Migrate(record.Legacy, reading.Value, inRange, reading.Timestamp)
		s.logger.Info("Migrated legacy sensor status",
			zap.String("sensor_id", canonical),
		)
	}

	notification := s.decider.Decide(canonical, s.sensorName(ctx, canonical), status, reading.Value, reading.Timestamp)

	if err := s.statusStore.Put(ctx, canonical, status); err != nil {
		return err
	}

	if notification != nil {
		s.recordNotification(ctx, notification)
		s.dispatcher.Dispatch(ctx, notification)
	}

	return nil
}

// sensorName 查询传感器显示名称，查不到时回退到标识
func (s *MonitorService) sensorName(ctx context.Context, sensorID string) string {
	name, err := s.sensorRepo.GetSensorName(ctx, sensorID)
	if err != nil {
		s.logger.Warn("Failed to get sensor name",
			zap.String("sensor_id", sensorID),
			zap.Error(err),
		)
		return sensorID
	}
	if name == "" {
		return sensorID
	}
	return name
}

// recordNotification 写入通知审计记录（失败只记日志，不影响分发）
func (s *MonitorService) recordNotification(ctx context.Context, notification *models.Notification) {
	triggerData := models.TriggerData{
		Value: notification.Value,
	}
	if notification.Kind != models.KindRestoreAlert {
		minBound := s.config.Monitor.MinBound
		maxBound := s.config.Monitor.MaxBound
		triggerData.MinBound = &minBound
		triggerData.MaxBound = &maxBound
	}

	triggerJSON, err := json.Marshal(triggerData)
	if err != nil {
		s.logger.Error("Failed to marshal trigger data",
			zap.Error(err),
		)
		return
	}

	record := &models.NotificationRecord{
		EventID:     uuid.New().String(),
		SensorID:    notification.SensorID,
		Kind:        notification.Kind,
		Message:     notification.Message,
		TriggeredAt: time.Unix(notification.Timestamp, 0),
		TriggerData: string(triggerJSON),
		CreatedAt:   time.Now(),
	}

	if err := s.notifLog.CreateNotification(ctx, record); err != nil {
		s.logger.Error("Failed to record notification",
			zap.String("event_id", record.EventID),
			zap.String("sensor_id", record.SensorID),
			zap.Error(err),
		)
	}
}

// lockFor 获取指定传感器的处理锁
func (s *MonitorService) lockFor(canonicalID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.sensorLocks[canonicalID]
	if !ok {
		lock = &sync.Mutex{}
		s.sensorLocks[canonicalID] = lock
	}
	return lock
}
