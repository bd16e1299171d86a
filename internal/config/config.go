package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config 温度监控服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 监控服务特定配置
	Monitor struct {
		// 阈值配置（必填，来自监控配置）
		MinBound float64 // 下限（°F）
		MaxBound float64 // 上限（°F）

		// 通知节奏配置
		InitialDelayMinutes   int  // 初次报警延迟（分钟），默认 30
		RepeatIntervalMinutes int  // 重复报警间隔（分钟），默认 60
		NotifyOnRestore       bool // 恢复时是否通知，默认 true

		// Redis 读数流配置
		Stream struct {
			Name     string // 读数流名称，如 "temp-monitor:readings"
			Group    string // 消费者组名称
			Consumer string // 消费者名称
		}

		// Redis 状态缓存配置
		Cache struct {
			StateKeyPrefix string // 状态键前缀，如 "temp-monitor:sensor:"
			StateSuffix    string // 状态键后缀，如 ":status"
		}

		// 通知目标配置
		Dispatch struct {
			MQTTTopic string // MQTT 通知主题，为空则不启用 MQTT 目标
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
// 阈值（TEMP_MIN_BOUND / TEMP_MAX_BOUND）必填，节奏配置缺省时使用文档默认值
func Load() (*Config, error) {
	cfg := &Config{}

	// 基础设施配置：先填默认值，再用环境变量覆盖
	cfg.Database = DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "tempmonitor",
		SSLMode:  "disable",
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = RedisConfig{
		Addr: "localhost:6379",
		DB:   0,
	}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT = MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "wisefido-temp-monitor",
		QoS:      1,
	}
	cfg.MQTT.LoadFromEnv("MQTT")

	// 阈值必填（范围两端都是闭区间）
	minBound, err := requireEnvFloat("TEMP_MIN_BOUND")
	if err != nil {
		return nil, err
	}
	maxBound, err := requireEnvFloat("TEMP_MAX_BOUND")
	if err != nil {
		return nil, err
	}
	cfg.Monitor.MinBound = minBound
	cfg.Monitor.MaxBound = maxBound

	cfg.Monitor.InitialDelayMinutes = getEnvInt("INITIAL_DELAY_MINUTES", 30)
	cfg.Monitor.RepeatIntervalMinutes = getEnvInt("REPEAT_INTERVAL_MINUTES", 60)
	cfg.Monitor.NotifyOnRestore = getEnvBool("NOTIFY_ON_RESTORE", true)

	cfg.Monitor.Stream.Name = getEnv("READING_STREAM", "temp-monitor:readings")
	cfg.Monitor.Stream.Group = getEnv("READING_STREAM_GROUP", "temp-monitor")
	cfg.Monitor.Stream.Consumer = getEnv("READING_STREAM_CONSUMER", "temp-monitor-1")

	cfg.Monitor.Cache.StateKeyPrefix = getEnv("CACHE_STATE_PREFIX", "temp-monitor:sensor:")
	cfg.Monitor.Cache.StateSuffix = ":status"

	cfg.Monitor.Dispatch.MQTTTopic = getEnv("NOTIFY_MQTT_TOPIC", "temp-monitor/notifications")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func requireEnvFloat(key string) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, fmt.Errorf("%s environment variable is required", key)
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
