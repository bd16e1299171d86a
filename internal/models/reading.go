package models

// Reading 传感器读数（从 Redis Streams 消费，与上游采集服务保持一致）
type Reading struct {
	SensorID  string  `json:"sensor_id"` // 传感器标识（可能是数字形式或字符串形式，入口处规范化）
	Value     float64 `json:"value"`     // 温度值（°F）
	Timestamp int64   `json:"timestamp"` // Unix 时间戳（秒），读数采集时间
}
