package models

import "time"

// 通知类型
const (
	KindInitialAlert = "initial_alert" // 初次越界报警（经过 initial delay 之后）
	KindRepeatAlert  = "repeat_alert"  // 重复越界报警（按 repeat interval 节奏）
	KindRestoreAlert = "restore_alert" // 恢复通知（回到范围内）
)

// Notification 通知请求（交给 dispatcher 分发到各个通知目标）
type Notification struct {
	Kind       string  `json:"kind"`
	SensorID   string  `json:"sensor_id"`
	SensorName string  `json:"sensor_name"`
	Value      float64 `json:"value"`
	Message    string  `json:"message"`
	Timestamp  int64   `json:"timestamp"` // 触发读数的 Unix 时间戳（秒）
}

// NotificationRecord 通知审计记录（对应 temp_notifications 表）
type NotificationRecord struct {
	EventID     string    `json:"event_id" db:"event_id"`
	SensorID    string    `json:"sensor_id" db:"sensor_id"`
	Kind        string    `json:"kind" db:"kind"`
	Message     string    `json:"message" db:"message"`
	TriggeredAt time.Time `json:"triggered_at" db:"triggered_at"`
	TriggerData string    `json:"trigger_data" db:"trigger_data"` // JSONB
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// TriggerData 通知触发数据快照（JSONB 结构）
type TriggerData struct {
	Value    float64  `json:"value"`
	MinBound *float64 `json:"min_bound,omitempty"`
	MaxBound *float64 `json:"max_bound,omitempty"`
}
