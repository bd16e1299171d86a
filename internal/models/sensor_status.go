package models

import (
	"encoding/json"
)

// SensorStatus 传感器通知状态（存 Redis，JSON 序列化）
// 每个传感器恰好一条记录，按规范化后的传感器标识作为键
type SensorStatus struct {
	LastValue float64 `json:"last_value"` // 最后一次读数
	InRange   bool    `json:"in_range"`   // 最后一次读数是否在阈值范围内

	// 当前越界（excursion）的开始时间；在范围内时为 nil
	OutOfRangeStart *int64 `json:"out_of_range_start,omitempty"`

	// 最后一次越界报警（初次或重复）的发送时间
	LastNotification *int64 `json:"last_notification,omitempty"`

	// 当前越界的初次报警是否已发送；进入新越界时重置为 false
	Notified bool `json:"notified"`

	// 最后一次恢复通知的发送时间（与越界报警的计时互相独立）
	LastRestoreNotification *int64 `json:"last_restore_notification,omitempty"`
}

// LegacySensorStatus 旧版本状态记录
// 旧实现只保存 lastStatus/lastTemp/lastNotification 三个字段
type LegacySensorStatus struct {
	LastStatus       *string  `json:"lastStatus,omitempty"`
	LastTemp         *float64 `json:"lastTemp,omitempty"`
	LastNotification *int64   `json:"lastNotification,omitempty"`
}

// StatusRecord 状态记录的版本标签（当前版本或 legacy 版本，二选一）
type StatusRecord struct {
	Current *SensorStatus
	Legacy  *LegacySensorStatus
}

// DecodeStatusRecord 解码存储中的状态记录
// 无法识别的记录（损坏的 JSON、两种形状都不匹配）返回 nil，
// 调用方按"记录不存在"处理（重建状态），绝不因此中断读数处理
func DecodeStatusRecord(raw []byte) *StatusRecord {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil
	}

	// 旧记录的特征：存在已废弃的 lastStatus 字段，或缺少当前形状的 in_range 字段
	_, hasLastStatus := probe["lastStatus"]
	_, hasInRange := probe["in_range"]

	if hasLastStatus || !hasInRange {
		var legacy LegacySensorStatus
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return nil
		}
		return &StatusRecord{Legacy: &legacy}
	}

	var current SensorStatus
	if err := json.Unmarshal(raw, &current); err != nil {
		return nil
	}
	return &StatusRecord{Current: &current}
}
