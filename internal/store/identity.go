package store

import (
	"strconv"
	"strings"
)

// CanonicalSensorID 规范化传感器标识
// 上游读数的 sensor_id 可能以数字形式（"42"、"42.0"）或字符串形式出现，
// 所有存储操作之前都先规范化为同一种形式，避免同一个传感器出现多条记录
func CanonicalSensorID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" {
		return id
	}

	// 数字形式的标识统一为整数字面量（"42.0" 和 "42" 是同一个传感器）。
	// 整数字面量走 ParseInt，超过 float64 精度的长整数标识不会丢失精度
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	if strings.ContainsAny(id, ".eE") {
		if f, err := strconv.ParseFloat(id, 64); err == nil && f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
	}

	return id
}
