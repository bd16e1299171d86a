package evaluator

import (
	"fmt"
	"strconv"
)

// formatTemp 格式化温度值（去掉多余的小数位，24.0 → "24"）
func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// lowBreachMessage 低温报警消息（初次 / 重复）
func lowBreachMessage(name string, value, minBound float64, repeat bool) string {
	adjective := "too cold"
	if repeat {
		adjective = "still too cold"
	}
	return fmt.Sprintf("Temperature Alert: %s is %s at %s°F (minimum: %s°F)",
		name, adjective, formatTemp(value), formatTemp(minBound))
}

// highBreachMessage 高温报警消息（初次 / 重复）
func highBreachMessage(name string, value, maxBound float64, repeat bool) string {
	adjective := "too hot"
	if repeat {
		adjective = "still too hot"
	}
	return fmt.Sprintf("Temperature Alert: %s is %s at %s°F (maximum: %s°F)",
		name, adjective, formatTemp(value), formatTemp(maxBound))
}

// restoreMessage 恢复通知消息
func restoreMessage(name string, value float64) string {
	return fmt.Sprintf("Temperature Restored: %s has returned to normal range at %s°F",
		name, formatTemp(value))
}
