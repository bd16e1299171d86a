package evaluator

// InRange 判断读数是否在阈值范围内（两端都是闭区间）
// 纯函数，对所有输入有定义；minBound > maxBound 时任何值都不在范围内
func InRange(value, minBound, maxBound float64) bool {
	return value >= minBound && value <= maxBound
}
