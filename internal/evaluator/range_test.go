package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInRange_Inclusive(t *testing.T) {
	// 两端都是闭区间
	assert.True(t, InRange(32, 32, 40))
	assert.True(t, InRange(40, 32, 40))
	assert.True(t, InRange(35.5, 32, 40))

	assert.False(t, InRange(31.9, 32, 40))
	assert.False(t, InRange(40.1, 32, 40))
}

func TestInRange_NegativeValues(t *testing.T) {
	assert.True(t, InRange(-5, -10, 0))
	assert.False(t, InRange(-15, -10, 0))
}

func TestInRange_InvertedBounds(t *testing.T) {
	// minBound > maxBound 时保持宽松行为：任何值都不在范围内
	assert.False(t, InRange(30, 50, 10))
	assert.False(t, InRange(50, 50, 10))
	assert.False(t, InRange(10, 50, 10))
}
