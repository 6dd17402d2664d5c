package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToInt(t *testing.T) {
	assert.Equal(t, 42, ToInt(int64(42)))
	assert.Equal(t, 42, ToInt(uint8(42)))
	assert.Equal(t, 42, ToInt("42"))
	assert.Equal(t, 42, ToInt([]byte("42")))
	assert.Equal(t, 0, ToInt("forty"))
}

func TestToInt64(t *testing.T) {
	assert.Equal(t, int64(4096), ToInt64(4096))
	assert.Equal(t, int64(4096), ToInt64(" 4096 "))
	assert.Equal(t, int64(7), ToInt64(float64(7.9)))
	assert.Equal(t, int64(0), ToInt64(nil))
}

func TestToFloat(t *testing.T) {
	assert.Equal(t, 1.5, ToFloat("1.5"))
	assert.Equal(t, 3.0, ToFloat(int32(3)))
	assert.Equal(t, 2.25, ToFloat([]byte("2.25")))
	assert.Equal(t, 0.0, ToFloat("n/a"))
}

func TestToBool(t *testing.T) {
	assert.True(t, ToBool(int64(1)))
	assert.True(t, ToBool("TRUE"))
	assert.True(t, ToBool([]byte("1")))
	assert.False(t, ToBool("0"))
	assert.False(t, ToBool(nil))
}

func TestToString(t *testing.T) {
	assert.Equal(t, "abc", ToString([]byte("abc")))
	assert.Equal(t, "12", ToString(int64(12)))
	assert.Equal(t, "true", ToString(true))
}
