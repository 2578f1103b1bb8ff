package apns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewMessageDefaults(t *testing.T) {
	msg := NewMessage(testToken, "hi")
	assert.Equal(t, -1, msg.BadgeNumber)
	assert.Equal(t, DefaultMaxRetries, msg.MaxRetries)
	assert.False(t, msg.Expiry.IsZero())
	assert.Equal(t, uint8(0), msg.Status())
	assert.Equal(t, uint(0), msg.Retries())
}

func TestTryRetry(t *testing.T) {
	msg := NewMessage(testToken, "hi")
	msg.MaxRetries = 2
	assert.True(t, msg.tryRetry())
	assert.True(t, msg.tryRetry())
	assert.False(t, msg.tryRetry())
	assert.Equal(t, uint(3), msg.Retries())
}

func TestIsExpired(t *testing.T) {
	now := time.Now()
	msg := NewMessage(testToken, "hi")
	msg.Expiry = now.Add(time.Minute)
	assert.False(t, msg.isExpired(now))
	assert.True(t, msg.isExpired(now.Add(2*time.Minute)))

	// нулевое время отключает устаревание
	msg.Expiry = time.Time{}
	assert.False(t, msg.isExpired(now.Add(24*time.Hour)))
}

func TestMessageString(t *testing.T) {
	msg := NewMessage(testToken, "hi")
	msg.id = 7
	assert.Contains(t, msg.String(), "[7]")
	assert.Equal(t, "untokened message [0]", NewMessage("", "hi").String())
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "INVALID TOKEN", StatusText(StatusInvalidToken))
	assert.Equal(t, "NO ERROR", StatusText(StatusNoErrors))
	assert.Equal(t, "NONE UNKNOWN", StatusText(42))
}
