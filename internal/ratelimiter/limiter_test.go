package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterAllow(t *testing.T) {
	clock := time.Unix(0, 0)
	l := New(1, 1)
	l.now = func() time.Time { return clock }

	assert.True(t, l.Allow("k"), "first request should pass")
	assert.False(t, l.Allow("k"), "second immediate request should be limited")
	assert.True(t, l.Allow("other"), "keys are independent")

	clock = clock.Add(1100 * time.Millisecond)
	assert.True(t, l.Allow("k"), "should allow after refill")
}

func TestLimiterDisabled(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("k"))
	}
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "10.0.0.1", ClientIP("10.0.0.1:5555"))
	assert.Equal(t, "garbage", ClientIP("garbage"))
}
