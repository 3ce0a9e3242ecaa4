package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlidingWindowLimiterAcceptsExactlyCap(t *testing.T) {
	l := newSlidingWindowLimiter(windowSize, maxMessages)
	now := time.Now()

	for i := 0; i < maxMessages; i++ {
		assert.True(t, l.Allow(now), "message %d should be accepted", i+1)
	}
	assert.False(t, l.Allow(now), "101st message should be rejected")
}

func TestSlidingWindowLimiterExpiresOldEntries(t *testing.T) {
	l := newSlidingWindowLimiter(10*time.Millisecond, 2)
	base := time.Now()

	assert.True(t, l.Allow(base))
	assert.True(t, l.Allow(base))
	assert.False(t, l.Allow(base))

	later := base.Add(20 * time.Millisecond)
	assert.True(t, l.Allow(later), "window should have rolled over")
}

func TestLooksLikeSecondsHeuristic(t *testing.T) {
	assert.True(t, looksLikeSeconds(1700000000))     // plausible unix seconds
	assert.False(t, looksLikeSeconds(1700000000000)) // plausible unix ms
	assert.False(t, looksLikeSeconds(0))
}
