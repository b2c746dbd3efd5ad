package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		require.True(t, rl.Allow("alice"), "attempt %d within limit", i)
	}
	require.False(t, rl.Allow("alice"))
}

func TestRateLimiterIsPerUser(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	require.True(t, rl.Allow("alice"))
	require.True(t, rl.Allow("bob"))
	require.False(t, rl.Allow("alice"))
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)
	require.True(t, rl.Allow("alice"))
	require.False(t, rl.Allow("alice"))

	time.Sleep(30 * time.Millisecond)
	require.True(t, rl.Allow("alice"), "old attempts age out of the window")
}
