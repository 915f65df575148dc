package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/taxbook/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_AllowsUpToLimitThenDenies(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC))
	limiter := NewLimiter(clk)

	for i := 1; i <= 5; i++ {
		res := limiter.Check("POST /business:u1", 5, time.Second)
		require.True(t, res.Allowed, "check %d should be allowed", i)
		assert.Equal(t, i, res.Count)
		clk.Advance(100 * time.Millisecond)
	}

	res := limiter.Check("POST /business:u1", 5, time.Second)
	assert.False(t, res.Allowed)
	assert.Equal(t, 5, res.Count)
	assert.Greater(t, res.RetryAfterSeconds(), 0)
}

func TestCheck_WindowSlides(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC))
	limiter := NewLimiter(clk)

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Check("k", 3, time.Second).Allowed)
	}
	assert.False(t, limiter.Check("k", 3, time.Second).Allowed)

	clk.Advance(1100 * time.Millisecond)
	res := limiter.Check("k", 3, time.Second)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Count)
}

func TestPeek_DoesNotConsume(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC))
	limiter := NewLimiter(clk)

	require.True(t, limiter.Check("k", 2, time.Second).Allowed)

	for i := 0; i < 10; i++ {
		res := limiter.Peek("k", 2, time.Second)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1, res.Count)
	}

	assert.True(t, limiter.Check("k", 2, time.Second).Allowed)
	assert.False(t, limiter.Check("k", 2, time.Second).Allowed)
}

func TestCheck_DistinctIdentifiersIndependent(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC))
	limiter := NewLimiter(clk)

	require.True(t, limiter.Check("a", 1, time.Second).Allowed)
	assert.False(t, limiter.Check("a", 1, time.Second).Allowed)
	assert.True(t, limiter.Check("b", 1, time.Second).Allowed)
}

func TestCheck_ConcurrentSameIdentifierNoOverAdmission(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC))
	limiter := NewLimiter(clk)

	const limit = 5
	const attempts = 50

	var wg sync.WaitGroup
	allowed := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- limiter.Check("shared", limit, time.Minute).Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	assert.Equal(t, limit, count)
}

func TestSweep_ReclaimsIdleBuckets(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC))
	limiter := NewLimiter(clk)

	limiter.Check("old", 5, time.Second)
	clk.Advance(5 * time.Second)
	limiter.Check("fresh", 5, time.Second)

	limiter.Sweep(time.Second)

	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	_, oldKept := limiter.buckets["old"]
	_, freshKept := limiter.buckets["fresh"]
	assert.False(t, oldKept)
	assert.True(t, freshKept)
}
