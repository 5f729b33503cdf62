package ratelimit_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quizhive/quizsync/internal/ratelimit"
	"github.com/quizhive/quizsync/internal/store/storetest"
)

func TestAllowWithinBucket(t *testing.T) {
	limiter := ratelimit.New(storetest.NewFake())
	ctx := context.Background()

	for i := 1; i <= ratelimit.BucketSize; i++ {
		ok, reason := limiter.Allow(ctx, "user-1")
		assert.True(t, ok, fmt.Sprintf("event %d should pass", i))
		assert.Empty(t, reason)
	}

	ok, reason := limiter.Allow(ctx, "user-1")
	assert.False(t, ok, "event past the bucket must be rejected")
	assert.Equal(t, "Rate limit exceeded", reason)
}

func TestLimitIsPerIdentity(t *testing.T) {
	limiter := ratelimit.New(storetest.NewFake())
	ctx := context.Background()

	for i := 0; i < ratelimit.BucketSize; i++ {
		ok, _ := limiter.Allow(ctx, "user-1")
		assert.True(t, ok)
	}
	ok, _ := limiter.Allow(ctx, "user-2")
	assert.True(t, ok, "a different identity has its own window")
}

func TestBurstTriggersBan(t *testing.T) {
	limiter := ratelimit.New(storetest.NewFake())
	ctx := context.Background()

	// Push past the burst limit; rejections along the way are expected.
	var reason string
	for i := 0; i < 31; i++ {
		_, reason = limiter.Allow(ctx, "abuser")
	}
	assert.Equal(t, "Rate limit exceeded - temporary ban applied", reason)

	// The ban now rejects before any counter is touched.
	ok, reason := limiter.Allow(ctx, "abuser")
	assert.False(t, ok)
	assert.Equal(t, "You have been temporarily banned due to rate limit violations", reason)
}

func TestFailOpenOnStoreOutage(t *testing.T) {
	fake := storetest.NewFake()
	fake.Err = errors.New("connection refused")
	limiter := ratelimit.New(fake)

	for i := 0; i < 50; i++ {
		ok, reason := limiter.Allow(context.Background(), "user-1")
		assert.True(t, ok, "limiter must fail open when the store is down")
		assert.Empty(t, reason)
	}
}
