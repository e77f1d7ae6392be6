package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/classifyhub/subject-queue/internal/domain"
	"github.com/classifyhub/subject-queue/internal/ratelimiter"
)

func TestTierLimiters_Unlimited(t *testing.T) {
	l := ratelimiter.New(0)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		assert.NoError(t, l.Wait(ctx, domain.TierUser))
	}
}

func TestTierLimiters_TiersAreIndependent(t *testing.T) {
	l := ratelimiter.New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.NoError(t, l.Wait(ctx, domain.TierUser))
	assert.NoError(t, l.Wait(ctx, domain.TierShared), "shared tier has its own bucket")
	assert.Error(t, l.Wait(ctx, domain.TierUser), "user bucket is empty until the next second")
}
