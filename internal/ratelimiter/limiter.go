package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/classifyhub/subject-queue/internal/domain"
)

// TierLimiters holds one token bucket per refill tier so a flood of
// per-user refills cannot starve the shared queues of database time.
// Burst equals the rate: no saved-up capacity above the per-second maximum.
type TierLimiters struct {
	limiters map[domain.RefillTier]*rate.Limiter
}

// New creates TierLimiters allowing ratePerSec refills per second per tier.
// A non-positive rate disables limiting.
func New(ratePerSec int) *TierLimiters {
	r := rate.Limit(ratePerSec)
	burst := ratePerSec
	if ratePerSec <= 0 {
		r, burst = rate.Inf, 0
	}
	return &TierLimiters{
		limiters: map[domain.RefillTier]*rate.Limiter{
			domain.TierUser:   rate.NewLimiter(r, burst),
			domain.TierShared: rate.NewLimiter(r, burst),
		},
	}
}

// Wait blocks until the tier's limiter grants a token. It returns a non-nil
// error only if ctx is cancelled while waiting.
func (tl *TierLimiters) Wait(ctx context.Context, tier domain.RefillTier) error {
	l, ok := tl.limiters[tier]
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}
