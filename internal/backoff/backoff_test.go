package backoff_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/classifyhub/subject-queue/internal/backoff"
)

func TestExponentialWithJitter_StaysWithinCap(t *testing.T) {
	s := backoff.NewExponentialWithJitter(10*time.Millisecond, 40*time.Millisecond)
	for attempt := 1; attempt <= 10; attempt++ {
		d := s.Delay(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 40*time.Millisecond)
	}
}

func TestConstant(t *testing.T) {
	s := backoff.NewConstant(5 * time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, s.Delay(1))
	assert.Equal(t, 5*time.Millisecond, s.Delay(9))
}

func TestSleep_ReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := backoff.Sleep(ctx, backoff.NewConstant(time.Minute), 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleep_ZeroDelay(t *testing.T) {
	assert.NoError(t, backoff.Sleep(context.Background(), backoff.NewConstant(0), 1))
}
