package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/classifyhub/subject-queue/internal/domain"
)

// DefaultRedisList is the list key refill jobs are pushed to.
const DefaultRedisList = "subjectqueue:refills"

// Redis dispatches refills onto a Redis list so any number of worker
// processes can consume them. Jobs are LPUSHed and BRPOPed, giving FIFO
// order per tier list.
type Redis struct {
	client redis.Cmdable
	list   string
	onSent Hook
}

// NewRedis returns a Redis dispatcher. The caller owns the client lifecycle.
func NewRedis(client redis.Cmdable, list string, onSent Hook) *Redis {
	if list == "" {
		list = DefaultRedisList
	}
	if onSent == nil {
		onSent = noopHook
	}
	return &Redis{client: client, list: list, onSent: onSent}
}

// tierList returns the list key for a tier: <list>:<tier>.
func (r *Redis) tierList(tier domain.RefillTier) string {
	return r.list + ":" + string(tier)
}

func (r *Redis) Dispatch(ctx context.Context, key domain.QueueKey) error {
	payload, err := json.Marshal(NewJob(key))
	if err != nil {
		return fmt.Errorf("marshal refill job: %w", err)
	}
	if err := r.client.LPush(ctx, r.tierList(key.Tier()), payload).Err(); err != nil {
		return fmt.Errorf("push refill job %s: %w", key, err)
	}
	r.onSent(key.Tier())
	return nil
}

// Receive pops the next job, preferring the user tier. It blocks for up to
// timeout and returns (nil, nil) when nothing arrived.
func (r *Redis) Receive(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := r.client.BRPop(ctx, timeout, r.tierList(domain.TierUser), r.tierList(domain.TierShared)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop refill job: %w", err)
	}
	// BRPOP replies with [list, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("pop refill job: unexpected reply length %d", len(res))
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode refill job: %w", err)
	}
	return &job, nil
}

// Depths reports the length of each tier list.
func (r *Redis) Depths(ctx context.Context) (user, shared int, err error) {
	u, err := r.client.LLen(ctx, r.tierList(domain.TierUser)).Result()
	if err != nil {
		return 0, 0, err
	}
	s, err := r.client.LLen(ctx, r.tierList(domain.TierShared)).Result()
	if err != nil {
		return 0, 0, err
	}
	return int(u), int(s), nil
}

var (
	_ Dispatcher    = (*Redis)(nil)
	_ DepthReporter = (*Redis)(nil)
)
