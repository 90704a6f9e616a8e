// Copyright 2025 PromptGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"promptgate/platform/shared/logger"
)

// RateLimiter is a Redis-backed sliding-window limiter keyed by app key.
// It fails open: Redis outages never reject traffic.
type RateLimiter struct {
	client         *redis.Client
	limitPerMinute int
	log            *logger.Logger
}

// NewRateLimiter connects to Redis and returns a limiter. An error here
// means the URL was unparseable or Redis unreachable at boot.
func NewRateLimiter(redisURL string, limitPerMinute int) (*RateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RateLimiter{
		client:         client,
		limitPerMinute: limitPerMinute,
		log:            logger.New("rate-limiter"),
	}, nil
}

// Allow records the request and reports whether appKey is within its
// per-minute budget. retryAfter is the suggested client backoff when the
// limit is exceeded.
func (rl *RateLimiter) Allow(ctx context.Context, appKey string) (allowed bool, retryAfter time.Duration) {
	now := time.Now()
	key := fmt.Sprintf("ratelimit:%s", appKey)

	// Pipeline keeps trim+count+add atomic enough for a sliding window
	pipe := rl.client.Pipeline()
	minScore := now.Add(-time.Minute).Unix()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", minScore))
	pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.Unix()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, key, 2*time.Minute)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		// Fail open on Redis errors
		rl.log.Warn("", "", "rate limit check failed, failing open", map[string]interface{}{
			"app_key": appKey,
			"error":   err.Error(),
		})
		return true, 0
	}

	count := cmds[1].(*redis.IntCmd).Val()
	if count >= int64(rl.limitPerMinute) {
		return false, time.Minute
	}
	return true, 0
}

// Close releases the Redis connection.
func (rl *RateLimiter) Close() error {
	return rl.client.Close()
}
