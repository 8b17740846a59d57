package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lms/internal/core/tenant"
)

const branchKeyPrefix = "lms:branch:"

// RedisBranchCache shares resolved branch metadata between API nodes.
type RedisBranchCache struct {
	client redis.UniversalClient
}

func NewRedisBranchCache(client redis.UniversalClient) *RedisBranchCache {
	return &RedisBranchCache{client: client}
}

func branchKey(branchID string) string {
	return branchKeyPrefix + branchID
}

// GetBranch returns (nil, nil) on a miss.
func (c *RedisBranchCache) GetBranch(ctx context.Context, branchID string) (*tenant.BranchInfo, error) {
	data, err := c.client.Get(ctx, branchKey(branchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get branch: %w", err)
	}
	var b tenant.BranchInfo
	if err := json.Unmarshal(data, &b); err != nil {
		// a stale layout is a miss, the resolver will overwrite it
		return nil, nil
	}
	return &b, nil
}

func (c *RedisBranchCache) SetBranch(ctx context.Context, b *tenant.BranchInfo, ttl time.Duration) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, branchKey(b.ID.String()), data, ttl).Err()
}

func (c *RedisBranchCache) InvalidateBranch(ctx context.Context, branchID string) error {
	return c.client.Del(ctx, branchKey(branchID)).Err()
}

var _ tenant.BranchCache = (*RedisBranchCache)(nil)
