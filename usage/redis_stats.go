package usage

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/promptlane/flowgate"
)

// DefaultMilestones are the lifetime-completion thresholds used when none
// are configured.
var DefaultMilestones = []int{1, 5, 10, 25, 50, 100}

// RedisStats implements flowgate.StatsStore on Redis: a per-identity total
// counter plus a set of already-earned milestone thresholds.
type RedisStats struct {
	client     *redis.Client
	milestones []int
}

// NewRedisStats returns a stats store over the given client. A nil or empty
// thresholds slice falls back to DefaultMilestones.
func NewRedisStats(client *redis.Client, thresholds []int) *RedisStats {
	if len(thresholds) == 0 {
		thresholds = DefaultMilestones
	}
	sorted := append([]int(nil), thresholds...)
	sort.Ints(sorted)
	return &RedisStats{client: client, milestones: sorted}
}

func (s *RedisStats) totalKey(identityID string) string {
	return fmt.Sprintf("stats:%s:total", identityID)
}

func (s *RedisStats) earnedKey(identityID string) string {
	return fmt.Sprintf("stats:%s:milestones", identityID)
}

// IncrementTotal adds one to the identity's lifetime completion total.
func (s *RedisStats) IncrementTotal(ctx context.Context, identityID string) error {
	if err := s.client.Incr(ctx, s.totalKey(identityID)).Err(); err != nil {
		return fmt.Errorf("failed to increment total: %w", err)
	}
	return nil
}

// RecomputeMilestones compares the stored total against the configured
// thresholds and returns milestones crossed since the last computation.
// Newly crossed thresholds are remembered so they surface once.
func (s *RedisStats) RecomputeMilestones(ctx context.Context, identityID string) ([]flowgate.Milestone, error) {
	total, err := s.client.Get(ctx, s.totalKey(identityID)).Int()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read total: %w", err)
	}

	earnedKey := s.earnedKey(identityID)
	var earned []flowgate.Milestone
	for _, threshold := range s.milestones {
		if total < threshold {
			break
		}
		added, err := s.client.SAdd(ctx, earnedKey, strconv.Itoa(threshold)).Result()
		if err != nil {
			return earned, fmt.Errorf("failed to record milestone: %w", err)
		}
		if added > 0 {
			earned = append(earned, milestoneFor(threshold))
		}
	}
	return earned, nil
}

func milestoneFor(threshold int) flowgate.Milestone {
	return flowgate.Milestone{
		Threshold: threshold,
		Name:      fmt.Sprintf("%d workflows completed", threshold),
	}
}
