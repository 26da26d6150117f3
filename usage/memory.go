package usage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/promptlane/flowgate"
)

type memoryEvent struct {
	workflowID string
	safeValues map[string]string
	createdAt  time.Time
}

// MemoryStore is an in-memory implementation of both flowgate.UsageStore
// and flowgate.StatsStore, for tests and the CLI.
type MemoryStore struct {
	mutex      sync.Mutex
	events     map[string][]memoryEvent
	totals     map[string]int
	earned     map[string]map[int]bool
	milestones []int
	now        func() time.Time
}

// NewMemoryStore returns an empty store. A nil or empty thresholds slice
// falls back to DefaultMilestones.
func NewMemoryStore(thresholds []int) *MemoryStore {
	if len(thresholds) == 0 {
		thresholds = DefaultMilestones
	}
	sorted := append([]int(nil), thresholds...)
	sort.Ints(sorted)
	return &MemoryStore{
		events:     map[string][]memoryEvent{},
		totals:     map[string]int{},
		earned:     map[string]map[int]bool{},
		milestones: sorted,
		now:        time.Now,
	}
}

// SetClock overrides the clock used for month boundaries, for tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.now = now
}

func (s *MemoryStore) CountThisMonth(ctx context.Context, identityID string) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	count := 0
	for _, event := range s.events[identityID] {
		if !event.createdAt.Before(monthStart) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) RecordUsage(ctx context.Context, identityID, workflowID string, safeValues map[string]string, at time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := make(map[string]string, len(safeValues))
	for k, v := range safeValues {
		copied[k] = v
	}
	s.events[identityID] = append(s.events[identityID], memoryEvent{
		workflowID: workflowID,
		safeValues: copied,
		createdAt:  at.UTC(),
	})
	return nil
}

func (s *MemoryStore) IncrementTotal(ctx context.Context, identityID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.totals[identityID]++
	return nil
}

func (s *MemoryStore) RecomputeMilestones(ctx context.Context, identityID string) ([]flowgate.Milestone, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	total := s.totals[identityID]
	earned := s.earned[identityID]
	if earned == nil {
		earned = map[int]bool{}
		s.earned[identityID] = earned
	}
	var fresh []flowgate.Milestone
	for _, threshold := range s.milestones {
		if total < threshold {
			break
		}
		if !earned[threshold] {
			earned[threshold] = true
			fresh = append(fresh, milestoneFor(threshold))
		}
	}
	return fresh, nil
}

// Events returns the recorded safe-value maps for an identity, for
// assertions in tests.
func (s *MemoryStore) Events(identityID string) []map[string]string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var out []map[string]string
	for _, event := range s.events[identityID] {
		out = append(out, event.safeValues)
	}
	return out
}
