package flowgate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	count int
}

func (c *fakeCounter) Increment() int {
	c.count++
	return c.count
}

type fakeUsageStore struct {
	recorded   []map[string]string
	recordErr  error
	countErr   error
	monthCount int
}

func (s *fakeUsageStore) CountThisMonth(ctx context.Context, identityID string) (int, error) {
	return s.monthCount, s.countErr
}

func (s *fakeUsageStore) RecordUsage(ctx context.Context, identityID, workflowID string, safeValues map[string]string, at time.Time) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.recorded = append(s.recorded, safeValues)
	return nil
}

type fakeStatsStore struct {
	total        int
	incrementErr error
	milestones   []Milestone
	recomputeErr error
}

func (s *fakeStatsStore) IncrementTotal(ctx context.Context, identityID string) error {
	if s.incrementErr != nil {
		return s.incrementErr
	}
	s.total++
	return nil
}

func (s *fakeStatsStore) RecomputeMilestones(ctx context.Context, identityID string) ([]Milestone, error) {
	return s.milestones, s.recomputeErr
}

func TestSafeValues(t *testing.T) {
	wf, err := New(Options{
		Name: "Campaign",
		Slug: "campaign",
		Steps: []Step{
			&PromptStep{
				Fields: []*Field{
					{Name: "channel", Type: FieldSelect, Options: []string{"email", "social"}},
					{Name: "headline", Type: FieldText},
					{Name: "notes", Type: FieldTextarea},
				},
				Template: "{{channel}} {{headline}} {{notes}}",
			},
			&InputStep{Name: "draft"},
		},
	})
	require.NoError(t, err)

	state := newRunState()
	state.FieldValues[1] = map[string]string{
		"channel":  "email",
		"headline": "my secret launch headline",
		"notes":    "internal strategy notes",
	}
	state.FreeTextValues[2] = "pasted model output"

	safe := SafeValues(wf, state)
	require.Equal(t, map[string]string{"channel": "email"}, safe)
}

func TestSafeValuesSkipsEmptySelections(t *testing.T) {
	wf := sequentialWorkflow(t)
	state := newRunState()
	state.FieldValues[2] = map[string]string{"topic": "cats", "audience": ""}

	require.Empty(t, SafeValues(wf, state))
}

func TestNotifierAnonymousIncrementsCounter(t *testing.T) {
	counter := &fakeCounter{}
	usage := &fakeUsageStore{}
	notifier := NewNotifier(NotifierOptions{Usage: usage, Counter: counter})

	milestones, err := notifier.WorkflowCompleted(context.Background(), CompletionEvent{
		RunID:       NewRunID(),
		Identity:    Identity{Kind: IdentityAnonymous},
		Workflow:    sequentialWorkflow(t),
		CompletedAt: time.Now(),
	})
	require.NoError(t, err)
	require.Empty(t, milestones)
	require.Equal(t, 1, counter.count)

	// The anonymous path never touches the external usage store.
	require.Empty(t, usage.recorded)
}

func TestNotifierRegisteredRecordsUsage(t *testing.T) {
	usage := &fakeUsageStore{}
	stats := &fakeStatsStore{milestones: []Milestone{{Threshold: 1, Name: "First Workflow"}}}
	counter := &fakeCounter{}
	notifier := NewNotifier(NotifierOptions{Usage: usage, Stats: stats, Counter: counter})

	milestones, err := notifier.WorkflowCompleted(context.Background(), CompletionEvent{
		RunID:       NewRunID(),
		Identity:    Identity{Kind: IdentityRegisteredFree, ID: "user_1"},
		Workflow:    sequentialWorkflow(t),
		SafeValues:  map[string]string{"audience": "devs"},
		CompletedAt: time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, milestones, 1)
	require.Equal(t, "First Workflow", milestones[0].Name)
	require.Equal(t, 1, stats.total)
	require.Equal(t, []map[string]string{{"audience": "devs"}}, usage.recorded)

	// The client-side counter belongs to anonymous visitors only.
	require.Equal(t, 0, counter.count)
}

func TestNotifierSwallowsCollaboratorFailures(t *testing.T) {
	event := CompletionEvent{
		RunID:       NewRunID(),
		Identity:    Identity{Kind: IdentityRegisteredFree, ID: "user_1"},
		Workflow:    sequentialWorkflow(t),
		CompletedAt: time.Now(),
	}

	t.Run("record usage fails", func(t *testing.T) {
		usage := &fakeUsageStore{recordErr: errors.New("connection refused")}
		stats := &fakeStatsStore{}
		notifier := NewNotifier(NotifierOptions{Usage: usage, Stats: stats})

		milestones, err := notifier.WorkflowCompleted(context.Background(), event)
		require.NoError(t, err)
		require.Empty(t, milestones)

		// Stats are still updated; the failures are independent.
		require.Equal(t, 1, stats.total)
	})

	t.Run("increment total fails", func(t *testing.T) {
		stats := &fakeStatsStore{incrementErr: errors.New("connection refused")}
		notifier := NewNotifier(NotifierOptions{Usage: &fakeUsageStore{}, Stats: stats})

		milestones, err := notifier.WorkflowCompleted(context.Background(), event)
		require.NoError(t, err)
		require.Empty(t, milestones)
	})

	t.Run("recompute milestones fails", func(t *testing.T) {
		stats := &fakeStatsStore{recomputeErr: errors.New("connection refused")}
		notifier := NewNotifier(NotifierOptions{Usage: &fakeUsageStore{}, Stats: stats})

		milestones, err := notifier.WorkflowCompleted(context.Background(), event)
		require.NoError(t, err)
		require.Empty(t, milestones)
	})
}

func TestNotifierWritesCompletionLog(t *testing.T) {
	log := NewFileCompletionLog(t.TempDir())
	notifier := NewNotifier(NotifierOptions{CompletionLog: log})
	completedAt := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	_, err := notifier.WorkflowCompleted(context.Background(), CompletionEvent{
		RunID:       "run_01h455vb4pex5vsknk084sn02q",
		Identity:    Identity{Kind: IdentityAnonymous},
		Workflow:    sequentialWorkflow(t),
		SafeValues:  map[string]string{"audience": "devs"},
		CompletedAt: completedAt,
	})
	require.NoError(t, err)

	entries, err := log.History(context.Background(), "outline")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "run_01h455vb4pex5vsknk084sn02q", entries[0].RunID)
	require.Equal(t, IdentityAnonymous, entries[0].IdentityKind)
	require.Equal(t, map[string]string{"audience": "devs"}, entries[0].SafeValues)
	require.True(t, entries[0].CompletedAt.Equal(completedAt))
}
