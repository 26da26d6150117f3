package flowgate

import (
	"context"
	"time"
)

// SessionObserver receives notifications about session state changes. Host
// UIs use it to re-render; it must not mutate the session from within a
// callback.
type SessionObserver interface {
	// OnStateChange fires after every successful transition with a copy of
	// the new run state.
	OnStateChange(event *StateChangeEvent)

	// OnCompletion fires exactly once per run, after the completion
	// notifier has been invoked.
	OnCompletion(ctx context.Context, event *CompletionObservation)
}

// StateChangeEvent provides context for a session state change.
type StateChangeEvent struct {
	RunID        string
	WorkflowSlug string
	Transition   string
	State        *RunState
}

// CompletionObservation provides context for a completed run, including any
// milestones the notifier surfaced.
type CompletionObservation struct {
	RunID        string
	WorkflowSlug string
	Identity     Identity
	Milestones   []Milestone
	CompletedAt  time.Time
}

// BaseSessionObserver provides a default implementation that does nothing
type BaseSessionObserver struct{}

func (o *BaseSessionObserver) OnStateChange(event *StateChangeEvent) {
	// noop
}

func (o *BaseSessionObserver) OnCompletion(ctx context.Context, event *CompletionObservation) {
	// noop
}
