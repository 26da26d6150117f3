package flowgate

import (
	"context"
	"log/slog"
	"time"
)

// CompletionEvent describes one completed workflow run.
type CompletionEvent struct {
	RunID       string
	Identity    Identity
	Workflow    *Workflow
	SafeValues  map[string]string
	CompletedAt time.Time
}

// CompletionNotifier is the terminal transition out of the step interpreter:
// it reports a completed run and surfaces any newly earned milestones.
type CompletionNotifier interface {
	WorkflowCompleted(ctx context.Context, event CompletionEvent) ([]Milestone, error)
}

// AnonymousCounter is the subset of the anonymous usage counter the notifier
// needs. Satisfied by counter.Counter.
type AnonymousCounter interface {
	Increment() int
}

// NotifierOptions configures a Notifier.
type NotifierOptions struct {
	Usage         UsageStore
	Stats         StatsStore
	Counter       AnonymousCounter
	CompletionLog CompletionLog
	Logger        *slog.Logger
}

// Notifier reports workflow completions. For a registered identity it records
// a usage event and recomputes milestone state through the external
// collaborators; for an anonymous identity it increments the client-side
// counter instead. It is the sole caller of the counter's Increment, which is
// what bounds the count to one increment per completed run.
//
// Collaborator failures are logged and swallowed: by the time the notifier
// runs, the user-visible contract ("your prompt is ready") has already been
// fulfilled locally, so a failed usage insert must not roll anything back.
type Notifier struct {
	usage         UsageStore
	stats         StatsStore
	counter       AnonymousCounter
	completionLog CompletionLog
	logger        *slog.Logger
}

// NewNotifier creates a new Notifier.
func NewNotifier(opts NotifierOptions) *Notifier {
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.CompletionLog == nil {
		opts.CompletionLog = NewNullCompletionLog()
	}
	return &Notifier{
		usage:         opts.Usage,
		stats:         opts.Stats,
		counter:       opts.Counter,
		completionLog: opts.CompletionLog,
		logger:        opts.Logger,
	}
}

// WorkflowCompleted reports the completed run and returns any newly crossed
// milestones. It never returns an error for collaborator failures; the error
// return exists for implementations with stricter contracts.
func (n *Notifier) WorkflowCompleted(ctx context.Context, event CompletionEvent) ([]Milestone, error) {
	logger := n.logger.With("run_id", event.RunID, "workflow", event.Workflow.Slug())

	if err := n.completionLog.LogCompletion(ctx, &CompletionLogEntry{
		RunID:        event.RunID,
		WorkflowSlug: event.Workflow.Slug(),
		IdentityKind: event.Identity.Kind,
		SafeValues:   event.SafeValues,
		CompletedAt:  event.CompletedAt,
	}); err != nil {
		logger.Warn("failed to write completion log", "error", err)
	}

	if !event.Identity.Registered() {
		if n.counter != nil {
			count := n.counter.Increment()
			logger.Debug("anonymous usage incremented", "count", count)
		}
		return nil, nil
	}

	if n.usage != nil {
		err := n.usage.RecordUsage(ctx, event.Identity.ID, event.Workflow.Slug(), event.SafeValues, event.CompletedAt)
		if err != nil {
			logger.Warn("failed to record usage event",
				"kind", ClassifyFailure(err).Kind, "error", err)
		}
	}

	if n.stats == nil {
		return nil, nil
	}
	if err := n.stats.IncrementTotal(ctx, event.Identity.ID); err != nil {
		logger.Warn("failed to increment usage total",
			"kind", ClassifyFailure(err).Kind, "error", err)
		return nil, nil
	}
	milestones, err := n.stats.RecomputeMilestones(ctx, event.Identity.ID)
	if err != nil {
		logger.Warn("failed to recompute milestones",
			"kind", ClassifyFailure(err).Kind, "error", err)
		return nil, nil
	}
	if len(milestones) > 0 {
		logger.Info("milestones earned", "count", len(milestones))
	}
	return milestones, nil
}

// SafeValues extracts the values of selectable fields from a run. Free-text
// and textarea content is excluded: only values chosen from a fixed option
// list may leave the device.
func SafeValues(wf *Workflow, state *RunState) map[string]string {
	safe := map[string]string{}
	for number := 1; number <= wf.StepCount(); number++ {
		step, ok := wf.Step(number)
		if !ok {
			continue
		}
		prompt, ok := step.(*PromptStep)
		if !ok {
			continue
		}
		values := state.FieldValues[number]
		for _, field := range prompt.Fields {
			if !field.Selectable() {
				continue
			}
			if value, ok := values[field.Name]; ok && value != "" {
				safe[field.Name] = value
			}
		}
	}
	return safe
}

// NullNotifier is a no-op implementation
type NullNotifier struct{}

func NewNullNotifier() *NullNotifier {
	return &NullNotifier{}
}

func (n *NullNotifier) WorkflowCompleted(ctx context.Context, event CompletionEvent) ([]Milestone, error) {
	return nil, nil
}
