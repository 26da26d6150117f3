package flowgate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.jetify.com/typeid"
)

// NewRunID returns a new identifier for a workflow run.
func NewRunID() string {
	id, err := typeid.WithPrefix("run")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Mode is the execution mode of a session.
type Mode string

const (
	// SingleMode runs a one-PromptStep workflow with no navigation: the run
	// completes the first time the rendered result is copied or opened.
	SingleMode Mode = "single"

	// SequentialMode runs a multi-step workflow with explicit Next/Back
	// navigation and an explicit Complete transition.
	SequentialMode Mode = "sequential"
)

// stepNotFoundText is rendered when the cursor references a position with no
// matching step, so one broken workflow definition cannot crash the host.
const stepNotFoundText = "Step not found. This workflow may have been updated; restart to continue."

// SessionOptions configures a new session.
type SessionOptions struct {
	Workflow *Workflow
	Identity Identity
	Gate     *Gate
	Progress ProgressStore
	Notifier CompletionNotifier
	Observer SessionObserver
	Logger   *slog.Logger
	RunID    string

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Session drives a user through one workflow run. It is the only owner of
// the run state: every mutation goes through a transition method, each of
// which consults the quota gate first and mirrors the safe subset of state
// to the progress store after.
//
// Construct one session per workflow view and discard it on unmount.
type Session struct {
	workflow *Workflow
	identity Identity
	gate     *Gate
	progress ProgressStore
	notifier CompletionNotifier
	observer SessionObserver
	logger   *slog.Logger
	runID    string
	now      func() time.Time
	mode     Mode

	mutex    sync.Mutex
	state    *RunState
	notified bool
}

// NewSession creates a new session for a workflow view. If the progress
// store holds a record for this workflow and identity, the cursor and
// completed set are restored from it; field and free-text values are never
// restored, the user re-enters content.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Workflow == nil {
		return nil, fmt.Errorf("workflow is required")
	}
	if opts.Progress == nil {
		opts.Progress = NewNullProgressStore()
	}
	if opts.Notifier == nil {
		opts.Notifier = NewNullNotifier()
	}
	if opts.Observer == nil {
		opts.Observer = &BaseSessionObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.RunID == "" {
		opts.RunID = NewRunID()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	mode := SequentialMode
	if opts.Workflow.SingleMode() {
		mode = SingleMode
	}

	s := &Session{
		workflow: opts.Workflow,
		identity: opts.Identity,
		gate:     opts.Gate,
		progress: opts.Progress,
		notifier: opts.Notifier,
		observer: opts.Observer,
		logger:   opts.Logger.With("run_id", opts.RunID, "workflow", opts.Workflow.Slug()),
		runID:    opts.RunID,
		now:      opts.Now,
		mode:     mode,
		state:    newRunState(),
	}
	s.restoreProgress()
	return s, nil
}

// ID returns the run ID.
func (s *Session) ID() string {
	return s.runID
}

// Mode returns the execution mode.
func (s *Session) Mode() Mode {
	return s.mode
}

// Workflow returns the workflow being run.
func (s *Session) Workflow() *Workflow {
	return s.workflow
}

// Identity returns the identity the session was constructed for.
func (s *Session) Identity() Identity {
	return s.identity
}

// State returns a copy of the current run state.
func (s *Session) State() *RunState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state.Copy()
}

// Cursor returns the current 1-based step position.
func (s *Session) Cursor() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state.Cursor
}

// Terminal reports whether the run has completed.
func (s *Session) Terminal() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state.Terminal
}

// CurrentStep returns the step at the cursor, or ErrStepNotFound when the
// cursor references a position with no matching step.
func (s *Session) CurrentStep() (Step, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	step, ok := s.workflow.Step(s.state.Cursor)
	if !ok {
		return nil, fmt.Errorf("%w: position %d", ErrStepNotFound, s.state.Cursor)
	}
	return step, nil
}

// CanProceed reports whether the gate allows the session to run. The host
// must check it before rendering any step content; when false, nothing but
// the gate modal is shown.
func (s *Session) CanProceed() bool {
	if s.gate == nil {
		return true
	}
	return s.gate.CanProceed()
}

// SetField records a field value for the current step.
func (s *Session) SetField(name, value string) error {
	return s.transition("set_field", func() error {
		step, ok := s.workflow.Step(s.state.Cursor)
		if !ok {
			return fmt.Errorf("%w: position %d", ErrStepNotFound, s.state.Cursor)
		}
		prompt, ok := step.(*PromptStep)
		if !ok {
			return fmt.Errorf("step %d has no fields", s.state.Cursor)
		}
		if !hasField(prompt, name) {
			return fmt.Errorf("unknown field %q on step %d", name, s.state.Cursor)
		}
		values := s.state.FieldValues[s.state.Cursor]
		if values == nil {
			values = map[string]string{}
			s.state.FieldValues[s.state.Cursor] = values
		}
		values[name] = value
		return nil
	})
}

// SetFreeText records the free-text value for the current InputStep.
func (s *Session) SetFreeText(value string) error {
	return s.transition("set_free_text", func() error {
		step, ok := s.workflow.Step(s.state.Cursor)
		if !ok {
			return fmt.Errorf("%w: position %d", ErrStepNotFound, s.state.Cursor)
		}
		if _, ok := step.(*InputStep); !ok {
			return fmt.Errorf("step %d does not capture free text", s.state.Cursor)
		}
		s.state.FreeTextValues[s.state.Cursor] = value
		return nil
	})
}

// Acknowledge records the explicit acknowledgement of the current
// InstructionStep, marking it complete.
func (s *Session) Acknowledge() error {
	return s.transition("acknowledge", func() error {
		step, ok := s.workflow.Step(s.state.Cursor)
		if !ok {
			return fmt.Errorf("%w: position %d", ErrStepNotFound, s.state.Cursor)
		}
		if _, ok := step.(*InstructionStep); !ok {
			return fmt.Errorf("step %d is not an instruction", s.state.Cursor)
		}
		s.state.Completed[s.state.Cursor] = true
		return nil
	})
}

// IsCurrentStepValid reports whether the current step's completion condition
// holds: required prompt fields filled, instruction acknowledged, or
// free-text non-empty, depending on the step kind.
func (s *Session) IsCurrentStepValid() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stepValidLocked(s.state.Cursor)
}

func (s *Session) stepValidLocked(number int) bool {
	step, ok := s.workflow.Step(number)
	if !ok {
		return false
	}
	switch step := step.(type) {
	case *PromptStep:
		values := s.state.FieldValues[number]
		for _, field := range step.Fields {
			if !field.Required {
				continue
			}
			if strings.TrimSpace(values[field.Name]) == "" {
				return false
			}
		}
		return true
	case *InstructionStep:
		return s.state.Completed[number]
	case *InputStep:
		return strings.TrimSpace(s.state.FreeTextValues[number]) != ""
	default:
		return false
	}
}

// Next advances the cursor. It requires the current step to be valid, marks
// it completed, and is a no-op on the last step.
func (s *Session) Next() error {
	return s.transition("next", func() error {
		if s.state.Cursor >= s.workflow.StepCount() {
			return nil
		}
		if !s.stepValidLocked(s.state.Cursor) {
			return fmt.Errorf("%w: step %d", ErrStepInvalid, s.state.Cursor)
		}
		s.state.Completed[s.state.Cursor] = true
		s.state.Cursor++
		return nil
	})
}

// Back retreats the cursor without removing anything from the completed set.
// It is a no-op at the first step.
func (s *Session) Back() error {
	return s.transition("back", func() error {
		if s.state.Cursor > 1 {
			s.state.Cursor--
		}
		return nil
	})
}

// Complete finishes the run. Only reachable from the last step when it is
// valid; marks every step completed, notifies the completion notifier
// exactly once per run, sets the terminal flag, and purges persisted
// progress. A second call after completion is a guarded no-op, not an error.
func (s *Session) Complete(ctx context.Context) error {
	s.mutex.Lock()
	if s.state.Terminal {
		s.mutex.Unlock()
		return nil
	}
	if !s.CanProceed() {
		s.mutex.Unlock()
		return ErrBlocked
	}
	if s.state.Cursor != s.workflow.StepCount() {
		s.mutex.Unlock()
		return fmt.Errorf("complete is only reachable from the last step")
	}
	if !s.stepValidLocked(s.state.Cursor) {
		s.mutex.Unlock()
		return fmt.Errorf("%w: step %d", ErrStepInvalid, s.state.Cursor)
	}
	s.finishLocked()
	s.mutex.Unlock()

	s.notifyOnce(ctx)
	return nil
}

// RecordUse marks a single-mode run as used. The run completes the first
// time the user copies or opens the rendered result; later calls are no-ops
// and trigger no duplicate side effects.
func (s *Session) RecordUse(ctx context.Context) error {
	if s.mode != SingleMode {
		return fmt.Errorf("record use applies to single mode only")
	}
	s.mutex.Lock()
	if s.state.Terminal {
		s.mutex.Unlock()
		return nil
	}
	if !s.CanProceed() {
		s.mutex.Unlock()
		return ErrBlocked
	}
	s.finishLocked()
	s.mutex.Unlock()

	s.notifyOnce(ctx)
	return nil
}

// finishLocked marks every step completed, flips the terminal flag, and
// purges persisted progress. Callers hold the mutex.
func (s *Session) finishLocked() {
	for number := 1; number <= s.workflow.StepCount(); number++ {
		s.state.Completed[number] = true
	}
	s.state.Terminal = true
	if err := s.progress.Delete(s.progressKey()); err != nil {
		s.logger.Warn("failed to purge persisted progress",
			"kind", ClassifyFailure(err).Kind, "error", err)
	}
}

// notifyOnce invokes the completion notifier at most once per run,
// absorbing duplicate user clicks.
func (s *Session) notifyOnce(ctx context.Context) {
	s.mutex.Lock()
	if s.notified {
		s.mutex.Unlock()
		return
	}
	s.notified = true
	stateCopy := s.state.Copy()
	s.mutex.Unlock()

	completedAt := s.now()
	milestones, err := s.notifier.WorkflowCompleted(ctx, CompletionEvent{
		RunID:       s.runID,
		Identity:    s.identity,
		Workflow:    s.workflow,
		SafeValues:  SafeValues(s.workflow, stateCopy),
		CompletedAt: completedAt,
	})
	if err != nil {
		s.logger.Warn("completion notifier failed",
			"kind", ClassifyFailure(err).Kind, "error", err)
	}

	s.logger.Info("workflow run completed", "mode", s.mode, "milestones", len(milestones))
	s.observer.OnStateChange(&StateChangeEvent{
		RunID:        s.runID,
		WorkflowSlug: s.workflow.Slug(),
		Transition:   "complete",
		State:        stateCopy,
	})
	s.observer.OnCompletion(ctx, &CompletionObservation{
		RunID:        s.runID,
		WorkflowSlug: s.workflow.Slug(),
		Identity:     s.identity,
		Milestones:   milestones,
		CompletedAt:  completedAt,
	})
}

// Restart resets the run to its initial state, clears the terminal flag and
// the duplicate-completion guard, and clears persisted progress.
func (s *Session) Restart() error {
	s.mutex.Lock()
	s.state = newRunState()
	s.notified = false
	if err := s.progress.Delete(s.progressKey()); err != nil {
		s.logger.Warn("failed to clear persisted progress",
			"kind", ClassifyFailure(err).Kind, "error", err)
	}
	stateCopy := s.state.Copy()
	s.mutex.Unlock()

	s.observer.OnStateChange(&StateChangeEvent{
		RunID:        s.runID,
		WorkflowSlug: s.workflow.Slug(),
		Transition:   "restart",
		State:        stateCopy,
	})
	return nil
}

// Render returns the rendered text for the current step. PromptStep
// templates are rendered against the full cross-step namespace; instruction
// text is returned as-is; input steps render their captured value. Rendering
// never fails: a cursor with no matching step renders an inert placeholder.
func (s *Session) Render() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	step, ok := s.workflow.Step(s.state.Cursor)
	if !ok {
		return stepNotFoundText
	}
	switch step := step.(type) {
	case *PromptStep:
		return RenderTemplate(step.Template, Namespace(s.workflow, s.state))
	case *InstructionStep:
		return normalizeNewlines(step.Text)
	case *InputStep:
		return s.state.FreeTextValues[s.state.Cursor]
	default:
		return stepNotFoundText
	}
}

// transition runs a mutation under the mutex, enforcing the gate and the
// terminal flag, then mirrors progress and notifies the observer.
func (s *Session) transition(name string, mutate func() error) error {
	if !s.CanProceed() {
		return ErrBlocked
	}
	s.mutex.Lock()
	if s.state.Terminal {
		s.mutex.Unlock()
		return ErrRunTerminal
	}
	if err := mutate(); err != nil {
		s.mutex.Unlock()
		return err
	}
	s.persistLocked()
	stateCopy := s.state.Copy()
	s.mutex.Unlock()

	s.observer.OnStateChange(&StateChangeEvent{
		RunID:        s.runID,
		WorkflowSlug: s.workflow.Slug(),
		Transition:   name,
		State:        stateCopy,
	})
	return nil
}

// persistLocked mirrors the safe subset of run state to the progress store.
// Single-mode runs have no cursor to restore, so nothing is written for
// them. Storage failures are logged and swallowed.
func (s *Session) persistLocked() {
	if s.state.Terminal || s.mode == SingleMode {
		return
	}
	err := s.progress.Save(s.progressKey(), &Progress{
		Cursor:    s.state.Cursor,
		Completed: s.state.CompletedSteps(),
	})
	if err != nil {
		s.logger.Warn("failed to persist progress",
			"kind", ClassifyFailure(err).Kind, "error", err)
	}
}

// restoreProgress loads the persisted cursor and completed set, if any.
func (s *Session) restoreProgress() {
	if s.mode == SingleMode {
		return
	}
	progress, err := s.progress.Load(s.progressKey())
	if err != nil {
		s.logger.Warn("failed to load persisted progress",
			"kind", ClassifyFailure(err).Kind, "error", err)
		return
	}
	if progress == nil {
		return
	}
	// The cursor is restored as stored, even when the workflow definition
	// has since shrunk; rendering then shows the inert step-not-found state
	// and Restart recovers.
	if progress.Cursor >= 1 {
		s.state.Cursor = progress.Cursor
	}
	for _, number := range progress.Completed {
		if number >= 1 && number <= s.workflow.StepCount() {
			s.state.Completed[number] = true
		}
	}
	s.logger.Debug("restored persisted progress",
		"cursor", s.state.Cursor, "completed", len(progress.Completed))
}

// progressKey scopes persisted progress to one workflow and identity.
func (s *Session) progressKey() string {
	id := s.identity.ID
	if id == "" {
		id = string(s.identity.Kind)
	}
	return fmt.Sprintf("%s@%s", s.workflow.Slug(), id)
}

func hasField(step *PromptStep, name string) bool {
	for _, field := range step.Fields {
		if field.Name == name {
			return true
		}
	}
	return false
}
