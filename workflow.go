package flowgate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Options are used to configure a workflow.
type Options struct {
	Name        string
	Slug        string
	Description string
	Steps       []Step
}

// Workflow defines an ordered list of heterogeneous steps a user is walked
// through. Immutable once constructed.
type Workflow struct {
	name        string
	slug        string
	description string
	steps       []Step
}

// New returns a new Workflow configured with the given options.
func New(opts Options) (*Workflow, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("workflow name required")
	}
	if opts.Slug == "" {
		return nil, fmt.Errorf("workflow slug required")
	}
	if len(opts.Steps) == 0 {
		return nil, fmt.Errorf("steps required")
	}
	for i, step := range opts.Steps {
		if err := validateStep(i+1, step); err != nil {
			return nil, fmt.Errorf("workflow validation failed: %w", err)
		}
	}
	return &Workflow{
		name:        opts.Name,
		slug:        opts.Slug,
		description: opts.Description,
		steps:       opts.Steps,
	}, nil
}

// Name returns the workflow name
func (w *Workflow) Name() string {
	return w.name
}

// Slug returns the workflow slug
func (w *Workflow) Slug() string {
	return w.slug
}

// Description returns the workflow description
func (w *Workflow) Description() string {
	return w.description
}

// Steps returns the workflow steps
func (w *Workflow) Steps() []Step {
	return w.steps
}

// StepCount returns the number of steps
func (w *Workflow) StepCount() int {
	return len(w.steps)
}

// Step returns the step at the given 1-based position.
func (w *Workflow) Step(number int) (Step, bool) {
	if number < 1 || number > len(w.steps) {
		return nil, false
	}
	return w.steps[number-1], true
}

// SingleMode reports whether the workflow runs without navigation: exactly
// one step, and that step is a PromptStep.
func (w *Workflow) SingleMode() bool {
	if len(w.steps) != 1 {
		return false
	}
	_, ok := w.steps[0].(*PromptStep)
	return ok
}

// InputName returns the template variable name an InputStep at the given
// position binds to: its declared name, or the positional fallback.
func InputName(step *InputStep, number int) string {
	if step.Name != "" {
		return step.Name
	}
	return fmt.Sprintf("input_%d", number)
}

// workflowSpec is the YAML shape of a workflow definition.
type workflowSpec struct {
	Name        string       `yaml:"name"`
	Slug        string       `yaml:"slug"`
	Description string       `yaml:"description"`
	Steps       []yaml.Node `yaml:"steps"`
}

// LoadFile loads a workflow from a YAML file
func LoadFile(path string) (*Workflow, error) {
	yamlData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return LoadString(string(yamlData))
}

// LoadString loads a workflow from a YAML string
func LoadString(data string) (*Workflow, error) {
	var spec workflowSpec
	if err := yaml.Unmarshal([]byte(data), &spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow definition: %w", err)
	}
	steps, err := decodeSteps(spec.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow steps: %w", err)
	}
	return New(Options{
		Name:        spec.Name,
		Slug:        spec.Slug,
		Description: spec.Description,
		Steps:       steps,
	})
}
