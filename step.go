package flowgate

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldType enumerates the input control kinds a prompt field can use.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldTextarea    FieldType = "textarea"
	FieldSelect      FieldType = "select"
	FieldMultiselect FieldType = "multiselect"
)

// Field describes one input of a PromptStep. Names are unique within their
// step and double as template variable names.
type Field struct {
	Name     string    `json:"name" yaml:"name"`
	Label    string    `json:"label,omitempty" yaml:"label,omitempty"`
	Type     FieldType `json:"type,omitempty" yaml:"type,omitempty"`
	Required bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Options  []string  `json:"options,omitempty" yaml:"options,omitempty"`
}

// Selectable reports whether the field's value comes from a fixed option
// list. Only selectable values are ever reported off-device (see Notifier).
func (f *Field) Selectable() bool {
	return f.Type == FieldSelect || f.Type == FieldMultiselect
}

// Step is one entry in a workflow's ordered step list. It is a closed sum:
// the only implementations are PromptStep, InstructionStep, and InputStep,
// and step-kind dispatch is done with exhaustive type switches.
type Step interface {
	step()
}

// PromptStep collects field values and renders the shared prompt template.
// A workflow consisting of exactly one PromptStep runs in single mode.
type PromptStep struct {
	Title    string   `json:"title,omitempty" yaml:"title,omitempty"`
	Fields   []*Field `json:"fields,omitempty" yaml:"fields,omitempty"`
	Template string   `json:"template" yaml:"template"`
}

// InstructionStep shows authored guidance and requires an explicit
// acknowledgement before the run can advance past it.
type InstructionStep struct {
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	Text  string `json:"text,omitempty" yaml:"text,omitempty"`
}

// InputStep captures a single free-text value and binds it into the template
// variable namespace under Name, or a positional fallback when Name is empty.
type InputStep struct {
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

func (*PromptStep) step()      {}
func (*InstructionStep) step() {}
func (*InputStep) step()       {}

// StepKind returns the wire name for a step's concrete type.
func StepKind(s Step) string {
	switch s.(type) {
	case *PromptStep:
		return "prompt"
	case *InstructionStep:
		return "instruction"
	case *InputStep:
		return "input"
	default:
		return "unknown"
	}
}

// stepSpec is the YAML shape of a step; the "type" tag selects the concrete
// step type.
type stepSpec struct {
	Type     string   `yaml:"type"`
	Title    string   `yaml:"title"`
	Text     string   `yaml:"text"`
	Name     string   `yaml:"name"`
	Fields   []*Field `yaml:"fields"`
	Template string   `yaml:"template"`
}

func (s *stepSpec) toStep() (Step, error) {
	switch strings.ToLower(s.Type) {
	case "prompt":
		return &PromptStep{Title: s.Title, Fields: s.Fields, Template: s.Template}, nil
	case "instruction":
		return &InstructionStep{Title: s.Title, Text: s.Text}, nil
	case "input":
		return &InputStep{Title: s.Title, Name: s.Name}, nil
	default:
		return nil, fmt.Errorf("unknown step type %q", s.Type)
	}
}

func decodeSteps(nodes []yaml.Node) ([]Step, error) {
	steps := make([]Step, 0, len(nodes))
	for i, node := range nodes {
		var spec stepSpec
		if err := node.Decode(&spec); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		step, err := spec.toStep()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func validateStep(index int, s Step) error {
	switch step := s.(type) {
	case *PromptStep:
		if step.Template == "" {
			return fmt.Errorf("step %d: prompt template required", index)
		}
		seen := make(map[string]bool, len(step.Fields))
		for _, field := range step.Fields {
			if field.Name == "" {
				return fmt.Errorf("step %d: field name required", index)
			}
			if seen[field.Name] {
				return fmt.Errorf("step %d: duplicate field %q", index, field.Name)
			}
			seen[field.Name] = true
			if field.Selectable() && len(field.Options) == 0 {
				return fmt.Errorf("step %d: field %q needs options", index, field.Name)
			}
		}
		return nil
	case *InstructionStep, *InputStep:
		return nil
	default:
		return fmt.Errorf("step %d: unknown step type %T", index, s)
	}
}
