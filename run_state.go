package flowgate

import "sort"

// RunState is the transient state of one workflow run. It is owned
// exclusively by a Session and mutated only through the Session's transition
// methods. Field and free-text values never leave process memory; the durable
// projection is Progress.
type RunState struct {
	Cursor         int                       `json:"cursor"`
	Completed      map[int]bool              `json:"completed"`
	FieldValues    map[int]map[string]string `json:"field_values"`
	FreeTextValues map[int]string            `json:"free_text_values"`
	Terminal       bool                      `json:"terminal"`
}

// newRunState returns the initial state: cursor at the first step, nothing
// completed, no values.
func newRunState() *RunState {
	return &RunState{
		Cursor:         1,
		Completed:      map[int]bool{},
		FieldValues:    map[int]map[string]string{},
		FreeTextValues: map[int]string{},
	}
}

// Copy returns a deep copy of the run state.
func (s *RunState) Copy() *RunState {
	c := &RunState{
		Cursor:         s.Cursor,
		Completed:      make(map[int]bool, len(s.Completed)),
		FieldValues:    make(map[int]map[string]string, len(s.FieldValues)),
		FreeTextValues: make(map[int]string, len(s.FreeTextValues)),
		Terminal:       s.Terminal,
	}
	for k, v := range s.Completed {
		c.Completed[k] = v
	}
	for step, values := range s.FieldValues {
		inner := make(map[string]string, len(values))
		for name, value := range values {
			inner[name] = value
		}
		c.FieldValues[step] = inner
	}
	for k, v := range s.FreeTextValues {
		c.FreeTextValues[k] = v
	}
	return c
}

// CompletedSteps returns the completed step numbers in ascending order.
func (s *RunState) CompletedSteps() []int {
	steps := make([]int, 0, len(s.Completed))
	for number, done := range s.Completed {
		if done {
			steps = append(steps, number)
		}
	}
	sort.Ints(steps)
	return steps
}
