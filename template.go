package flowgate

import (
	"regexp"
	"strings"
)

// templatePattern matches {{name}} placeholders, tolerating surrounding
// whitespace inside the braces.
var templatePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// RenderTemplate substitutes every {{name}} occurrence in raw using the given
// namespace. Escaped newline sequences are normalized to real line breaks
// first. A placeholder with no matching value renders as the empty string,
// never as the literal token; templates are authored content and may
// intentionally reference optional fields, so an unresolved variable is not
// an error. Rendering never fails.
func RenderTemplate(raw string, namespace map[string]string) string {
	text := normalizeNewlines(raw)
	return templatePattern.ReplaceAllStringFunc(text, func(token string) string {
		name := templatePattern.FindStringSubmatch(token)[1]
		return namespace[name]
	})
}

// normalizeNewlines converts escaped newline sequences that survive authored
// content round-trips into real line breaks.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\\r\\n", "\n")
	return strings.ReplaceAll(s, "\\n", "\n")
}

// Namespace builds the template variable namespace for a run: field values
// from every step are flattened into one name → value map (which is what
// lets a later step's template reference an earlier step's field), then
// free-text values are overlaid under each InputStep's declared name or its
// positional fallback.
func Namespace(wf *Workflow, state *RunState) map[string]string {
	ns := make(map[string]string)
	for number := 1; number <= wf.StepCount(); number++ {
		for name, value := range state.FieldValues[number] {
			ns[name] = value
		}
	}
	for number, value := range state.FreeTextValues {
		step, ok := wf.Step(number)
		if !ok {
			continue
		}
		input, ok := step.(*InputStep)
		if !ok {
			continue
		}
		ns[InputName(input, number)] = value
	}
	return ns
}
