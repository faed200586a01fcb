package validator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pixl-ae/leadflow/pkg/domain"
)

var validModes = map[domain.InputMode]bool{
	domain.ModeText:      true,
	domain.ModeChoice:    true,
	domain.ModeChecklist: true,
	domain.ModeForm:      true,
	domain.ModeNone:      true,
}

var validKinds = map[domain.FieldKind]bool{
	domain.FieldText:      true,
	domain.FieldName:      true,
	domain.FieldEmail:     true,
	domain.FieldPhone:     true,
	domain.FieldBudget:    true,
	domain.FieldChecklist: true,
}

// ValidateFlow checks step shapes, broken links, unreachable steps and
// steps from which no terminal step can be reached. All problems are
// reported together as joined *domain.FlowError values.
func ValidateFlow(f *domain.Flow) error {
	var errs []error
	fail := func(stepID, format string, args ...any) {
		errs = append(errs, &domain.FlowError{StepID: stepID, Reason: fmt.Sprintf(format, args...)})
	}

	if len(f.Entries) == 0 {
		fail("", "no persona entries")
	}
	for _, p := range sortedPersonas(f.Entries) {
		if _, ok := f.Steps[f.Entries[p]]; !ok {
			fail("", "entry for persona %q points to missing step %q", p, f.Entries[p])
		}
	}

	for _, s := range f.Ordered() {
		checkStep(f, s, fail)
	}

	// Reachability from the persona entries.
	visited := make(map[string]bool)
	var queue []string
	for _, p := range sortedPersonas(f.Entries) {
		queue = append(queue, f.Entries[p])
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		if s, ok := f.Steps[id]; ok {
			for _, next := range s.Successors() {
				if !visited[next] {
					queue = append(queue, next)
				}
			}
		}
	}
	for _, s := range f.Ordered() {
		if !visited[s.ID] {
			fail(s.ID, "unreachable from any persona entry")
		}
	}

	// Every step must be able to reach a terminal step.
	ends := make(map[string]bool)
	for changed := true; changed; {
		changed = false
		for _, s := range f.Ordered() {
			if ends[s.ID] {
				continue
			}
			if s.Terminal {
				ends[s.ID] = true
				changed = true
				continue
			}
			for _, next := range s.Successors() {
				if ends[next] {
					ends[s.ID] = true
					changed = true
					break
				}
			}
		}
	}
	for _, s := range f.Ordered() {
		if !ends[s.ID] && visited[s.ID] {
			fail(s.ID, "no terminal step is reachable")
		}
	}

	return errors.Join(errs...)
}

func checkStep(f *domain.Flow, s *domain.Step, fail func(string, string, ...any)) {
	if !validModes[s.Mode] {
		fail(s.ID, "unknown mode %q", s.Mode)
		return
	}

	for _, next := range s.Successors() {
		if _, ok := f.Steps[next]; !ok {
			fail(s.ID, "successor %q does not exist", next)
		}
	}

	if s.Terminal {
		if len(s.Successors()) > 0 {
			fail(s.ID, "terminal step must not have successors")
		}
		return
	}

	switch s.Mode {
	case domain.ModeChoice:
		if len(s.Options) == 0 {
			fail(s.ID, "choice step needs options")
		}
		seen := make(map[string]bool)
		for _, o := range s.Options {
			if o.Label == "" || o.Next == "" {
				fail(s.ID, "every option needs a label and a successor")
			}
			if seen[o.Label] {
				fail(s.ID, "duplicate option %q", o.Label)
			}
			seen[o.Label] = true
		}
		if s.Next != "" {
			fail(s.ID, "choice step uses option successors, not next")
		}
	case domain.ModeChecklist:
		if len(s.Options) == 0 {
			fail(s.ID, "checklist step needs options")
		}
		for _, o := range s.Options {
			if o.Next != "" {
				fail(s.ID, "checklist option %q must not have a successor", o.Label)
			}
		}
		if s.Next == "" {
			fail(s.ID, "non-terminal step needs a successor")
		}
	case domain.ModeForm:
		if len(s.Fields) == 0 {
			fail(s.ID, "form step needs fields")
		}
		seen := make(map[string]bool)
		for _, field := range s.Fields {
			if field.Name == "" {
				fail(s.ID, "form field without name")
			}
			if seen[field.Name] {
				fail(s.ID, "duplicate field %q", field.Name)
			}
			seen[field.Name] = true
			if !validKinds[field.Kind] {
				fail(s.ID, "field %q has unknown kind %q", field.Name, field.Kind)
			}
		}
		if s.Next == "" {
			fail(s.ID, "non-terminal step needs a successor")
		}
	default:
		if s.Next == "" {
			fail(s.ID, "non-terminal step needs a successor")
		}
	}
}

func sortedPersonas(entries map[domain.Persona]string) []domain.Persona {
	out := make([]domain.Persona, 0, len(entries))
	for p := range entries {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
