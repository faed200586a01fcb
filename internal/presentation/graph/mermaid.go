package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pixl-ae/leadflow/pkg/domain"
)

// GraphOverlay contains session data to visualize on the graph.
type GraphOverlay struct {
	VisitedSteps []string
	CurrentStep  string
}

// GenerateMermaid produces a Mermaid flowchart of a flow table.
// Shapes follow the input mode:
// - Persona entry: ((Circle))
// - Form: [[Subroutine]]
// - Text input: [/Parallelogram/]
// - Choice and checklist: {Rhombus}
// - Terminal: ([Stadium])
// Step actions are listed under the step label. Overlay styles mark the
// visited and current steps when an overlay is given.
func GenerateMermaid(f *domain.Flow, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	personas := make([]domain.Persona, 0, len(f.Entries))
	for p := range f.Entries {
		personas = append(personas, p)
	}
	sort.Slice(personas, func(i, j int) bool { return personas[i] < personas[j] })
	for _, p := range personas {
		entryID := "persona_" + sanitizeMermaidID(string(p))
		sb.WriteString(fmt.Sprintf("    %s((\"%s\"))\n", entryID, escapeLabel(p.Label())))
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", entryID, sanitizeMermaidID(f.Entries[p])))
	}

	for _, step := range f.Ordered() {
		safeID := sanitizeMermaidID(step.ID)

		opener, closer := "[", "]"
		switch {
		case step.Terminal:
			opener, closer = "([", "])"
		case step.Mode == domain.ModeForm:
			opener, closer = "[[", "]]"
		case step.Mode == domain.ModeText:
			opener, closer = "[/", "/]"
		case step.Mode == domain.ModeChoice || step.Mode == domain.ModeChecklist:
			opener, closer = "{", "}"
		}

		label := step.ID
		if len(step.Actions) > 0 {
			label += " <br/> ⚙ " + strings.Join(step.Actions, ", ")
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(label), closer))

		for _, o := range step.Options {
			if o.Next == "" {
				continue
			}
			sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", safeID, escapeLabel(o.Label), sanitizeMermaidID(o.Next)))
		}
		if step.Next != "" {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", safeID, sanitizeMermaidID(step.Next)))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light fills under both themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool)
		for _, id := range overlay.VisitedSteps {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !visited[safeID] {
				visited[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}
		if overlay.CurrentStep != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentStep)))
		}
	}

	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
