package runtime

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/pixl-ae/leadflow/pkg/domain"
)

// render interpolates a step prompt with the answer store.
// Missing answers render as empty strings; list answers are joined with "; ".
func render(step *domain.Step, answers domain.Answers) (string, error) {
	if !strings.Contains(step.Prompt, "{{") {
		return step.Prompt, nil
	}
	tmpl, err := template.New(step.ID).Option("missingkey=zero").Parse(step.Prompt)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt of %s: %w", step.ID, err)
	}

	data := make(map[string]string, len(answers))
	for k, v := range answers {
		data[k] = v.String()
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render prompt of %s: %w", step.ID, err)
	}
	return sb.String(), nil
}
