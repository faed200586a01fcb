package flow

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/pixl-ae/leadflow/internal/validator"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultTable []byte

// Personas that may have an entry in a table. Broker and Other are driven by the engine.
var tablePersonas = map[domain.Persona]bool{
	domain.PersonaDeveloper: true,
	domain.PersonaApplicant: true,
	domain.PersonaPartner:   true,
}

type tableSpec struct {
	Entries map[string]string `mapstructure:"entries"`
	Steps   []domain.Step     `mapstructure:"steps"`
}

// Parse decodes and validates a YAML flow table.
func Parse(data []byte) (*domain.Flow, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse flow yaml: %w", err)
	}

	var spec tableSpec
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &spec,
		ErrorUnused: true,
		TagName:     "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create flow decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode flow table: %w", err)
	}

	f := domain.NewFlow()
	for name, stepID := range spec.Entries {
		p := domain.Persona(name)
		if !tablePersonas[p] {
			return nil, &domain.FlowError{Reason: fmt.Sprintf("persona %q cannot have a table entry", name)}
		}
		f.Entries[p] = stepID
	}
	for i := range spec.Steps {
		s := spec.Steps[i]
		if s.ID == "" {
			return nil, &domain.FlowError{Reason: fmt.Sprintf("step #%d has no id", i+1)}
		}
		if _, dup := f.Steps[s.ID]; dup {
			return nil, &domain.FlowError{StepID: s.ID, Reason: "declared twice"}
		}
		if s.Mode == "" {
			s.Mode = domain.ModeNone
		}
		f.Add(&s)
	}

	if err := validator.ValidateFlow(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Default returns the embedded flow table.
func Default() (*domain.Flow, error) {
	return Parse(defaultTable)
}

// Loader implements ports.FlowLoader, reading Path or falling back to the embedded table.
type Loader struct {
	Path string
}

// NewLoader creates a loader for path; an empty path selects the embedded table.
func NewLoader(path string) *Loader {
	return &Loader{Path: path}
}

// LoadFlow reads and validates the table.
func (l *Loader) LoadFlow(ctx context.Context) (*domain.Flow, error) {
	if l.Path == "" {
		return Default()
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Path, err)
	}
	return f, nil
}
