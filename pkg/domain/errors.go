package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnknownOption is returned when a choice does not match any offered label.
var ErrUnknownOption = errors.New("unknown option")

// ErrUnknownPersona is returned when a persona label is not one of the offered personas.
var ErrUnknownPersona = errors.New("unknown persona")

// ErrPersonaLocked is returned when a persona is selected after the conversation started.
var ErrPersonaLocked = errors.New("persona already selected")

// ErrPersonaRequired is returned when input arrives before a persona was chosen.
var ErrPersonaRequired = errors.New("persona must be selected first")

// ErrBusy is returned while the session waits on a pacing delay or an agent stream.
var ErrBusy = errors.New("session is busy")

// ErrNoActiveStep is returned when the input kind does not fit the current step.
var ErrNoActiveStep = errors.New("no step awaits this input")

// ErrUnsupportedType is returned by document intake for disallowed content types.
var ErrUnsupportedType = errors.New("unsupported document type")

// ValidationError carries field-level messages for a rejected form.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FlowError reports a structural problem in a flow table.
type FlowError struct {
	StepID string
	Reason string
}

func (e *FlowError) Error() string {
	if e.StepID == "" {
		return fmt.Sprintf("invalid flow: %s", e.Reason)
	}
	return fmt.Sprintf("invalid flow: step %q: %s", e.StepID, e.Reason)
}
