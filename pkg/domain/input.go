package domain

import "time"

// InputType distinguishes the kinds of visitor input.
type InputType string

const (
	InputText      InputType = "text"
	InputOption    InputType = "option"
	InputChecklist InputType = "checklist"
	InputForm      InputType = "form"
)

// Input is one visitor event handed to the engine.
type Input struct {
	Type       InputType        `json:"type"`
	Text       string           `json:"text,omitempty"`
	Option     string           `json:"option,omitempty"`
	Selections []string         `json:"selections,omitempty"`
	Fields     map[string]Value `json:"fields,omitempty"`
}

// Submission is a finalized answer snapshot delivered to a sink.
type Submission struct {
	Kind      string           `json:"kind"`
	Action    string           `json:"action,omitempty"`
	SessionID string           `json:"sessionId"`
	Persona   Persona          `json:"persona,omitempty"`
	StepID    string           `json:"step,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Fields    map[string]Value `json:"fields"`
}

// Submission kinds.
const (
	SubmissionBrokerCall = "broker_calls"
	SubmissionBrokerLead = "broker_leads"
	SubmissionCRM        = "crm"
)
