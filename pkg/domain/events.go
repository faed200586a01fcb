package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter       EventType = "step_enter"
	EventPersonaSelected EventType = "persona_selected"
	EventSubmission      EventType = "submission"
	EventAgentTurn       EventType = "agent_turn"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// StepEvent is emitted when a session enters a step.
type StepEvent struct {
	EventBase
	Persona Persona `json:"persona"`
	StepID  string  `json:"step_id"`
}

// PersonaEvent is emitted when a persona is selected.
type PersonaEvent struct {
	EventBase
	Persona Persona `json:"persona"`
}

// SubmissionEvent is emitted once a sink call finished.
type SubmissionEvent struct {
	EventBase
	Kind   string `json:"kind"`
	Action string `json:"action,omitempty"`
	Err    error  `json:"-"`
}

// AgentEvent is emitted when a fallback agent turn ends.
type AgentEvent struct {
	EventBase
	Chunks   int           `json:"chunks"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStepEnter       func(context.Context, *StepEvent)
	OnPersonaSelected func(context.Context, *PersonaEvent)
	OnSubmission      func(context.Context, *SubmissionEvent)
	OnAgentTurn       func(context.Context, *AgentEvent)
}

// ChainHooks combines several hook sets; each callback fans out in order.
func ChainHooks(sets ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *StepEvent) {
			for _, h := range sets {
				if h.OnStepEnter != nil {
					h.OnStepEnter(ctx, e)
				}
			}
		},
		OnPersonaSelected: func(ctx context.Context, e *PersonaEvent) {
			for _, h := range sets {
				if h.OnPersonaSelected != nil {
					h.OnPersonaSelected(ctx, e)
				}
			}
		},
		OnSubmission: func(ctx context.Context, e *SubmissionEvent) {
			for _, h := range sets {
				if h.OnSubmission != nil {
					h.OnSubmission(ctx, e)
				}
			}
		},
		OnAgentTurn: func(ctx context.Context, e *AgentEvent) {
			for _, h := range sets {
				if h.OnAgentTurn != nil {
					h.OnAgentTurn(ctx, e)
				}
			}
		},
	}
}
