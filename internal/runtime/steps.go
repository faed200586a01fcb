package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/validate"
)

// OtherPersonaMessage is sent on the visitor's behalf when they pick "Other".
const OtherPersonaMessage = "I have a different question or would like to chat with the bot."

// SelectPersona tags the session with the persona of a selector label and
// enters its first step. It is accepted once, before anything was said.
func (e *Engine) SelectPersona(ctx context.Context, id, label string) (*domain.Session, error) {
	return e.commit(ctx, id, func(s *domain.Session, fx *effects) error {
		if s.Persona != "" || len(s.Log) > 0 {
			return domain.ErrPersonaLocked
		}
		p, err := domain.ParsePersona(label)
		if err != nil {
			return err
		}

		s.Persona = p
		fx.persona = p
		s.Append(domain.SenderUser, domain.KindText, label, nil)

		if p == domain.PersonaOther {
			e.startTurn(s, OtherPersonaMessage, fx)
			return nil
		}
		entry, ok := e.flow.Entries[p]
		if !ok {
			return fmt.Errorf("no entry step for persona %q", p)
		}
		return e.enter(s, entry, fx)
	})
}

// Handle applies one visitor input to the session.
func (e *Engine) Handle(ctx context.Context, id string, in domain.Input) (*domain.Session, error) {
	return e.commit(ctx, id, func(s *domain.Session, fx *effects) error {
		if s.Busy() {
			return domain.ErrBusy
		}
		if s.Persona == "" {
			return domain.ErrPersonaRequired
		}
		return e.apply(s, in, fx)
	})
}

func (e *Engine) apply(s *domain.Session, in domain.Input, fx *effects) error {
	if in.Type == domain.InputText && strings.TrimSpace(in.Text) == "" {
		return &domain.ValidationError{Fields: map[string]string{"text": "Message cannot be empty."}}
	}

	step, ok := e.flow.Step(s.StepID)
	if !ok || step.Terminal || s.Status == domain.StatusCompleted {
		// Outside the scripted graph only free text is understood.
		if in.Type != domain.InputText {
			return domain.ErrNoActiveStep
		}
		e.startTurn(s, in.Text, fx)
		return nil
	}

	switch in.Type {
	case domain.InputText:
		if step.Mode != domain.ModeText {
			e.startTurn(s, in.Text, fx)
			return nil
		}
		if step.ID == BrokerAwaitingName {
			return e.captureBrokerName(s, step, in.Text, fx)
		}
		text := strings.TrimSpace(in.Text)
		s.Append(domain.SenderUser, domain.KindText, text, nil)
		s.Answers[step.AnswerKey()] = domain.Text(text)
		return e.complete(s, step, step.Next, nil, fx)

	case domain.InputOption:
		if step.Mode != domain.ModeChoice {
			return domain.ErrNoActiveStep
		}
		opt, ok := step.Option(in.Option)
		if !ok {
			return domain.ErrUnknownOption
		}
		s.Append(domain.SenderUser, domain.KindText, opt.Label, nil)
		s.Answers[step.AnswerKey()] = domain.Text(opt.Label)
		return e.complete(s, step, opt.Next, nil, fx)

	case domain.InputChecklist:
		if step.Mode != domain.ModeChecklist {
			return domain.ErrNoActiveStep
		}
		if !validate.Selections(step.OptionLabels(), in.Selections) {
			return domain.ErrUnknownOption
		}
		s.Append(domain.SenderUser, domain.KindText, strings.Join(in.Selections, "; "), nil)
		s.Answers[step.AnswerKey()] = domain.List(in.Selections...)
		return e.complete(s, step, step.Next, nil, fx)

	case domain.InputForm:
		if step.Mode != domain.ModeForm {
			return domain.ErrNoActiveStep
		}
		values := formValues(step, in.Fields)
		if errs := validate.Form(step.Fields, values); errs != nil {
			s.FormErrors = errs
			fx.invalid = &domain.ValidationError{Fields: errs}
			return nil
		}
		s.FormErrors = nil
		s.Append(domain.SenderUser, domain.KindForm, formSummary(step, values), domain.Payload(values))
		s.Answers.Merge(values)
		return e.complete(s, step, step.Next, values, fx)
	}
	return fmt.Errorf("unsupported input type %q", in.Type)
}

// formValues keeps the declared fields of a form, trimming text values.
// Phones stay raw so stray whitespace fails validation.
func formValues(step *domain.Step, in map[string]domain.Value) map[string]domain.Value {
	out := make(map[string]domain.Value, len(step.Fields))
	for _, f := range step.Fields {
		v, ok := in[f.Name]
		switch {
		case !ok && f.Kind == domain.FieldChecklist:
			v = domain.List()
		case v.IsList():
			v = domain.List(v.List...)
		case f.Kind == domain.FieldPhone:
			v = domain.Text(v.Text)
		default:
			v = domain.Text(strings.TrimSpace(v.Text))
		}
		out[f.Name] = v
	}
	return out
}

func formSummary(step *domain.Step, values map[string]domain.Value) string {
	var lines []string
	for _, f := range step.Fields {
		v := values[f.Name]
		if v.Empty() {
			continue
		}
		label := f.Label
		if label == "" {
			label = f.Name
		}
		lines = append(lines, label+": "+v.String())
	}
	return strings.Join(lines, "\n")
}

// complete fires the step actions and moves on to next.
func (e *Engine) complete(s *domain.Session, step *domain.Step, next string, values map[string]domain.Value, fx *effects) error {
	for _, action := range step.Actions {
		fx.submissions = append(fx.submissions, e.submission(s, step, action, values))
	}
	if step.Pace {
		s.Status = domain.StatusThinking
		fx.paceTo = next
		return nil
	}
	return e.enter(s, next, fx)
}

// enter makes stepID the current step and emits its prompt.
func (e *Engine) enter(s *domain.Session, stepID string, fx *effects) error {
	step, ok := e.flow.Step(stepID)
	if !ok {
		return fmt.Errorf("step %q not found", stepID)
	}
	s.StepID = step.ID
	s.FormErrors = nil
	fx.entered = append(fx.entered, step.ID)

	prompt, err := render(step, s.Answers)
	if err != nil {
		e.logger.Warn("Failed to render prompt", "step_id", step.ID, "err", err)
		prompt = step.Prompt
	}
	if prompt != "" {
		s.Append(domain.SenderAssistant, domain.KindText, prompt, nil)
	}

	switch step.Mode {
	case domain.ModeChoice:
		s.Append(domain.SenderAssistant, domain.KindOptions, "",
			domain.Payload(domain.OptionsPayload{Options: step.OptionLabels()}))
	case domain.ModeChecklist:
		s.Append(domain.SenderAssistant, domain.KindOptions, "",
			domain.Payload(domain.OptionsPayload{Options: step.OptionLabels(), Multi: true}))
	case domain.ModeForm:
		s.Append(domain.SenderAssistant, domain.KindForm, "",
			domain.Payload(domain.FormPayload{StepID: step.ID, Fields: step.Fields}))
	}

	if step.Terminal {
		s.Status = domain.StatusCompleted
	} else {
		s.Status = domain.StatusActive
	}
	return nil
}

// submission snapshots the answers for one step action.
func (e *Engine) submission(s *domain.Session, step *domain.Step, action string, values map[string]domain.Value) domain.Submission {
	sub := domain.Submission{
		Kind:      domain.SubmissionCRM,
		Action:    action,
		SessionID: s.ID,
		Persona:   s.Persona,
		StepID:    step.ID,
		Timestamp: s.UpdatedAt,
	}
	switch action {
	case domain.SubmissionBrokerCall, domain.SubmissionBrokerLead:
		sub.Kind = action
		sub.Action = ""
		sub.Fields = brokerRecord(s, values)
	default:
		sub.Fields = s.Answers.Clone()
	}
	return sub
}

// settle picks the status after an agent turn.
func (e *Engine) settle(s *domain.Session) {
	step, ok := e.flow.Step(s.StepID)
	switch {
	case !ok:
		s.Status = domain.StatusFreeform
	case step.Terminal:
		s.Status = domain.StatusCompleted
	default:
		s.Status = domain.StatusActive
	}
}
