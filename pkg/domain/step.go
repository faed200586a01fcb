package domain

// InputMode is what a step expects from the visitor.
type InputMode string

const (
	ModeText      InputMode = "text"
	ModeChoice    InputMode = "choice"
	ModeForm      InputMode = "form"
	ModeChecklist InputMode = "checklist"
	ModeNone      InputMode = "none" // informational steps
)

// FieldKind selects the validation rule of a form field.
type FieldKind string

const (
	FieldText      FieldKind = "text"
	FieldName      FieldKind = "name"
	FieldEmail     FieldKind = "email"
	FieldPhone     FieldKind = "phone"
	FieldBudget    FieldKind = "budget"
	FieldChecklist FieldKind = "checklist"
)

// Option is one labelled branch of a choice step.
type Option struct {
	Label string `json:"label" mapstructure:"label"`
	Next  string `json:"next" mapstructure:"next"`
}

// FieldSpec describes one field of a form step.
type FieldSpec struct {
	Name     string    `json:"name" mapstructure:"name"`
	Label    string    `json:"label" mapstructure:"label"`
	Kind     FieldKind `json:"kind" mapstructure:"kind"`
	Required bool      `json:"required,omitempty" mapstructure:"required"`
	Choices  []string  `json:"choices,omitempty" mapstructure:"choices"`
}

// Step is a node of the flow table.
type Step struct {
	ID       string      `json:"id" mapstructure:"id"`
	Prompt   string      `json:"prompt" mapstructure:"prompt"`
	Mode     InputMode   `json:"mode" mapstructure:"mode"`
	Options  []Option    `json:"options,omitempty" mapstructure:"options"`
	Fields   []FieldSpec `json:"fields,omitempty" mapstructure:"fields"`
	Next     string      `json:"next,omitempty" mapstructure:"next"`
	Actions  []string    `json:"actions,omitempty" mapstructure:"actions"`
	Terminal bool        `json:"terminal,omitempty" mapstructure:"terminal"`
	SaveTo   string      `json:"save_to,omitempty" mapstructure:"save_to"`
	// Pace delays entering the successor by the engine's pacing delay.
	Pace bool `json:"pace,omitempty" mapstructure:"pace"`
}

// OptionLabels returns the labels of a choice or checklist step.
func (s *Step) OptionLabels() []string {
	labels := make([]string, len(s.Options))
	for i, o := range s.Options {
		labels[i] = o.Label
	}
	return labels
}

// Option looks up an option by its exact label.
func (s *Step) Option(label string) (Option, bool) {
	for _, o := range s.Options {
		if o.Label == label {
			return o, true
		}
	}
	return Option{}, false
}

// Successors lists every step id reachable in one move.
func (s *Step) Successors() []string {
	var out []string
	for _, o := range s.Options {
		if o.Next != "" {
			out = append(out, o.Next)
		}
	}
	if s.Next != "" {
		out = append(out, s.Next)
	}
	return out
}

// AnswerKey is the answer store key a text or choice step writes to.
func (s *Step) AnswerKey() string {
	if s.SaveTo != "" {
		return s.SaveTo
	}
	return s.ID
}

// Flow is the static flow table with an entry step per persona.
type Flow struct {
	Entries map[Persona]string `json:"entries"`
	Steps   map[string]*Step   `json:"steps"`
	// Order keeps the declaration order of Steps.
	Order []string `json:"order"`
}

// NewFlow creates an empty flow table.
func NewFlow() *Flow {
	return &Flow{
		Entries: make(map[Persona]string),
		Steps:   make(map[string]*Step),
	}
}

// Add registers a step, replacing any step with the same id.
func (f *Flow) Add(s *Step) {
	if _, exists := f.Steps[s.ID]; !exists {
		f.Order = append(f.Order, s.ID)
	}
	f.Steps[s.ID] = s
}

// Step looks up a step by id.
func (f *Flow) Step(id string) (*Step, bool) {
	s, ok := f.Steps[id]
	return s, ok
}

// Ordered returns the steps in declaration order.
func (f *Flow) Ordered() []*Step {
	out := make([]*Step, 0, len(f.Order))
	for _, id := range f.Order {
		if s, ok := f.Steps[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Expectation tells a client which input the session accepts next.
type Expectation struct {
	Mode    string            `json:"mode"`
	StepID  string            `json:"step_id,omitempty"`
	Options []string          `json:"options,omitempty"`
	Fields  []FieldSpec       `json:"fields,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Busy    bool              `json:"busy,omitempty"`
}

// Expectation modes beyond the step input modes.
const (
	ExpectPersona  = "persona"
	ExpectFreeform = "freeform"
	ExpectWait     = "wait"
)
