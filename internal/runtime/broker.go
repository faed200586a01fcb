package runtime

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pixl-ae/leadflow/pkg/domain"
)

// Broker sub-flow steps.
const (
	BrokerAwaitingName   = "broker.awaiting_name"
	BrokerOptions        = "broker.options"
	BrokerScheduleForm   = "broker.schedule_form"
	BrokerDigitalKitForm = "broker.digital_kit_form"
	BrokerServiceForm    = "broker.service_form"
	BrokerRegisterInfo   = "broker.register_info"
	BrokerExploring      = "broker.exploring"
	BrokerSubmitted      = "broker.submitted"
)

// Broker options, in display order.
const (
	OptionScheduleCall = "Schedule a call with our broker support team"
	OptionDigitalKit   = "Get a digital kit of available projects"
	OptionPickServices = "Pick the services you're interested in"
	OptionRegister     = "Register for upcoming project launches (learn more)"
	OptionExploring    = "Just exploring"
)

// MaxBrokerNameLength is the longest reply taken as a first name.
const MaxBrokerNameLength = 30

// BrokerServices are the services a broker can pick.
var BrokerServices = []string{
	"Digital marketing / Lead generation services",
	"Tech and CRM services",
	"Social Media services",
	"PR and Media services",
	"Events services - Roadshows & Open Houses",
	"Email marketing services",
}

func brokerContactFields() []domain.FieldSpec {
	return []domain.FieldSpec{
		{Name: "fullname", Label: "Full Name", Kind: domain.FieldName, Required: true},
		{Name: "company", Label: "Company", Kind: domain.FieldText},
		{Name: "phone", Label: "Phone", Kind: domain.FieldPhone, Required: true},
		{Name: "email", Label: "Email", Kind: domain.FieldEmail, Required: true},
		{Name: "reach", Label: "Preferred way to reach you", Kind: domain.FieldText},
	}
}

// BrokerSteps returns the broker sub-flow as flow steps.
func BrokerSteps() []*domain.Step {
	serviceFields := append(brokerContactFields(),
		domain.FieldSpec{Name: "budget", Label: "Estimated Budget", Kind: domain.FieldBudget},
		domain.FieldSpec{Name: "selectedServices", Label: "Services", Kind: domain.FieldChecklist, Choices: BrokerServices},
	)

	var welcome strings.Builder
	welcome.WriteString("Welcome {{.broker_name}} to Pixl.ae! Here’s how we support brokers:\n")
	for _, s := range BrokerServices {
		welcome.WriteString("• " + s + "\n")
	}
	welcome.WriteString("Would you like to:")

	return []*domain.Step{
		{
			ID:     BrokerAwaitingName,
			Prompt: "Great! Before we continue, may I have your first name?",
			Mode:   domain.ModeText,
			SaveTo: "broker_name",
			Next:   BrokerOptions,
			Pace:   true,
		},
		{
			ID:     BrokerOptions,
			Prompt: welcome.String(),
			Mode:   domain.ModeChoice,
			SaveTo: "broker_interest",
			Pace:   true,
			Options: []domain.Option{
				{Label: OptionScheduleCall, Next: BrokerScheduleForm},
				{Label: OptionDigitalKit, Next: BrokerDigitalKitForm},
				{Label: OptionPickServices, Next: BrokerServiceForm},
				{Label: OptionRegister, Next: BrokerRegisterInfo},
				{Label: OptionExploring, Next: BrokerExploring},
			},
		},
		{
			ID:      BrokerScheduleForm,
			Prompt:  "Got it, {{.broker_name}}! We’d love to connect and learn more about how we can support your marketing goals.",
			Mode:    domain.ModeForm,
			Fields:  brokerContactFields(),
			Actions: []string{domain.SubmissionBrokerCall},
			Next:    BrokerSubmitted,
		},
		{
			ID:      BrokerDigitalKitForm,
			Prompt:  "Perfect, {{.broker_name}}! We’ll send you a digital kit of our past projects to support your sales efforts.",
			Mode:    domain.ModeForm,
			Fields:  brokerContactFields(),
			Actions: []string{domain.SubmissionBrokerCall},
			Next:    BrokerSubmitted,
		},
		{
			ID:      BrokerServiceForm,
			Prompt:  "Select the services you’re interested in and leave your details:",
			Mode:    domain.ModeForm,
			Fields:  serviceFields,
			Actions: []string{domain.SubmissionBrokerLead},
			Next:    BrokerSubmitted,
		},
		{
			ID:       BrokerRegisterInfo,
			Prompt:   "Upcoming project launches are announced on pixl.ae. Ask me anything about them here.",
			Mode:     domain.ModeNone,
			Terminal: true,
		},
		{
			ID:       BrokerExploring,
			Prompt:   "No problem, {{.broker_name}}! Feel free to ask me anything about Pixl.ae and our work with brokers.",
			Mode:     domain.ModeNone,
			Terminal: true,
		},
		{
			ID: BrokerSubmitted,
			Prompt: "Thank you, {{.broker_name}}! You chose: {{.broker_interest}}.\n" +
				"{{if .selectedServices}}Your selected services: {{.selectedServices}}\n" +
				"A member of our broker support team will be in touch shortly to walk you through tailored solutions for your selected services." +
				"{{else if eq .broker_interest \"" + OptionDigitalKit + "\"}}A member of our team will reach out shortly with your curated digital kit." +
				"{{else}}We’ve received your details. Our team will reach out to you soon.{{end}}",
			Mode:     domain.ModeNone,
			Terminal: true,
		},
	}
}

// WithBroker returns a copy of f with the broker sub-flow added.
func WithBroker(f *domain.Flow) *domain.Flow {
	out := domain.NewFlow()
	for p, entry := range f.Entries {
		out.Entries[p] = entry
	}
	for _, s := range f.Ordered() {
		out.Add(s)
	}
	for _, s := range BrokerSteps() {
		out.Add(s)
	}
	out.Entries[domain.PersonaBroker] = BrokerAwaitingName
	return out
}

// captureBrokerName takes a short reply as the broker's first name.
// Anything longer is an unscripted question and leaves the step as is.
func (e *Engine) captureBrokerName(s *domain.Session, step *domain.Step, text string, fx *effects) error {
	name := strings.TrimSpace(text)
	if utf8.RuneCountInString(name) > MaxBrokerNameLength {
		e.startTurn(s, text, fx)
		return nil
	}
	s.Append(domain.SenderUser, domain.KindText, name, nil)
	s.Answers[step.AnswerKey()] = domain.Text(name)
	return e.complete(s, step, step.Next, nil, fx)
}

// brokerRecord is the submission snapshot of a broker form: the name and
// interest captured earlier plus the fields of the submitted form.
func brokerRecord(s *domain.Session, values map[string]domain.Value) map[string]domain.Value {
	out := map[string]domain.Value{
		"broker_name":     domain.Text(s.Answers.Get("broker_name")),
		"broker_interest": domain.Text(s.Answers.Get("broker_interest")),
	}
	for k, v := range values {
		out[k] = v
	}
	if services, ok := values["selectedServices"]; ok {
		for i, svc := range services.List {
			out["service_"+strconv.Itoa(i+1)] = domain.Text(svc)
		}
	}
	return out
}
