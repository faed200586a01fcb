package domain

// Persona is the self-declared visitor category.
type Persona string

const (
	PersonaBroker    Persona = "broker"
	PersonaDeveloper Persona = "developer"
	PersonaApplicant Persona = "applicant"
	PersonaPartner   Persona = "partner"
	PersonaOther     Persona = "other"
)

var personaLabels = []struct {
	label   string
	persona Persona
}{
	{"Broker", PersonaBroker},
	{"Real Estate Developer", PersonaDeveloper},
	{"Applicant", PersonaApplicant},
	{"Vendor/Partner", PersonaPartner},
	{"Other", PersonaOther},
}

// PersonaLabels returns the labels offered by the persona selector, in display order.
func PersonaLabels() []string {
	labels := make([]string, len(personaLabels))
	for i, p := range personaLabels {
		labels[i] = p.label
	}
	return labels
}

// ParsePersona maps a selector label to its persona.
func ParsePersona(label string) (Persona, error) {
	for _, p := range personaLabels {
		if p.label == label {
			return p.persona, nil
		}
	}
	return "", ErrUnknownPersona
}

// Label returns the selector label of the persona.
func (p Persona) Label() string {
	for _, pl := range personaLabels {
		if pl.persona == p {
			return pl.label
		}
	}
	return string(p)
}
