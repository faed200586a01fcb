package graph

import (
	"strings"
	"testing"

	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func sampleFlow() *domain.Flow {
	f := domain.NewFlow()
	f.Entries[domain.PersonaPartner] = "partner.intro"
	f.Add(&domain.Step{ID: "partner.intro", Mode: domain.ModeText, Next: "pick"})
	f.Add(&domain.Step{ID: "pick", Mode: domain.ModeChoice, Options: []domain.Option{
		{Label: `Say "hi"`, Next: "contact"},
	}})
	f.Add(&domain.Step{ID: "contact", Mode: domain.ModeForm, Next: "done", Actions: []string{"hubspot:addMarketing"}})
	f.Add(&domain.Step{ID: "done", Mode: domain.ModeNone, Terminal: true})
	return f
}

func TestGenerateMermaid_Shapes(t *testing.T) {
	out := GenerateMermaid(sampleFlow(), nil)

	assert.Contains(t, out, "graph TD\n")
	assert.Contains(t, out, `persona_partner(("Vendor/Partner"))`)
	assert.Contains(t, out, "persona_partner --> partner_intro")
	assert.Contains(t, out, `partner_intro[/"partner.intro"/]`)
	assert.Contains(t, out, `pick{"pick"}`)
	assert.Contains(t, out, `pick -- "Say 'hi'" --> contact`)
	assert.Contains(t, out, `contact[["contact <br/> ⚙ hubspot:addMarketing"]]`)
	assert.Contains(t, out, `done(["done"])`)
	assert.NotContains(t, out, "classDef")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	out := GenerateMermaid(sampleFlow(), &GraphOverlay{
		VisitedSteps: []string{"partner.intro", "partner.intro", "pick"},
		CurrentStep:  "contact",
	})

	assert.Contains(t, out, "class partner_intro visited;")
	assert.Contains(t, out, "class pick visited;")
	assert.Contains(t, out, "class contact current;")
	assert.Equal(t, 1, strings.Count(out, "class partner_intro visited;"))
}

