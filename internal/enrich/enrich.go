// Package enrich prepends reference snippets to the fallback agent's system
// prompt, chosen by keyword rules matched against the latest user message.
package enrich

import (
	_ "embed"
	"regexp"
	"strings"

	"github.com/pixl-ae/leadflow/internal/reference"
)

//go:embed system_prompt.txt
var systemPrompt string

// DefaultSystemPrompt returns the assistant persona used for unscripted turns.
func DefaultSystemPrompt() string {
	return systemPrompt
}

// Rule maps a keyword pattern to a snippet built from reference data.
// An empty snippet means the rule has nothing to add.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Snippet func(*reference.Data) string
}

var (
	leadershipPattern = regexp.MustCompile(`(ceo|founder|leadership|who ?(is|leads) pixl|head)`)
	teamsPattern      = regexp.MustCompile(`(different|all|pixl)? ?teams?|(departments?|groups?|divisions?)`)
	portfolioPattern  = regexp.MustCompile(`(work|case study|case studies|portfolio|project|client|campaign|examples? (of )?(work|projects|clients|done)|what has pixl done|past work|something pixl built|examples of results)`)
	executiveRole     = regexp.MustCompile(`(?i)ceo|founder|chief executive`)
)

// LeadershipRule lists the leadership group, or any executive found in the roster.
func LeadershipRule() Rule {
	return Rule{Name: "leadership", Pattern: leadershipPattern, Snippet: leadershipSnippet}
}

// TeamsRule lists each group with its first three members.
func TeamsRule() Rule {
	return Rule{Name: "teams", Pattern: teamsPattern, Snippet: teamsSnippet}
}

// PortfolioRule lists up to eight portfolio projects.
func PortfolioRule() Rule {
	return Rule{Name: "portfolio", Pattern: portfolioPattern, Snippet: portfolioSnippet}
}

// DefaultRules is the rule table used unless configured otherwise.
// The portfolio rule is opt-in.
func DefaultRules(withPortfolio bool) []Rule {
	rules := []Rule{LeadershipRule(), TeamsRule()}
	if withPortfolio {
		rules = append(rules, PortfolioRule())
	}
	return rules
}

// Enricher applies a rule table.
type Enricher struct {
	rules []Rule
	data  *reference.Data
}

// New creates an Enricher over data.
func New(data *reference.Data, rules ...Rule) *Enricher {
	return &Enricher{rules: rules, data: data}
}

// Enrich returns prompt with the snippets of every matching rule prepended.
// Rules apply in order, each prepending to the result of the previous one.
func (e *Enricher) Enrich(prompt, lastUser string) string {
	msg := strings.ToLower(lastUser)
	for _, r := range e.rules {
		if !r.Pattern.MatchString(msg) {
			continue
		}
		if snippet := r.Snippet(e.data); snippet != "" {
			prompt = snippet + "\n" + prompt
		}
	}
	return prompt
}

// Matches returns the names of the rules that fire for a message.
func (e *Enricher) Matches(lastUser string) []string {
	msg := strings.ToLower(lastUser)
	var names []string
	for _, r := range e.rules {
		if r.Pattern.MatchString(msg) {
			names = append(names, r.Name)
		}
	}
	return names
}

func leadershipSnippet(d *reference.Data) string {
	var sb strings.Builder
	for _, g := range d.Team {
		name := strings.ToLower(g.Group)
		if (strings.Contains(name, "leader") || strings.Contains(name, "ceo")) && len(g.Members) > 0 {
			sb.WriteString("Pixl Leadership:\n")
			for _, m := range g.Members {
				sb.WriteString("- " + m.Name + ", " + m.Role + "\n")
			}
			return sb.String()
		}
	}
	for _, g := range d.Team {
		for _, m := range g.Members {
			if executiveRole.MatchString(m.Role) {
				sb.WriteString("Pixl Leadership: " + m.Name + ", " + m.Role + "\n")
			}
		}
	}
	return sb.String()
}

func teamsSnippet(d *reference.Data) string {
	lines := make([]string, 0, len(d.Team))
	for _, g := range d.Team {
		shown := g.Members
		if len(shown) > 3 {
			shown = shown[:3]
		}
		names := make([]string, len(shown))
		for i, m := range shown {
			names[i] = m.Name + " (" + m.Role + ")"
		}
		line := "- " + g.Group + ": " + strings.Join(names, ", ")
		if len(g.Members) > 3 {
			line += ", ..."
		}
		lines = append(lines, line)
	}
	return "Pixl Teams & Departments:\n" + strings.Join(lines, "\n")
}

var newlines = regexp.MustCompile(`\n+`)

func portfolioSnippet(d *reference.Data) string {
	if len(d.Portfolio) == 0 {
		return ""
	}
	projects := d.Portfolio
	if len(projects) > 8 {
		projects = projects[:8]
	}
	lines := make([]string, len(projects))
	for i, p := range projects {
		summary := ""
		if p.Summary != "" {
			runes := []rune(p.Summary)
			if len(runes) > 70 {
				runes = runes[:70]
			}
			summary = newlines.ReplaceAllString(string(runes), " ") + "…"
		}
		lines[i] = `- "` + p.Title + `" (` + summary + `)`
	}
	return "Here are real Pixl client projects and case studies:\n" + strings.Join(lines, "\n")
}
