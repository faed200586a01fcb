// Package validate holds the field rules applied to submitted forms.
package validate

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pixl-ae/leadflow/pkg/domain"
)

var (
	namePattern  = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\d{6,}$`)
)

// Name checks a full name: required, letters and whitespace only.
func Name(v string) string {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return "Full name is required."
	case !namePattern.MatchString(v):
		return "Name must contain only letters."
	}
	return ""
}

// Email checks the local@domain.tld shape.
func Email(v string) string {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return "Email is required."
	case !emailPattern.MatchString(v):
		return "Enter a valid email address."
	}
	return ""
}

// Phone checks the raw value: digits only, at least six of them.
// Separators such as spaces, dashes or a leading plus are rejected, and so
// is surrounding whitespace.
func Phone(v string) string {
	switch {
	case strings.TrimSpace(v) == "":
		return "Phone is required."
	case !phonePattern.MatchString(v):
		return "Phone must be at least 6 digits."
	}
	return ""
}

// Budget accepts an empty value or a number written with optional thousands separators.
func Budget(v string) string {
	if strings.TrimSpace(v) == "" {
		return ""
	}
	if _, ok := ParseBudget(v); !ok {
		return "Budget must be a valid number."
	}
	return ""
}

// ParseBudget returns the numeric value of a budget entry.
// NaN and infinities are not budgets.
func ParseBudget(v string) (float64, bool) {
	raw := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatThousands keeps the digits of v and regroups them with commas,
// the way the budget field is shown while typing.
func FormatThousands(v string) string {
	var digits strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := strings.TrimLeft(digits.String(), "0")
	if d == "" {
		if digits.Len() > 0 {
			return "0"
		}
		return ""
	}

	var out strings.Builder
	lead := len(d) % 3
	if lead > 0 {
		out.WriteString(d[:lead])
	}
	for i := lead; i < len(d); i += 3 {
		if out.Len() > 0 {
			out.WriteByte(',')
		}
		out.WriteString(d[i : i+3])
	}
	return out.String()
}

// Field applies the rule of spec to v and returns an error message, or "".
// Optional fields are only checked when they carry a value.
func Field(spec domain.FieldSpec, v domain.Value) string {
	if v.Empty() {
		if !spec.Required {
			return ""
		}
		switch spec.Kind {
		case domain.FieldName:
			return Name("")
		case domain.FieldEmail:
			return Email("")
		case domain.FieldPhone:
			return Phone("")
		}
		label := spec.Label
		if label == "" {
			label = spec.Name
		}
		return label + " is required."
	}

	switch spec.Kind {
	case domain.FieldName:
		return Name(v.String())
	case domain.FieldEmail:
		return Email(v.String())
	case domain.FieldPhone:
		return Phone(v.String())
	case domain.FieldBudget:
		return Budget(v.String())
	case domain.FieldChecklist:
		return choices(spec, v)
	}
	return ""
}

func choices(spec domain.FieldSpec, v domain.Value) string {
	if len(spec.Choices) == 0 {
		return ""
	}
	items := v.List
	if !v.IsList() {
		items = []string{v.Text}
	}
	for _, item := range items {
		if !contains(spec.Choices, item) {
			return "Unknown selection: " + item + "."
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Form validates every field of a form and returns the messages of the
// failing ones, or nil when the form is acceptable.
func Form(fields []domain.FieldSpec, values map[string]domain.Value) map[string]string {
	errs := make(map[string]string)
	for _, spec := range fields {
		if msg := Field(spec, values[spec.Name]); msg != "" {
			errs[spec.Name] = msg
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Selections checks that every selected label is one of the offered ones.
func Selections(offered, selected []string) bool {
	for _, s := range selected {
		if !contains(offered, s) {
			return false
		}
	}
	return true
}
