package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Value is an answer store entry: either a single string or a list of strings.
// It serializes as a JSON string or a JSON array accordingly.
type Value struct {
	Text string
	List []string
	list bool
}

// Text builds a single-string value.
func Text(s string) Value {
	return Value{Text: s}
}

// List builds a list value. A nil slice still yields a list.
func List(items ...string) Value {
	return Value{List: append([]string{}, items...), list: true}
}

// IsList reports whether the value holds a list.
func (v Value) IsList() bool {
	return v.list || v.List != nil
}

// String renders the value, joining lists with "; ".
func (v Value) String() string {
	if v.IsList() {
		return strings.Join(v.List, "; ")
	}
	return v.Text
}

// Empty reports whether the value carries no content.
func (v Value) Empty() bool {
	if v.IsList() {
		return len(v.List) == 0
	}
	return strings.TrimSpace(v.Text) == ""
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsList() {
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Text)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Text(s)
		return nil
	}
	var l []string
	if err := json.Unmarshal(data, &l); err != nil {
		return fmt.Errorf("answer value must be a string or a list of strings: %w", err)
	}
	*v = List(l...)
	return nil
}

// Answers is the per-session answer store.
type Answers map[string]Value

// Clone returns a deep copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		if v.IsList() {
			out[k] = List(v.List...)
			continue
		}
		out[k] = v
	}
	return out
}

// Get returns the string form of a key, or "" when absent.
func (a Answers) Get(key string) string {
	v, ok := a[key]
	if !ok {
		return ""
	}
	return v.String()
}

// Merge overwrites keys of a with the entries of other.
func (a Answers) Merge(other map[string]Value) {
	for k, v := range other {
		a[k] = v
	}
}
