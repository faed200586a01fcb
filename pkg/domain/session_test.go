package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AppendAssignsSequentialIDs(t *testing.T) {
	s := NewSession("s1", time.Unix(0, 0))
	a := s.Append(SenderUser, KindText, "one", nil)
	b := s.Append(SenderAssistant, KindOptions, "two", Payload(OptionsPayload{Options: []string{"x"}}))

	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID)
	assert.JSONEq(t, `{"options":["x"]}`, string(s.Log[1].Payload))
}

func TestSession_PendingHandle(t *testing.T) {
	s := NewSession("s1", time.Unix(0, 0))
	s.Append(SenderUser, KindText, "question", nil)

	p := s.OpenPending()
	p.Append("Hello")
	p.Append(", world")
	assert.Same(t, s, p.session)
	assert.Equal(t, "Hello, world", p.Text())
	assert.True(t, s.Log[1].Pending)

	again := s.OpenPending()
	assert.Equal(t, p.ID(), again.ID(), "only one pending message may be open")

	p.Seal()
	p.Append("ignored")
	assert.False(t, s.Log[1].Pending)
	assert.Equal(t, "Hello, world", s.Log[1].Text)
	assert.Nil(t, s.Pending())
}

func TestSession_PendingDiscard(t *testing.T) {
	s := NewSession("s1", time.Unix(0, 0))
	s.OpenPending().Append("partial")
	s.Pending().Discard()
	assert.Empty(t, s.Log)
}

func TestSession_ResetTwiceEqualsOnce(t *testing.T) {
	s := NewSession("s1", time.Unix(0, 0))
	s.Persona = PersonaBroker
	s.StepID = "broker.options"
	s.Answers["broker_name"] = Text("Maria")
	s.Append(SenderUser, KindText, "Maria", nil)

	s.Reset(time.Unix(1, 0))
	once := s.Clone()
	s.Reset(time.Unix(1, 0))

	assert.Empty(t, s.Log)
	assert.Empty(t, s.Answers)
	assert.Equal(t, Persona(""), s.Persona)
	assert.Equal(t, "", s.StepID)
	assert.Equal(t, once.Log, s.Log)
	assert.Equal(t, once.Answers, s.Answers)
	assert.Equal(t, once.Status, s.Status)
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := NewSession("s1", time.Unix(0, 0))
	s.Answers["services"] = List("a")
	s.Append(SenderUser, KindText, "x", nil)

	c := s.Clone()
	c.Answers["services"] = List("b")
	c.Log[0].Text = "y"

	assert.Equal(t, []string{"a"}, s.Answers["services"].List)
	assert.Equal(t, "x", s.Log[0].Text)
}

func TestValue_JSONShape(t *testing.T) {
	answers := Answers{"name": Text("Maria"), "services": List("PR", "Events"), "none": List()}
	data, err := json.Marshal(answers)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Maria","services":["PR","Events"],"none":[]}`, string(data))

	var back Answers
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back["services"].IsList())
	assert.False(t, back["name"].IsList())
	assert.True(t, back["none"].IsList())

	var bad Value
	assert.Error(t, json.Unmarshal([]byte(`42`), &bad))
}

func TestParsePersona(t *testing.T) {
	p, err := ParsePersona("Vendor/Partner")
	require.NoError(t, err)
	assert.Equal(t, PersonaPartner, p)
	assert.Equal(t, "Real Estate Developer", PersonaDeveloper.Label())

	_, err = ParsePersona("broker")
	assert.ErrorIs(t, err, ErrUnknownPersona)
	assert.Len(t, PersonaLabels(), 5)
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"phone": "Phone is required.", "email": "Email is required."}}
	assert.Equal(t, "validation failed: email: Email is required.; phone: Phone is required.", err.Error())
}
