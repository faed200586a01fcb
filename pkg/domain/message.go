package domain

import (
	"encoding/json"
	"time"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// MessageKind tells the presentation layer how to render a message.
type MessageKind string

const (
	KindText    MessageKind = "text"
	KindOptions MessageKind = "options"
	KindForm    MessageKind = "form"
	KindCustom  MessageKind = "custom"
)

// Message is one entry of the conversation log.
type Message struct {
	ID        int             `json:"id"`
	Sender    Sender          `json:"sender"`
	Kind      MessageKind     `json:"kind"`
	Text      string          `json:"text"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Pending   bool            `json:"pending,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// OptionsPayload is the structural payload of an options message.
type OptionsPayload struct {
	Options []string `json:"options"`
	Multi   bool     `json:"multi,omitempty"`
}

// FormPayload is the structural payload of a form message.
type FormPayload struct {
	StepID string      `json:"step_id"`
	Fields []FieldSpec `json:"fields"`
}

// Payload marshals v into a message payload. Values that cannot be
// marshaled yield an empty payload.
func Payload(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// PendingMessage is the open handle on the single assistant message that
// is still being streamed. Deltas are appended until Seal is called.
type PendingMessage struct {
	session *Session
	id      int
}

// ID returns the message id of the pending message.
func (p *PendingMessage) ID() int {
	return p.id
}

func (p *PendingMessage) message() *Message {
	for i := range p.session.Log {
		if p.session.Log[i].ID == p.id {
			return &p.session.Log[i]
		}
	}
	return nil
}

// Append adds a streamed delta to the message text.
func (p *PendingMessage) Append(delta string) {
	if m := p.message(); m != nil && m.Pending {
		m.Text += delta
	}
}

// Text returns the accumulated text.
func (p *PendingMessage) Text() string {
	if m := p.message(); m != nil {
		return m.Text
	}
	return ""
}

// Seal closes the message. Further appends are ignored.
func (p *PendingMessage) Seal() {
	if m := p.message(); m != nil {
		m.Pending = false
	}
}

// Discard removes the pending message from the log.
func (p *PendingMessage) Discard() {
	for i := range p.session.Log {
		if p.session.Log[i].ID == p.id && p.session.Log[i].Pending {
			p.session.Log = append(p.session.Log[:i], p.session.Log[i+1:]...)
			return
		}
	}
}
