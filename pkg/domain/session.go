package domain

import "time"

// Status describes what the session is doing right now.
type Status string

const (
	StatusIdle      Status = "idle"      // No persona chosen yet
	StatusActive    Status = "active"    // A scripted step awaits input
	StatusThinking  Status = "thinking"  // A pacing delay is running
	StatusStreaming Status = "streaming" // The fallback agent is answering
	StatusFreeform  Status = "freeform"  // No scripted step; free text goes to the agent
	StatusCompleted Status = "completed" // A terminal step was reached
)

// Session is the explicit conversation context owned by the engine.
type Session struct {
	ID            string            `json:"id"`
	Persona       Persona           `json:"persona,omitempty"`
	StepID        string            `json:"step_id,omitempty"`
	Status        Status            `json:"status"`
	Epoch         int               `json:"epoch"`
	Answers       Answers           `json:"answers"`
	Log           []Message         `json:"log"`
	NextMessageID int               `json:"next_message_id"`
	FormErrors    map[string]string `json:"form_errors,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewSession creates an empty session.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:            id,
		Status:        StatusIdle,
		Answers:       make(Answers),
		Log:           []Message{},
		NextMessageID: 1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Busy reports whether the session refuses new input.
func (s *Session) Busy() bool {
	return s.Status == StatusThinking || s.Status == StatusStreaming
}

// Append adds a sealed message to the log and returns it.
func (s *Session) Append(sender Sender, kind MessageKind, text string, payload []byte) Message {
	if s.NextMessageID < 1 {
		s.NextMessageID = 1
	}
	m := Message{
		ID:        s.NextMessageID,
		Sender:    sender,
		Kind:      kind,
		Text:      text,
		Payload:   payload,
		CreatedAt: s.UpdatedAt,
	}
	s.NextMessageID++
	s.Log = append(s.Log, m)
	return m
}

// OpenPending opens the streaming assistant message, or returns the one
// already open.
func (s *Session) OpenPending() *PendingMessage {
	if p := s.Pending(); p != nil {
		return p
	}
	m := s.Append(SenderAssistant, KindText, "", nil)
	s.Log[len(s.Log)-1].Pending = true
	return &PendingMessage{session: s, id: m.ID}
}

// Pending returns the open streaming message, if any.
func (s *Session) Pending() *PendingMessage {
	for i := range s.Log {
		if s.Log[i].Pending {
			return &PendingMessage{session: s, id: s.Log[i].ID}
		}
	}
	return nil
}

// LastUserText returns the text of the latest user message.
func (s *Session) LastUserText() string {
	for i := len(s.Log) - 1; i >= 0; i-- {
		if s.Log[i].Sender == SenderUser {
			return s.Log[i].Text
		}
	}
	return ""
}

// Reset clears persona, step, answers and log and bumps the epoch.
// The message id sequence keeps counting so ids stay unique for clients.
func (s *Session) Reset(now time.Time) {
	s.Persona = ""
	s.StepID = ""
	s.Status = StatusIdle
	s.Epoch++
	s.Answers = make(Answers)
	s.Log = []Message{}
	s.FormErrors = nil
	s.UpdatedAt = now
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	c.Answers = s.Answers.Clone()
	c.Log = make([]Message, len(s.Log))
	for i, m := range s.Log {
		if m.Payload != nil {
			m.Payload = append([]byte(nil), m.Payload...)
		}
		c.Log[i] = m
	}
	if s.FormErrors != nil {
		c.FormErrors = make(map[string]string, len(s.FormErrors))
		for k, v := range s.FormErrors {
			c.FormErrors[k] = v
		}
	}
	return &c
}
