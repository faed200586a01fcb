package domain

// SessionDiff represents the changes between two snapshots of a session.
// It is serialized to JSON for partial updates on the client.
type SessionDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	// Reset is set when the session was cleared; clients drop their copy of the log.
	Reset bool `json:"reset,omitempty"`

	Persona *Persona `json:"persona,omitempty"`
	StepID  *string  `json:"step_id,omitempty"`
	Status  *Status  `json:"status,omitempty"`

	// Answers contains only changed, added or deleted keys.
	// Deleted keys map to nil.
	Answers map[string]*Value `json:"answers,omitempty"`

	// Messages holds appended messages and the pending message whenever its text grew.
	Messages []Message `json:"messages,omitempty"`
}

// Diff calculates the difference between oldSession and newSession.
// If oldSession is nil, the diff represents the entire new session.
func Diff(oldSession, newSession *Session) *SessionDiff {
	if newSession == nil {
		return nil
	}

	diff := &SessionDiff{SessionID: newSession.ID}

	if oldSession != nil && oldSession.Epoch != newSession.Epoch {
		diff.Reset = true
		oldSession = nil
	}

	if oldSession == nil || oldSession.Persona != newSession.Persona {
		p := newSession.Persona
		diff.Persona = &p
	}
	if oldSession == nil || oldSession.StepID != newSession.StepID {
		id := newSession.StepID
		diff.StepID = &id
	}
	if oldSession == nil || oldSession.Status != newSession.Status {
		st := newSession.Status
		diff.Status = &st
	}

	diff.Answers = diffAnswers(oldSession, newSession)
	diff.Messages = diffLog(oldSession, newSession)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffAnswers(old, new *Session) map[string]*Value {
	delta := make(map[string]*Value)

	for k, v := range new.Answers {
		if old == nil {
			delta[k] = &v
			continue
		}
		prev, ok := old.Answers[k]
		if !ok || prev.IsList() != v.IsList() || prev.String() != v.String() {
			delta[k] = &v
		}
	}
	if old != nil {
		for k := range old.Answers {
			if _, ok := new.Answers[k]; !ok {
				delta[k] = nil
			}
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffLog assumes append-only behaviour, except for the pending message whose text may grow.
func diffLog(old, new *Session) []Message {
	if old == nil {
		if len(new.Log) == 0 {
			return nil
		}
		return append([]Message(nil), new.Log...)
	}

	seen := make(map[int]Message, len(old.Log))
	for _, m := range old.Log {
		seen[m.ID] = m
	}

	var out []Message
	for _, m := range new.Log {
		prev, ok := seen[m.ID]
		if !ok || prev.Text != m.Text || prev.Pending != m.Pending {
			out = append(out, m)
		}
	}
	return out
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return !d.Reset &&
		d.Persona == nil &&
		d.StepID == nil &&
		d.Status == nil &&
		len(d.Answers) == 0 &&
		len(d.Messages) == 0
}
