package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pixl-ae/leadflow/internal/presentation/tui"
	"github.com/pixl-ae/leadflow/pkg/domain"
)

// transcript prints the conversation of one session as diffs arrive.
// Streamed messages are printed delta by delta.
type transcript struct {
	mu        sync.Mutex
	out       io.Writer
	render    tui.Renderer
	sessionID string
	printed   map[int]int // message id -> bytes printed
	streaming map[int]bool
}

func newTranscript(out io.Writer, render tui.Renderer) *transcript {
	if render == nil {
		render = tui.Plain
	}
	return &transcript{
		out:       out,
		render:    render,
		printed:   make(map[int]int),
		streaming: make(map[int]bool),
	}
}

// follow selects the session to print and replays its log.
func (t *transcript) follow(s *domain.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionID = s.ID
	for _, m := range s.Log {
		t.message(m)
	}
}

// Observe is a session.ChangeListener.
func (t *transcript) Observe(ctx context.Context, diff *domain.SessionDiff) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if diff.SessionID != t.sessionID {
		return
	}
	if diff.Reset {
		t.printed = make(map[int]int)
		t.streaming = make(map[int]bool)
		t.system("Conversation reset.")
	}
	for _, m := range diff.Messages {
		t.message(m)
	}
	if diff.Status != nil && *diff.Status == domain.StatusThinking {
		fmt.Fprintln(t.out, "bot> …")
	}
}

func (t *transcript) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

// system prints a standardized system message. Callers hold mu.
func (t *transcript) system(format string, args ...any) {
	fmt.Fprintf(t.out, ">>> %s\n", fmt.Sprintf(format, args...))
}

func (t *transcript) systemf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.system(format, args...)
}

func (t *transcript) message(m domain.Message) {
	done, seen := t.printed[m.ID]
	if m.Sender == domain.SenderUser {
		// Typed by the visitor, already on screen.
		t.printed[m.ID] = len(m.Text)
		return
	}

	if m.Pending || t.streaming[m.ID] {
		if !seen && m.Text == "" {
			return
		}
		if !seen {
			fmt.Fprint(t.out, "bot> ")
			t.streaming[m.ID] = true
		}
		if len(m.Text) > done {
			fmt.Fprint(t.out, m.Text[done:])
		}
		t.printed[m.ID] = len(m.Text)
		if !m.Pending {
			fmt.Fprintln(t.out)
			delete(t.streaming, m.ID)
		}
		return
	}
	if seen {
		return
	}
	t.printed[m.ID] = len(m.Text)

	switch m.Kind {
	case domain.KindText:
		fmt.Fprintf(t.out, "bot> %s\n", t.render(m.Text))
	case domain.KindOptions:
		var p domain.OptionsPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return
		}
		fmt.Fprint(t.out, numbered(p.Options))
		if p.Multi {
			t.system("Pick one or more, separated by commas.")
		}
	case domain.KindForm:
		t.system("Please fill in the form below. Fields marked * are required.")
	}
}

func numbered(options []string) string {
	var sb strings.Builder
	for i, o := range options {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, o)
	}
	return sb.String()
}
