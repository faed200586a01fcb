package runtime_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pixl-ae/leadflow/internal/runtime"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnricher struct {
	lastUser string
}

func (r *recordingEnricher) Enrich(prompt, lastUser string) string {
	r.lastUser = lastUser
	return "EXTRA\n" + prompt
}

func TestFallback_OtherPersonaForwardsCannedMessage(t *testing.T) {
	en := &recordingEnricher{}
	f := newFixture(t, runtime.WithEnricher(en), runtime.WithSystemPrompt("SYSTEM"))
	f.start(t, "other")

	s := f.persona(t, "other", "Other")
	assert.Equal(t, domain.StatusStreaming, s.Status)
	assert.Empty(t, s.StepID)
	assert.Equal(t, runtime.OtherPersonaMessage, s.LastUserText())

	f.engine.Wait()
	reqs := f.agent.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "EXTRA\nSYSTEM", reqs[0].SystemPrompt)
	assert.Equal(t, runtime.OtherPersonaMessage, en.lastUser)
	assert.Equal(t, []ports.Turn{
		{Role: ports.RoleUser, Content: "Other"},
		{Role: ports.RoleUser, Content: runtime.OtherPersonaMessage},
	}, reqs[0].History)

	s = f.load(t, "other")
	assert.Equal(t, domain.StatusFreeform, s.Status)
	assert.Equal(t, domain.ExpectFreeform, f.engine.Expect(s).Mode)
	last := s.Log[len(s.Log)-1]
	assert.Equal(t, "Hello there", last.Text)
	assert.False(t, last.Pending)

	// No scripted state is ever entered for this session.
	for _, in := range []domain.Input{
		{Type: domain.InputOption, Option: runtime.OptionScheduleCall},
		{Type: domain.InputForm, Fields: contactForm("Maria Gomez", "maria@x.com", "971501234567")},
	} {
		_, err := f.engine.Handle(f.ctx, "other", in)
		assert.ErrorIs(t, err, domain.ErrNoActiveStep)
	}

	s = f.say(t, "other", "Who is the CEO?")
	f.engine.Wait()
	s = f.load(t, "other")
	assert.Empty(t, s.StepID)
	assert.Len(t, f.agent.Requests(), 2)
	assert.Equal(t, "Who is the CEO?", en.lastUser)
	history := f.agent.Requests()[1].History
	assert.Equal(t, ports.Turn{Role: ports.RoleAssistant, Content: "Hello there"}, history[len(history)-2])
}

func TestFallback_NoStreamAppendsApology(t *testing.T) {
	var turns []*domain.AgentEvent
	f := newFixture(t, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnAgentTurn: func(_ context.Context, e *domain.AgentEvent) { turns = append(turns, e) },
	}))
	f.agent.openErr = errors.New("connection refused")
	f.start(t, "down")
	f.persona(t, "down", "Other")
	f.engine.Wait()

	s := f.load(t, "down")
	assert.Equal(t, runtime.ApologyMessage, lastText(s, domain.SenderAssistant))
	assert.Equal(t, domain.StatusFreeform, s.Status, "the session stays usable")
	assert.Nil(t, s.Pending())
	require.Len(t, turns, 1)
	assert.Error(t, turns[0].Err)

	f.agent.openErr = nil
	f.say(t, "down", "Try again")
	f.engine.Wait()
	assert.Equal(t, "Hello there", lastText(f.load(t, "down"), domain.SenderAssistant))
}

func TestFallback_NoAgentConfigured(t *testing.T) {
	f := newFixture(t, runtime.WithAgent(nil))
	f.start(t, "none")
	f.persona(t, "none", "Other")
	f.engine.Wait()
	assert.Equal(t, runtime.ApologyMessage, lastText(f.load(t, "none"), domain.SenderAssistant))
}

func TestFallback_BrokenStreamKeepsPartialAnswer(t *testing.T) {
	f := newFixture(t)
	f.agent.chunks = []string{"Partial"}
	f.agent.tailErr = errors.New("connection reset")
	f.start(t, "broken")
	f.persona(t, "broken", "Other")
	f.engine.Wait()

	s := f.load(t, "broken")
	n := len(s.Log)
	require.GreaterOrEqual(t, n, 2)
	assert.Equal(t, "Partial", s.Log[n-2].Text)
	assert.False(t, s.Log[n-2].Pending)
	assert.Equal(t, runtime.ApologyMessage, s.Log[n-1].Text)
}

func TestFallback_EmptyStreamLeavesNoMessage(t *testing.T) {
	f := newFixture(t)
	f.agent.chunks = []string{"", ""}
	f.start(t, "empty")
	f.persona(t, "empty", "Other")
	f.engine.Wait()

	s := f.load(t, "empty")
	assert.Equal(t, runtime.OtherPersonaMessage, s.Log[len(s.Log)-1].Text)
	assert.Equal(t, domain.StatusFreeform, s.Status)
}

func TestFallback_ResetCancelsStream(t *testing.T) {
	f := newFixture(t)
	f.agent.chunks = []string{"First", " never sent"}
	f.agent.hold = make(chan struct{})
	f.agent.cancelled = make(chan struct{})
	f.start(t, "cancel")
	f.persona(t, "cancel", "Other")

	require.Eventually(t, func() bool {
		s := f.load(t, "cancel")
		return s.Pending() != nil && s.Pending().Text() == "First"
	}, time.Second, 5*time.Millisecond)

	_, err := f.engine.Handle(f.ctx, "cancel", domain.Input{Type: domain.InputText, Text: "hello?"})
	assert.ErrorIs(t, err, domain.ErrBusy, "free text is refused while streaming")

	s, err := f.engine.Reset(f.ctx, "cancel")
	require.NoError(t, err)
	assert.Empty(t, s.Log)

	select {
	case <-f.agent.cancelled:
	case <-time.After(time.Second):
		t.Fatal("agent request was not cancelled")
	}
	f.engine.Wait()

	s = f.load(t, "cancel")
	assert.Empty(t, s.Log, "no partial message survives the reset")
	assert.Equal(t, domain.StatusIdle, s.Status)
}

func TestFallback_ResetBeforeTurnStartsDropsIt(t *testing.T) {
	var f *fixture
	f = newFixture(t, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		// Runs after the persona update committed but before the agent turn starts.
		OnPersonaSelected: func(ctx context.Context, ev *domain.PersonaEvent) {
			_, err := f.engine.Reset(ctx, ev.SessionID)
			assert.NoError(t, err)
		},
	}))
	f.agent.hold = make(chan struct{})
	defer close(f.agent.hold)

	f.start(t, "late")
	f.persona(t, "late", "Other")
	f.engine.Wait()

	assert.Empty(t, f.agent.Requests(), "no upstream request for a turn of a reset epoch")
	s := f.load(t, "late")
	assert.Empty(t, s.Log)
	assert.Equal(t, domain.StatusIdle, s.Status)
	assert.Equal(t, 1, s.Epoch)
}
