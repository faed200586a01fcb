package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pixl-ae/leadflow/internal/runtime"
	"github.com/pixl-ae/leadflow/pkg/adapters/memory"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/ports"
	"github.com/pixl-ae/leadflow/pkg/session"
	"github.com/stretchr/testify/require"
)

// manualClock holds timers until Fire is called.
type manualClock struct {
	mu     sync.Mutex
	queued []func()
}

func (c *manualClock) Schedule(d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queued = append(c.queued, fn)
}

// Fire runs every queued timer and reports how many ran.
func (c *manualClock) Fire() int {
	c.mu.Lock()
	fns := c.queued
	c.queued = nil
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queued)
}

// fakeAgent streams canned chunks and records requests.
type fakeAgent struct {
	mu       sync.Mutex
	requests []ports.AgentRequest

	chunks  []string
	openErr error
	tailErr error
	// hold blocks the stream after the first chunk until closed or cancelled.
	hold chan struct{}
	// cancelled is closed when a held stream observes cancellation.
	cancelled chan struct{}
}

func (a *fakeAgent) Stream(ctx context.Context, req ports.AgentRequest) (<-chan ports.AgentChunk, error) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()

	if a.openErr != nil {
		return nil, a.openErr
	}
	ch := make(chan ports.AgentChunk)
	go func() {
		defer close(ch)
		for i, c := range a.chunks {
			select {
			case ch <- ports.AgentChunk{Delta: c}:
			case <-ctx.Done():
				return
			}
			if i == 0 && a.hold != nil {
				select {
				case <-a.hold:
				case <-ctx.Done():
					if a.cancelled != nil {
						close(a.cancelled)
					}
					return
				}
			}
		}
		if a.tailErr != nil {
			select {
			case ch <- ports.AgentChunk{Err: a.tailErr}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

func (a *fakeAgent) Requests() []ports.AgentRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ports.AgentRequest(nil), a.requests...)
}

type fixture struct {
	engine *runtime.Engine
	sink   *memory.Recorder
	clock  *manualClock
	agent  *fakeAgent
	ctx    context.Context
}

func newFixture(t *testing.T, opts ...runtime.Option) *fixture {
	t.Helper()
	f := &fixture{
		sink:  memory.NewRecorder(),
		clock: &manualClock{},
		agent: &fakeAgent{chunks: []string{"Hello", " there"}},
		ctx:   context.Background(),
	}
	manager := session.NewManager(memory.NewStore())
	base := []runtime.Option{
		runtime.WithSink(f.sink),
		runtime.WithAgent(f.agent),
		runtime.WithScheduler(f.clock.Schedule),
	}
	engine, err := runtime.New(manager, append(base, opts...)...)
	require.NoError(t, err)
	f.engine = engine
	return f
}

func (f *fixture) start(t *testing.T, id string) *domain.Session {
	t.Helper()
	s, err := f.engine.Start(f.ctx, id)
	require.NoError(t, err)
	return s
}

func (f *fixture) load(t *testing.T, id string) *domain.Session {
	t.Helper()
	s, err := f.engine.Session(f.ctx, id)
	require.NoError(t, err)
	return s
}

func (f *fixture) persona(t *testing.T, id, label string) *domain.Session {
	t.Helper()
	s, err := f.engine.SelectPersona(f.ctx, id, label)
	require.NoError(t, err)
	return s
}

func (f *fixture) say(t *testing.T, id, text string) *domain.Session {
	t.Helper()
	s, err := f.engine.Handle(f.ctx, id, domain.Input{Type: domain.InputText, Text: text})
	require.NoError(t, err)
	return s
}

func (f *fixture) choose(t *testing.T, id, option string) *domain.Session {
	t.Helper()
	s, err := f.engine.Handle(f.ctx, id, domain.Input{Type: domain.InputOption, Option: option})
	require.NoError(t, err)
	return s
}

// brokerAt drives a new broker session up to the given option's successor.
func (f *fixture) brokerAt(t *testing.T, id, option string) *domain.Session {
	t.Helper()
	f.start(t, id)
	f.persona(t, id, "Broker")
	f.say(t, id, "Maria")
	require.Equal(t, 1, f.clock.Fire())
	f.choose(t, id, option)
	require.Equal(t, 1, f.clock.Fire())
	return f.load(t, id)
}

func texts(s *domain.Session) []string {
	out := make([]string, 0, len(s.Log))
	for _, m := range s.Log {
		out = append(out, m.Text)
	}
	return out
}

func lastText(s *domain.Session, sender domain.Sender) string {
	for i := len(s.Log) - 1; i >= 0; i-- {
		if s.Log[i].Sender == sender && s.Log[i].Text != "" {
			return s.Log[i].Text
		}
	}
	return ""
}

func contactForm(fullname, email, phone string) map[string]domain.Value {
	return map[string]domain.Value{
		"fullname": domain.Text(fullname),
		"email":    domain.Text(email),
		"phone":    domain.Text(phone),
	}
}
