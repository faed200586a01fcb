package leadflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/pixl-ae/leadflow/internal/logging"
	"github.com/pixl-ae/leadflow/internal/runtime"
	"github.com/pixl-ae/leadflow/pkg/adapters/memory"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/ports"
	"github.com/pixl-ae/leadflow/pkg/session"
)

// Engine is the high-level entry point of the library.
// It wires a session manager to the flow runtime.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager

	store       ports.SessionStore
	locker      ports.DistributedLocker
	listener    session.ChangeListener
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.Option
}

// Enricher prepends reference material to the agent system prompt.
type Enricher = runtime.Enricher

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the session store. Defaults to an in-memory store.
func WithStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker serializes session updates across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithChangeListener receives a diff after every persisted change.
func WithChangeListener(l session.ChangeListener) Option {
	return func(e *Engine) {
		e.listener = l
	}
}

// WithFlow replaces the embedded flow table.
func WithFlow(f *domain.Flow) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithFlow(f))
	}
}

// WithAgent sets the fallback dialog agent.
func WithAgent(agent ports.DialogAgent) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithAgent(agent))
	}
}

// WithSink sets where finalized answers are delivered.
func WithSink(sink ports.SubmissionSink) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithSink(sink))
	}
}

// WithEnricher sets the system prompt enrichment.
func WithEnricher(en Enricher) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithEnricher(en))
	}
}

// WithSystemPrompt overrides the default agent system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithSystemPrompt(prompt))
	}
}

// WithPacing sets the thinking delay before paced steps. Zero disables it.
func WithPacing(d time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithPacing(d))
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes an Engine. Without options it keeps sessions in memory,
// uses the embedded flow table and has neither sink nor agent.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	managerOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(eng.locker))
	}
	if eng.listener != nil {
		managerOpts = append(managerOpts, session.WithChangeListener(eng.listener))
	}
	eng.sessions = session.NewManager(eng.store, managerOpts...)

	runtimeOpts := []runtime.Option{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)

	rt, err := runtime.New(eng.sessions, runtimeOpts...)
	if err != nil {
		return nil, err
	}
	eng.runtime = rt
	return eng, nil
}

// Start returns the session with the given id, creating it when needed.
// An empty id creates a session with a generated id.
func (e *Engine) Start(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.runtime.Start(ctx, sessionID)
}

// Session loads a session.
func (e *Engine) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.runtime.Session(ctx, sessionID)
}

// SelectPersona tags the session with the persona of a selector label.
func (e *Engine) SelectPersona(ctx context.Context, sessionID, label string) (*domain.Session, error) {
	return e.runtime.SelectPersona(ctx, sessionID, label)
}

// Handle applies one visitor input.
func (e *Engine) Handle(ctx context.Context, sessionID string, in domain.Input) (*domain.Session, error) {
	return e.runtime.Handle(ctx, sessionID, in)
}

// Say sends free text.
func (e *Engine) Say(ctx context.Context, sessionID, text string) (*domain.Session, error) {
	return e.Handle(ctx, sessionID, domain.Input{Type: domain.InputText, Text: text})
}

// Choose picks an option of the current choice step by its label.
func (e *Engine) Choose(ctx context.Context, sessionID, label string) (*domain.Session, error) {
	return e.Handle(ctx, sessionID, domain.Input{Type: domain.InputOption, Option: label})
}

// Check submits the selections of the current checklist step.
func (e *Engine) Check(ctx context.Context, sessionID string, selections ...string) (*domain.Session, error) {
	return e.Handle(ctx, sessionID, domain.Input{Type: domain.InputChecklist, Selections: selections})
}

// SubmitForm submits the current form step. A rejected form returns the
// session together with a *domain.ValidationError.
func (e *Engine) SubmitForm(ctx context.Context, sessionID string, fields map[string]domain.Value) (*domain.Session, error) {
	return e.Handle(ctx, sessionID, domain.Input{Type: domain.InputForm, Fields: fields})
}

// Reset clears the conversation and cancels pending work of the session.
func (e *Engine) Reset(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.runtime.Reset(ctx, sessionID)
}

// Expect describes the input the session accepts next.
func (e *Engine) Expect(s *domain.Session) domain.Expectation {
	return e.runtime.Expect(s)
}

// Flow returns the active flow table.
func (e *Engine) Flow() *domain.Flow {
	return e.runtime.Flow()
}

// Wait blocks until timers, agent turns and submissions have finished.
func (e *Engine) Wait() {
	e.runtime.Wait()
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}
