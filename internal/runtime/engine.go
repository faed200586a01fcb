package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pixl-ae/leadflow/internal/enrich"
	"github.com/pixl-ae/leadflow/internal/logging"
	"github.com/pixl-ae/leadflow/internal/validator"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/flow"
	"github.com/pixl-ae/leadflow/pkg/ports"
	"github.com/pixl-ae/leadflow/pkg/session"
)

// DefaultPacing is the thinking delay shown before paced steps.
const DefaultPacing = time.Second

// errStale aborts an update whose session was reset in the meantime.
var errStale = errors.New("session epoch changed")

// Scheduler runs fn after d. A non-positive d may run fn immediately.
type Scheduler func(d time.Duration, fn func())

// Enricher prepends reference material to the agent system prompt.
type Enricher interface {
	Enrich(systemPrompt, lastUser string) string
}

// Engine is the conversation state machine. All session mutations happen
// inside session.Manager.Update; timers, agent streams and sink calls run
// after the session lock was released.
type Engine struct {
	sessions     *session.Manager
	flow         *domain.Flow
	agent        ports.DialogAgent
	sink         ports.SubmissionSink
	enricher     Enricher
	systemPrompt string
	pacing       time.Duration
	schedule     Scheduler
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	newID        func() string

	wg       sync.WaitGroup
	mu       sync.Mutex
	inflight map[string]inflightTurn
	// resets holds the epoch each session was last reset to.
	resets map[string]int
}

type inflightTurn struct {
	epoch  int
	cancel context.CancelFunc
}

// Option configures the Engine.
type Option func(*Engine)

// WithFlow replaces the embedded flow table. The broker sub-flow is added to it.
func WithFlow(f *domain.Flow) Option {
	return func(e *Engine) {
		e.flow = f
	}
}

// WithAgent sets the fallback dialog agent.
func WithAgent(agent ports.DialogAgent) Option {
	return func(e *Engine) {
		e.agent = agent
	}
}

// WithSink sets where finalized answers are delivered.
func WithSink(sink ports.SubmissionSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithEnricher sets the system prompt enrichment.
func WithEnricher(en Enricher) Option {
	return func(e *Engine) {
		e.enricher = en
	}
}

// WithSystemPrompt overrides enrich.DefaultSystemPrompt.
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) {
		e.systemPrompt = prompt
	}
}

// WithPacing overrides DefaultPacing.
func WithPacing(d time.Duration) Option {
	return func(e *Engine) {
		e.pacing = d
	}
}

// WithScheduler replaces the timer implementation, mostly for tests.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		e.schedule = s
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger configures a logger for the Engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithIDGenerator replaces uuid.NewString for new sessions.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// New creates an engine over a session manager.
func New(sessions *session.Manager, opts ...Option) (*Engine, error) {
	e := &Engine{
		sessions:     sessions,
		systemPrompt: enrich.DefaultSystemPrompt(),
		pacing:       DefaultPacing,
		schedule:     afterFunc,
		logger:       logging.NewNop(),
		newID:        uuid.NewString,
		inflight:     make(map[string]inflightTurn),
		resets:       make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.flow == nil {
		f, err := flow.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to load default flow: %w", err)
		}
		e.flow = f
	}
	e.flow = WithBroker(e.flow)
	if err := validator.ValidateFlow(e.flow); err != nil {
		return nil, fmt.Errorf("invalid flow table: %w", err)
	}
	return e, nil
}

func afterFunc(d time.Duration, fn func()) {
	if d <= 0 {
		fn()
		return
	}
	time.AfterFunc(d, fn)
}

// Flow returns the flow table including the broker sub-flow.
func (e *Engine) Flow() *domain.Flow {
	return e.flow
}

// Start returns the session with the given id, creating it when needed.
// An empty id creates a session with a generated id.
func (e *Engine) Start(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		id = e.newID()
	}
	s, created, err := e.sessions.LoadOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}
	if created {
		e.logger.Debug("Session created", "session_id", id)
	}
	return s, nil
}

// Session loads a session.
func (e *Engine) Session(ctx context.Context, id string) (*domain.Session, error) {
	return e.sessions.Load(ctx, id)
}

// Reset clears the conversation and cancels any in-flight agent turn.
// Pending timers of the previous epoch become no-ops.
func (e *Engine) Reset(ctx context.Context, id string) (*domain.Session, error) {
	e.cancelTurn(id)
	s, err := e.sessions.Update(ctx, id, func(s *domain.Session) error {
		s.Reset(e.sessions.Now().UTC())
		return nil
	})
	if err != nil {
		return nil, err
	}
	// A turn committed before the reset may register after it.
	e.markReset(id, s.Epoch)
	e.logger.Info("Session reset", "session_id", id, "epoch", s.Epoch)
	return s, nil
}

// Wait blocks until pending timers, agent turns and submissions finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Expect describes the input the session accepts next.
func (e *Engine) Expect(s *domain.Session) domain.Expectation {
	if s.Busy() {
		return domain.Expectation{Mode: domain.ExpectWait, StepID: s.StepID, Busy: true}
	}
	if s.Persona == "" {
		if len(s.Log) == 0 {
			return domain.Expectation{Mode: domain.ExpectPersona, Options: domain.PersonaLabels()}
		}
		return domain.Expectation{Mode: domain.ExpectFreeform}
	}
	step, ok := e.flow.Step(s.StepID)
	if !ok || step.Terminal || s.Status == domain.StatusCompleted {
		return domain.Expectation{Mode: domain.ExpectFreeform, StepID: s.StepID}
	}
	exp := domain.Expectation{
		Mode:   string(step.Mode),
		StepID: step.ID,
		Errors: s.FormErrors,
	}
	switch step.Mode {
	case domain.ModeChoice, domain.ModeChecklist:
		exp.Options = step.OptionLabels()
	case domain.ModeForm:
		exp.Fields = step.Fields
	}
	return exp
}

// effects collects the work an update schedules once the lock is released.
type effects struct {
	epoch       int
	persona     domain.Persona
	entered     []string
	paceTo      string
	converse    bool
	submissions []domain.Submission
	invalid     *domain.ValidationError
}

func (fx *effects) pending() bool {
	return fx.paceTo != "" || fx.converse
}

// run fires hooks and starts deferred work for a committed update.
func (e *Engine) run(ctx context.Context, s *domain.Session, fx *effects) {
	now := e.sessions.Now().UTC()
	if fx.persona != "" && e.hooks.OnPersonaSelected != nil {
		e.hooks.OnPersonaSelected(ctx, &domain.PersonaEvent{
			EventBase: domain.EventBase{Timestamp: now, Type: domain.EventPersonaSelected, SessionID: s.ID},
			Persona:   fx.persona,
		})
	}
	e.stepsEntered(ctx, s, fx.entered)

	for _, sub := range fx.submissions {
		e.submit(ctx, sub)
	}

	if fx.paceTo != "" {
		e.pace(ctx, s.ID, fx.epoch, fx.paceTo)
	}
	if fx.converse {
		e.converse(ctx, s)
	}
}

func (e *Engine) stepsEntered(ctx context.Context, s *domain.Session, ids []string) {
	if e.hooks.OnStepEnter == nil {
		return
	}
	for _, id := range ids {
		e.hooks.OnStepEnter(ctx, &domain.StepEvent{
			EventBase: domain.EventBase{Timestamp: e.sessions.Now().UTC(), Type: domain.EventStepEnter, SessionID: s.ID},
			Persona:   s.Persona,
			StepID:    id,
		})
	}
}

// pace enters a step after the pacing delay, unless the session was reset.
func (e *Engine) pace(ctx context.Context, id string, epoch int, stepID string) {
	ctx = context.WithoutCancel(ctx)
	e.wg.Add(1)
	e.schedule(e.pacing, func() {
		defer e.wg.Done()

		fx := &effects{epoch: epoch}
		s, err := e.sessions.Update(ctx, id, func(s *domain.Session) error {
			if s.Epoch != epoch || s.Status != domain.StatusThinking {
				return errStale
			}
			e.touch(s)
			return e.enter(s, stepID, fx)
		})
		if errors.Is(err, errStale) {
			e.logger.Debug("Discarded stale pacing timer", "session_id", id, "step_id", stepID)
			return
		}
		if err != nil {
			e.logger.Error("Failed to advance after pacing delay", "session_id", id, "step_id", stepID, "err", err)
			return
		}
		e.run(ctx, s, fx)
	})
}

// commit applies fn under the session lock, then runs its effects.
// The returned session reflects deferred work that already completed.
func (e *Engine) commit(ctx context.Context, id string, fn func(*domain.Session, *effects) error) (*domain.Session, error) {
	fx := &effects{}
	s, err := e.sessions.Update(ctx, id, func(s *domain.Session) error {
		fx.epoch = s.Epoch
		e.touch(s)
		return fn(s, fx)
	})
	if err != nil {
		return nil, err
	}
	e.run(ctx, s, fx)

	if fx.pending() {
		if latest, err := e.sessions.Load(ctx, id); err == nil {
			s = latest
		}
	}
	if fx.invalid != nil {
		return s, fx.invalid
	}
	return s, nil
}

// touch stamps the session so appended messages carry the current time.
func (e *Engine) touch(s *domain.Session) {
	s.UpdatedAt = e.sessions.Now().UTC()
}
