package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pixl-ae/leadflow/internal/docs"
	"github.com/pixl-ae/leadflow/internal/logging"
	"github.com/pixl-ae/leadflow/internal/metrics"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/ports"
	"github.com/pixl-ae/leadflow/pkg/sse"
)

// maxUploadSize bounds a document upload.
const maxUploadSize = 32 << 20

// Engine is the conversation engine served over HTTP.
type Engine interface {
	Start(ctx context.Context, sessionID string) (*domain.Session, error)
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	SelectPersona(ctx context.Context, sessionID, label string) (*domain.Session, error)
	Handle(ctx context.Context, sessionID string, in domain.Input) (*domain.Session, error)
	Reset(ctx context.Context, sessionID string) (*domain.Session, error)
	Expect(s *domain.Session) domain.Expectation
}

// DocumentIntake accepts uploads and keeps their log.
type DocumentIntake interface {
	Upload(ctx context.Context, doc ports.Document) (int, error)
	List() ([]docs.Entry, error)
}

// Server holds the handlers of the JSON API.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	docs     DocumentIntake
	metrics  *metrics.Metrics
	limiter  *limiter
	origins  []string
	maxInput int
	version  string
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithStreams shares a StreamManager, usually the one fed by the session
// manager's change listener.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithDocs enables the document intake routes.
func WithDocs(d DocumentIntake) Option {
	return func(s *Server) {
		s.docs = d
	}
}

// WithMetrics instruments the routes and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithAllowedOrigins sets the CORS origin allow-list.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithRateLimit caps visitor inputs per session and second. Zero disables it.
func WithRateLimit(perSecond float64) Option {
	return func(s *Server) {
		s.limiter = newLimiter(perSecond)
	}
}

// WithMaxInputSize overrides DefaultMaxInputSize.
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.maxInput = n
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = strings.TrimSpace(v)
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the server with its defaults applied.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		Engine:   engine,
		origins:  []string{"*"},
		maxInput: DefaultMaxInputSize,
		version:  "dev",
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}
	return s
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	return NewServer(engine, opts...).Routes()
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Get("/events", s.SubscribeEvents)
			r.Post("/reset", s.ResetSession)

			r.Group(func(r chi.Router) {
				r.Use(s.rateLimit)
				r.Post("/persona", s.SelectPersona)
				r.Post("/messages", s.PostMessage)
				r.Post("/options", s.ChooseOption)
				r.Post("/checklist", s.SubmitChecklist)
				r.Post("/forms", s.SubmitForm)
			})
		})
	})

	if s.docs != nil {
		r.Post("/api/docs/upload", s.UploadDocument)
		r.Get("/api/docs", s.ListDocuments)
	}
	return r
}

// SessionResponse is the body of every session endpoint.
type SessionResponse struct {
	Session *domain.Session    `json:"session"`
	Expect  domain.Expectation `json:"expect"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
	Session *domain.Session   `json:"session,omitempty"`
}

type createRequest struct {
	ID string `json:"id"`
}

type personaRequest struct {
	Label string `json:"label"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type optionRequest struct {
	Option string `json:"option"`
}

type checklistRequest struct {
	Selections []string `json:"selections"`
}

type formRequest struct {
	Fields map[string]domain.Value `json:"fields"`
}

// CreateSession handles POST /api/sessions. An empty body creates a
// session with a generated id.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := decode(r, &body, true); err != nil {
		s.badRequest(w, "CreateSession", err)
		return
	}
	sess, err := s.Engine.Start(r.Context(), strings.TrimSpace(body.ID))
	if err != nil {
		s.fail(w, "CreateSession", sess, err)
		return
	}
	s.respond(w, http.StatusCreated, sess)
}

// GetSession handles GET /api/sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Engine.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "GetSession", nil, err)
		return
	}
	s.respond(w, http.StatusOK, sess)
}

// SelectPersona handles POST /api/sessions/{id}/persona.
func (s *Server) SelectPersona(w http.ResponseWriter, r *http.Request) {
	var body personaRequest
	if err := decode(r, &body, false); err != nil {
		s.badRequest(w, "SelectPersona", err)
		return
	}
	sess, err := s.Engine.SelectPersona(r.Context(), chi.URLParam(r, "id"), body.Label)
	if err != nil {
		s.fail(w, "SelectPersona", sess, err)
		return
	}
	s.respond(w, statusFor(sess), sess)
}

// PostMessage handles POST /api/sessions/{id}/messages.
// The reply of an agent turn arrives on the event stream.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	if err := decode(r, &body, false); err != nil {
		s.badRequest(w, "PostMessage", err)
		return
	}
	text, err := SanitizeInput(body.Text, s.maxInput)
	if err != nil {
		s.logger.Warn("Input rejected", "err", err, "size", len(body.Text))
		s.badRequest(w, "PostMessage", err)
		return
	}
	s.handle(w, r, "PostMessage", domain.Input{Type: domain.InputText, Text: text})
}

// ChooseOption handles POST /api/sessions/{id}/options.
func (s *Server) ChooseOption(w http.ResponseWriter, r *http.Request) {
	var body optionRequest
	if err := decode(r, &body, false); err != nil {
		s.badRequest(w, "ChooseOption", err)
		return
	}
	s.handle(w, r, "ChooseOption", domain.Input{Type: domain.InputOption, Option: body.Option})
}

// SubmitChecklist handles POST /api/sessions/{id}/checklist.
func (s *Server) SubmitChecklist(w http.ResponseWriter, r *http.Request) {
	var body checklistRequest
	if err := decode(r, &body, false); err != nil {
		s.badRequest(w, "SubmitChecklist", err)
		return
	}
	s.handle(w, r, "SubmitChecklist", domain.Input{Type: domain.InputChecklist, Selections: body.Selections})
}

// SubmitForm handles POST /api/sessions/{id}/forms.
func (s *Server) SubmitForm(w http.ResponseWriter, r *http.Request) {
	var body formRequest
	if err := decode(r, &body, false); err != nil {
		s.badRequest(w, "SubmitForm", err)
		return
	}
	fields := make(map[string]domain.Value, len(body.Fields))
	for name, v := range body.Fields {
		if v.IsList() {
			fields[name] = v
			continue
		}
		clean, err := SanitizeInput(v.Text, s.maxInput)
		if err != nil {
			s.badRequest(w, "SubmitForm", err)
			return
		}
		fields[name] = domain.Text(clean)
	}
	s.handle(w, r, "SubmitForm", domain.Input{Type: domain.InputForm, Fields: fields})
}

// ResetSession handles POST /api/sessions/{id}/reset.
func (s *Server) ResetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Engine.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "ResetSession", nil, err)
		return
	}
	s.respond(w, http.StatusOK, sess)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request, op string, in domain.Input) {
	sess, err := s.Engine.Handle(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, op, sess, err)
		return
	}
	s.respond(w, statusFor(sess), sess)
}

// SubscribeEvents handles GET /api/sessions/{id}/events (SSE).
// The first event carries the full session, then one event per diff.
// Diffs published while the snapshot is loaded are delivered too, so a
// client may see a change both in the snapshot and in the first diffs.
// The optional watch query parameter filters diffs by the parts they touch.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: streaming not supported")
		return
	}

	id := chi.URLParam(r, "id")
	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	sess, err := s.Engine.Session(r.Context(), id)
	if err != nil {
		s.fail(w, "SubscribeEvents", nil, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	snapshot, err := json.Marshal(sess)
	if err != nil {
		s.logger.Error("Failed to encode session", "session_id", id, "err", err)
		return
	}
	if err := sse.Write(w, sse.Event{Name: "session", Data: string(snapshot)}); err != nil {
		return
	}
	flusher.Flush()
	s.logger.Debug("SSE client subscribed", "session_id", id)

	filter := parseWatch(r.URL.Query().Get("watch"))
	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "session_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !filter.keep(msg) {
				continue
			}
			if err := sse.Write(w, sse.Event{Name: "diff", Data: string(msg)}); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// UploadDocument handles POST /api/docs/upload with a multipart "file" part.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.badRequest(w, "UploadDocument", err)
		return
	}
	defer file.Close()

	chunks, err := s.docs.Upload(r.Context(), ports.Document{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		s.fail(w, "UploadDocument", nil, err)
		return
	}
	s.logger.Info("Document indexed", "name", header.Filename, "chunks", chunks)
	writeJSON(w, http.StatusOK, map[string]any{"name": header.Filename, "chunks": chunks})
}

// ListDocuments handles GET /api/docs.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	entries, err := s.docs.List()
	if err != nil {
		s.fail(w, "ListDocuments", nil, err)
		return
	}
	if entries == nil {
		entries = []docs.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "leadflow-http",
		"version": s.version,
	})
}

// statusFor answers 202 while the reply is still being produced.
func statusFor(sess *domain.Session) int {
	if sess != nil && sess.Busy() {
		return http.StatusAccepted
	}
	return http.StatusOK
}

func (s *Server) respond(w http.ResponseWriter, status int, sess *domain.Session) {
	writeJSON(w, status, SessionResponse{Session: sess, Expect: s.Engine.Expect(sess)})
}

func (s *Server) badRequest(w http.ResponseWriter, op string, err error) {
	s.logger.Warn(op+": invalid request", "err", err)
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

// fail maps engine errors to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, sess *domain.Session, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Debug(op+" rejected", "err", err, "status", status)
	}

	resp := ErrorResponse{Error: err.Error(), Session: sess}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		resp.Error = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}

func errorStatus(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrBusy),
		errors.Is(err, domain.ErrPersonaLocked),
		errors.Is(err, domain.ErrNoActiveStep):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownOption),
		errors.Is(err, domain.ErrUnknownPersona),
		errors.Is(err, domain.ErrPersonaRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body. With optional set an empty body is accepted.
func decode(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
