package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/pixl-ae/leadflow"
	"github.com/pixl-ae/leadflow/internal/config"
	"github.com/pixl-ae/leadflow/internal/presentation/tui"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/validate"
)

// ChatOptions configures a terminal chat.
type ChatOptions struct {
	SessionID string
	Input     io.Reader
	Output    io.Writer
	// Interactive enables the banner and markdown rendering.
	Interactive bool
	Width       int
}

// lineReader reads lines in the background so a cancelled context
// interrupts a pending prompt.
type lineReader struct {
	lines chan string
	err   error
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{lines: make(chan string)}
	go func() {
		defer close(lr.lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			lr.lines <- sc.Text()
		}
		lr.err = sc.Err()
	}()
	return lr
}

func (lr *lineReader) next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-lr.lines:
		if !ok {
			if lr.err != nil {
				return "", lr.err
			}
			return "", io.EOF
		}
		return line, nil
	}
}

type chat struct {
	eng   *leadflow.Engine
	tr    *transcript
	lines *lineReader
	id    string
}

// RunChat runs an interactive conversation in the terminal until the
// visitor quits, the input ends or ctx is cancelled.
func RunChat(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ChatOptions) error {
	render := tui.Plain
	if opts.Interactive {
		tui.PrintBanner(opts.Output, leadflow.Version)
		render = tui.NewRenderer(opts.Width)
	}
	tr := newTranscript(opts.Output, render)

	app, err := Build(ctx, cfg, logger,
		WithListener(tr.Observe),
		WithHooks(domain.LifecycleHooks{
			OnSubmission: func(ctx context.Context, e *domain.SubmissionEvent) {
				if e.Err == nil {
					logger.Info("Submission recorded", "session_id", e.SessionID, "kind", e.Kind)
				}
			},
		}),
	)
	if err != nil {
		return err
	}
	defer app.Close()

	s, err := app.Engine.Start(ctx, opts.SessionID)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	tr.follow(s)
	tr.systemf("Session '%s' active. Type /reset to start over, /quit to leave.", s.ID)

	c := &chat{eng: app.Engine, tr: tr, lines: newLineReader(opts.Input), id: s.ID}
	err = c.loop(ctx)
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, errQuit) {
		return nil
	}
	return err
}

var errQuit = errors.New("quit")

func (c *chat) loop(ctx context.Context) error {
	for {
		c.eng.Wait()
		s, err := c.eng.Session(ctx, c.id)
		if err != nil {
			return err
		}
		if err := c.step(ctx, c.eng.Expect(s)); err != nil {
			var verr *domain.ValidationError
			switch {
			case errors.As(err, &verr):
				for _, field := range sortedKeys(verr.Fields) {
					c.tr.systemf("%s: %s", field, verr.Fields[field])
				}
			case errors.Is(err, domain.ErrUnknownOption),
				errors.Is(err, domain.ErrUnknownPersona),
				errors.Is(err, domain.ErrNoActiveStep):
				c.tr.systemf("Please pick one of the listed options.")
			case errors.Is(err, domain.ErrBusy):
				c.tr.systemf("One moment please…")
			default:
				return err
			}
		}
	}
}

func (c *chat) read(ctx context.Context, prompt string) (string, error) {
	c.tr.printf("%s", prompt)
	line, err := c.lines.next(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// command handles slash commands and reports whether line was one.
func (c *chat) command(ctx context.Context, line string) (bool, error) {
	switch strings.ToLower(line) {
	case "/quit", "/exit", "exit", "quit":
		c.tr.systemf("Bye!")
		return true, errQuit
	case "/reset":
		_, err := c.eng.Reset(ctx, c.id)
		return true, err
	}
	return false, nil
}

func (c *chat) step(ctx context.Context, exp domain.Expectation) error {
	if exp.Mode == string(domain.ModeForm) {
		return c.form(ctx, exp)
	}
	if exp.Mode == domain.ExpectPersona {
		c.tr.printf("bot> Hi! Which of these describes you best?\n%s", numbered(exp.Options))
	}

	line, err := c.read(ctx, "> ")
	if err != nil {
		return err
	}
	if ok, err := c.command(ctx, line); ok {
		return err
	}

	switch exp.Mode {
	case domain.ExpectPersona:
		label, _ := pick(line, exp.Options)
		_, err = c.eng.SelectPersona(ctx, c.id, label)
	case string(domain.ModeChoice):
		if label, ok := pick(line, exp.Options); ok {
			_, err = c.eng.Choose(ctx, c.id, label)
		} else {
			_, err = c.eng.Say(ctx, c.id, line)
		}
	case string(domain.ModeChecklist):
		if labels, ok := pickMany(line, exp.Options); ok {
			_, err = c.eng.Check(ctx, c.id, labels...)
		} else {
			_, err = c.eng.Say(ctx, c.id, line)
		}
	default:
		_, err = c.eng.Say(ctx, c.id, line)
	}
	return err
}

// form asks for each field in turn, then submits the values.
func (c *chat) form(ctx context.Context, exp domain.Expectation) error {
	for _, field := range sortedKeys(exp.Errors) {
		c.tr.systemf("%s: %s", field, exp.Errors[field])
	}
	values := make(map[string]domain.Value, len(exp.Fields))
	for _, f := range exp.Fields {
		label := f.Label
		if f.Required {
			label += "*"
		}
		if f.Kind == domain.FieldChecklist {
			c.tr.printf("%s", numbered(f.Choices))
		}
		line, err := c.read(ctx, label+": ")
		if err != nil {
			return err
		}
		if ok, err := c.command(ctx, line); ok {
			return err
		}

		switch f.Kind {
		case domain.FieldChecklist:
			picked, _ := pickMany(line, f.Choices)
			values[f.Name] = domain.List(picked...)
		case domain.FieldBudget:
			if formatted := validate.FormatThousands(line); formatted != "" && formatted != line {
				c.tr.systemf("Budget: %s", formatted)
				line = formatted
			}
			values[f.Name] = domain.Text(line)
		default:
			values[f.Name] = domain.Text(line)
		}
	}
	_, err := c.eng.SubmitForm(ctx, c.id, values)
	return err
}

// pick resolves a 1-based number or an exact label.
func pick(line string, options []string) (string, bool) {
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], true
	}
	for _, o := range options {
		if strings.EqualFold(o, line) {
			return o, true
		}
	}
	return line, false
}

// pickMany resolves comma-separated numbers or labels. Empty input picks nothing.
func pickMany(line string, options []string) ([]string, bool) {
	var out []string
	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, ok := pick(part, options)
		if !ok {
			return nil, false
		}
		out = append(out, label)
	}
	return out, true
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
