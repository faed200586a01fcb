package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/ports"
)

// ApologyMessage is appended when the agent cannot answer.
const ApologyMessage = "Sorry, something went wrong contacting the AI service."

var errNoAgent = errors.New("no dialog agent configured")

// startTurn records a free-text message and hands the turn to the agent
// once the update is committed.
func (e *Engine) startTurn(s *domain.Session, text string, fx *effects) {
	s.Append(domain.SenderUser, domain.KindText, text, nil)
	s.Status = domain.StatusStreaming
	fx.converse = true
}

// history maps the sealed log to role-tagged turns.
func history(log []domain.Message) []ports.Turn {
	turns := make([]ports.Turn, 0, len(log))
	for _, m := range log {
		if m.Pending || m.Text == "" {
			continue
		}
		role := ports.RoleAssistant
		if m.Sender == domain.SenderUser {
			role = ports.RoleUser
		}
		turns = append(turns, ports.Turn{Role: role, Content: m.Text})
	}
	return turns
}

// converse streams one agent turn in the background.
func (e *Engine) converse(ctx context.Context, s *domain.Session) {
	req := ports.AgentRequest{
		SystemPrompt: e.systemPrompt,
		History:      history(s.Log),
	}
	if e.enricher != nil {
		req.SystemPrompt = e.enricher.Enrich(e.systemPrompt, s.LastUserText())
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if !e.trackTurn(s.ID, s.Epoch, cancel) {
		cancel()
		e.logger.Debug("Agent turn dropped after reset", "session_id", s.ID)
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.untrackTurn(s.ID, s.Epoch)
		defer cancel()
		e.stream(ctx, s.ID, s.Epoch, req)
	}()
}

func (e *Engine) stream(ctx context.Context, id string, epoch int, req ports.AgentRequest) {
	start := time.Now()
	chunks := 0
	err := e.consume(ctx, id, epoch, req, &chunks)
	if errors.Is(err, errStale) {
		e.logger.Debug("Agent turn abandoned after reset", "session_id", id)
		return
	}
	if err != nil {
		e.logger.Warn("Agent turn failed", "session_id", id, "chunks", chunks, "err", err)
	}

	_, uerr := e.sessions.Update(ctx, id, func(s *domain.Session) error {
		if s.Epoch != epoch {
			return errStale
		}
		e.touch(s)
		if p := s.Pending(); p != nil {
			if p.Text() == "" {
				p.Discard()
			} else {
				p.Seal()
			}
		}
		if err != nil {
			s.Append(domain.SenderAssistant, domain.KindText, ApologyMessage, nil)
		}
		e.settle(s)
		return nil
	})
	if uerr != nil && !errors.Is(uerr, errStale) {
		e.logger.Error("Failed to finish agent turn", "session_id", id, "err", uerr)
	}

	if e.hooks.OnAgentTurn != nil && !errors.Is(uerr, errStale) {
		e.hooks.OnAgentTurn(ctx, &domain.AgentEvent{
			EventBase: domain.EventBase{Timestamp: e.sessions.Now().UTC(), Type: domain.EventAgentTurn, SessionID: id},
			Chunks:    chunks,
			Duration:  time.Since(start),
			Err:       err,
		})
	}
}

// consume applies streamed deltas to the pending message, one update per chunk.
func (e *Engine) consume(ctx context.Context, id string, epoch int, req ports.AgentRequest, chunks *int) error {
	if e.agent == nil {
		return errNoAgent
	}
	ch, err := e.agent.Stream(ctx, req)
	if err != nil {
		return err
	}
	for chunk := range ch {
		if chunk.Err != nil {
			return chunk.Err
		}
		if chunk.Delta == "" {
			continue
		}
		_, err := e.sessions.Update(ctx, id, func(s *domain.Session) error {
			if s.Epoch != epoch {
				return errStale
			}
			e.touch(s)
			s.OpenPending().Append(chunk.Delta)
			return nil
		})
		if err != nil {
			return err
		}
		*chunks++
	}
	if err := ctx.Err(); err != nil {
		return errStale
	}
	return nil
}

// trackTurn registers the cancel handle of a turn. It reports false when
// the session was reset past epoch in the meantime.
func (e *Engine) trackTurn(id string, epoch int, cancel context.CancelFunc) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if latest, ok := e.resets[id]; ok && latest > epoch {
		return false
	}
	e.inflight[id] = inflightTurn{epoch: epoch, cancel: cancel}
	return true
}

func (e *Engine) untrackTurn(id string, epoch int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.inflight[id]; ok && t.epoch == epoch {
		delete(e.inflight, id)
	}
}

// markReset records the epoch of a reset and cancels any older turn that
// registered while the reset was being committed.
func (e *Engine) markReset(id string, epoch int) {
	e.mu.Lock()
	e.resets[id] = epoch
	t, ok := e.inflight[id]
	if ok && t.epoch < epoch {
		delete(e.inflight, id)
	}
	e.mu.Unlock()
	if ok && t.epoch < epoch {
		t.cancel()
	}
}

func (e *Engine) cancelTurn(id string) {
	e.mu.Lock()
	t, ok := e.inflight[id]
	delete(e.inflight, id)
	e.mu.Unlock()
	if ok {
		t.cancel()
	}
}
