package runtime

import (
	"context"

	"github.com/pixl-ae/leadflow/pkg/domain"
)

// submit delivers a snapshot to the sink without blocking the conversation.
// Failures are logged and reported to hooks; the session is never rolled back.
func (e *Engine) submit(ctx context.Context, sub domain.Submission) {
	if e.sink == nil {
		e.logger.Debug("No submission sink configured", "session_id", sub.SessionID, "kind", sub.Kind)
		return
	}
	ctx = context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		err := e.sink.Submit(ctx, sub)
		if err != nil {
			e.logger.Error("Submission failed",
				"session_id", sub.SessionID,
				"kind", sub.Kind,
				"action", sub.Action,
				"err", err,
			)
		} else {
			e.logger.Info("Submission delivered", "session_id", sub.SessionID, "kind", sub.Kind, "action", sub.Action)
		}

		if e.hooks.OnSubmission != nil {
			e.hooks.OnSubmission(ctx, &domain.SubmissionEvent{
				EventBase: domain.EventBase{Timestamp: e.sessions.Now().UTC(), Type: domain.EventSubmission, SessionID: sub.SessionID},
				Kind:      sub.Kind,
				Action:    sub.Action,
				Err:       err,
			})
		}
	}()
}
