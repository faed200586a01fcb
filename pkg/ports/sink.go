package ports

import (
	"context"
	"errors"

	"github.com/pixl-ae/leadflow/pkg/domain"
)

// SubmissionSink receives finalized answer snapshots.
// Implementations must be safe for concurrent use.
type SubmissionSink interface {
	Submit(ctx context.Context, sub domain.Submission) error
}

// SinkFunc adapts a function to SubmissionSink.
type SinkFunc func(ctx context.Context, sub domain.Submission) error

// Submit calls f.
func (f SinkFunc) Submit(ctx context.Context, sub domain.Submission) error {
	return f(ctx, sub)
}

// MultiSink delivers every submission to all sinks and joins their errors.
type MultiSink []SubmissionSink

// Submit fans the submission out; a failing sink does not stop the others.
func (m MultiSink) Submit(ctx context.Context, sub domain.Submission) error {
	var errs []error
	for _, s := range m {
		if err := s.Submit(ctx, sub); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
