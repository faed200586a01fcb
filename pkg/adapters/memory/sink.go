package memory

import (
	"context"
	"sync"

	"github.com/pixl-ae/leadflow/pkg/domain"
)

// Recorder is a SubmissionSink that keeps submissions in memory.
// It backs tests and the terminal chat, where nothing should touch disk.
type Recorder struct {
	mu   sync.Mutex
	subs []domain.Submission
	err  error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes every following Submit return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Submit records the submission.
func (r *Recorder) Submit(ctx context.Context, sub domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.subs = append(r.subs, sub)
	return nil
}

// Submissions returns a copy of what was recorded.
func (r *Recorder) Submissions() []domain.Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Submission(nil), r.subs...)
}
