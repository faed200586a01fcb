package ports_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestMultiSink_DeliversToAllAndJoinsErrors(t *testing.T) {
	var got []string
	boom := errors.New("boom")

	sink := ports.MultiSink{
		ports.SinkFunc(func(ctx context.Context, sub domain.Submission) error {
			got = append(got, "a:"+sub.Kind)
			return boom
		}),
		ports.SinkFunc(func(ctx context.Context, sub domain.Submission) error {
			got = append(got, "b:"+sub.Kind)
			return nil
		}),
	}

	err := sink.Submit(context.Background(), domain.Submission{Kind: domain.SubmissionCRM})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a:crm", "b:crm"}, got)
}

func TestMultiSink_Empty(t *testing.T) {
	assert.NoError(t, ports.MultiSink{}.Submit(context.Background(), domain.Submission{}))
}
