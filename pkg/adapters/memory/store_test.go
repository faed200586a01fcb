package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pixl-ae/leadflow/pkg/adapters/memory"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSessionStoreContract(t, store)
}

func TestRecorder(t *testing.T) {
	r := memory.NewRecorder()
	ctx := context.Background()

	assert.NoError(t, r.Submit(ctx, domain.Submission{Kind: domain.SubmissionBrokerCall}))
	r.FailWith(errors.New("down"))
	assert.Error(t, r.Submit(ctx, domain.Submission{Kind: domain.SubmissionBrokerLead}))

	subs := r.Submissions()
	assert.Len(t, subs, 1)
	assert.Equal(t, domain.SubmissionBrokerCall, subs[0].Kind)
}
