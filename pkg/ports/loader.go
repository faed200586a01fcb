package ports

import (
	"context"

	"github.com/pixl-ae/leadflow/pkg/domain"
)

// FlowLoader produces a validated flow table.
type FlowLoader interface {
	LoadFlow(ctx context.Context) (*domain.Flow, error)
}
