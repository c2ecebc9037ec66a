package compliance

import (
	"context"

	"github.com/google/uuid"

	"github.com/scrivenerhq/scrivener/pkg/pagination"
)

// System defines the public contract for compliance domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Rule], error)

	Find(ctx context.Context, id uuid.UUID) (*Rule, error)
	Create(ctx context.Context, cmd CreateCommand) (*Rule, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Rule, error)
	Delete(ctx context.Context, id uuid.UUID) error

	Analyze(ctx context.Context, documentID uuid.UUID, jurisdiction string) (*AnalysisResult, error)
}
