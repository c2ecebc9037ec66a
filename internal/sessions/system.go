package sessions

import (
	"context"

	"github.com/google/uuid"

	"github.com/scrivenerhq/scrivener/pkg/pagination"
)

// System defines the public contract for session domain operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	Create(ctx context.Context, cmd CreateCommand) (*Session, error)
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Extract(ctx context.Context, id uuid.UUID) (*Session, error)
	Replace(ctx context.Context, id uuid.UUID, values map[string]string) (*ReplaceResult, error)
	SaveEdited(ctx context.Context, id uuid.UUID, data []byte) (*Session, error)
	Snapshot(ctx context.Context, id uuid.UUID) (string, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
