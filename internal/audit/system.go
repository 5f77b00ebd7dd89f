package audit

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
)

// System defines the public contract for the audit ledger.
type System interface {
	Handler(gate *permissions.Gate) *Handler

	Append(ctx context.Context, entry Entry) (*Entry, error)
	Find(ctx context.Context, id uuid.UUID) (*Entry, error)

	// Search pages through matching entries, newest first, using page.Strategy.
	Search(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Entry], error)

	Aggregate(ctx context.Context, filters Filters) (*Aggregation, error)
	Export(ctx context.Context, w io.Writer, filters Filters, format Format) (int, error)
	Archive(ctx context.Context, filters Filters, format Format) (*Archive, error)
}
