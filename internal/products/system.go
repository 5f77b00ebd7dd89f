package products

import (
	"context"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/audit"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
)

// System defines the public contract for record storage.
type System interface {
	Handler(gate *permissions.Gate, maxBody int64) *Handler

	Create(ctx context.Context, cmd CreateCommand) (*Product, error)
	Find(ctx context.Context, id uuid.UUID) (*Product, error)

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Product], error)

	// Select returns up to limit records matching filters, oldest first.
	Select(ctx context.Context, filters Filters, limit int) ([]Product, error)

	// Commit saves p and appends entry in one transaction. p.UpdatedAt must hold the
	// value read from storage; a concurrent write in between yields ErrConflict.
	Commit(ctx context.Context, p *Product, entry *audit.Entry) (*Product, error)
}
