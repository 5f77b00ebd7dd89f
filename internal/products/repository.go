package products

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/audit"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/query"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a record repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "products"),
		pagination: pagination,
	}
}

func (r *repo) Handler(gate *permissions.Gate, maxBody int64) *Handler {
	return NewHandler(r, gate, r.logger, r.pagination, maxBody)
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Product, error) {
	cmd.SKU = strings.TrimSpace(cmd.SKU)
	cmd.Name = strings.TrimSpace(cmd.Name)
	if cmd.SKU == "" || cmd.Name == "" {
		return nil, ErrInvalid
	}

	q := `
		INSERT INTO products(id, sku, name, category, department, specialty, priority, lifecycle_state, state_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '[]'::jsonb)
		RETURNING ` + returning

	args := []any{
		uuid.New(),
		cmd.SKU,
		cmd.Name,
		cmd.Category,
		cmd.Department,
		cmd.Specialty,
		cmd.Priority,
		string(Draft),
	}

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Product, error) {
		return repository.QueryOne(ctx, tx, q, args, scanProduct)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("record created", "id", p.ID, "sku", p.SKU)
	return &p, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Product, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	p, err := repository.QueryOne(ctx, r.db, q, args, scanProduct)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Product], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort...).
		WhereSearch(page.Search, "SKU", "Name", "Category")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Select(ctx context.Context, filters Filters, limit int) ([]Product, error) {
	qb := query.NewBuilder(projection,
		query.SortField{Field: "CreatedAt"},
		query.SortField{Field: "ID"},
	)
	filters.Apply(qb)

	q, args := qb.BuildLimit(limit)
	items, err := repository.QueryMany(ctx, r.db, q, args, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	return items, nil
}

const commitSQL = `
	UPDATE products SET
		lifecycle_state = $2,
		state_history = $3,
		submitted_by = $4,
		submitted_at = $5,
		reviewed_by = $6,
		reviewed_at = $7,
		published_by = $8,
		published_at = $9,
		rejection_reason = $10,
		assigned_reviewer_id = $11,
		updated_at = NOW()
	WHERE id = $1 AND updated_at = $12
	RETURNING ` + returning

func (r *repo) Commit(ctx context.Context, p *Product, entry *audit.Entry) (*Product, error) {
	history, err := json.Marshal(p.StateHistory)
	if err != nil {
		return nil, fmt.Errorf("encode state history: %w", err)
	}

	args := []any{
		p.ID,
		string(p.LifecycleState),
		history,
		p.SubmittedBy,
		p.SubmittedAt,
		p.ReviewedBy,
		p.ReviewedAt,
		p.PublishedBy,
		p.PublishedAt,
		p.RejectionReason,
		p.AssignedReviewerID,
		p.UpdatedAt,
	}

	saved, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Product, error) {
		saved, err := repository.QueryOne(ctx, tx, commitSQL, args, scanProduct)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return saved, ErrConflict
			}
			return saved, fmt.Errorf("update record: %w", err)
		}
		if err := audit.Insert(ctx, tx, entry); err != nil {
			return saved, fmt.Errorf("append audit entry: %w", err)
		}
		return saved, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info(
		"transition committed",
		"id", saved.ID,
		"state", saved.LifecycleState,
		"audit_entry", entry.ID,
	)
	return &saved, nil
}
