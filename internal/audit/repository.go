package audit

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/query"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/repository"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/storage"
)

// MaxExportEntries bounds a single export or archive.
const MaxExportEntries = 50000

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
	now        func() time.Time
}

// New creates an audit ledger implementing the System interface.
// store receives archives and may be nil, in which case Archive fails.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "audit"),
		pagination: pagination,
		now:        time.Now,
	}
}

func (r *repo) Handler(gate *permissions.Gate) *Handler {
	return NewHandler(r, gate, r.logger, r.pagination)
}

func (r *repo) Append(ctx context.Context, entry Entry) (*Entry, error) {
	if err := Insert(ctx, r.db, &entry); err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	r.logger.Info("audit entry appended", "id", entry.ID, "record", entry.RecordID, "action", entry.Action)
	return &entry, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Entry, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	e, err := repository.QueryOne(ctx, r.db, q, args, scanEntry)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &e, nil
}

func (r *repo) builder(page pagination.PageRequest, filters Filters) *query.Builder {
	qb := query.
		NewBuilder(projection, defaultSort...).
		WhereSearch(page.Search, searchFields...)
	return filters.Apply(qb)
}

func (r *repo) Search(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Entry], error) {
	page.Normalize(r.pagination)
	qb := r.builder(page, filters)

	if page.Strategy == pagination.StrategyOffset {
		if len(page.Sort) > 0 {
			qb.OrderByFields(page.Sort)
		}

		countSQL, countArgs := qb.BuildCount()
		var total int
		if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
			return nil, fmt.Errorf("count audit entries: %w", err)
		}

		pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
		entries, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanEntry)
		if err != nil {
			return nil, fmt.Errorf("query audit entries: %w", err)
		}

		result := pagination.NewPageResult(entries, total, page.Page, page.PageSize)
		return &result, nil
	}

	if err := seek(qb, page); err != nil {
		return nil, err
	}

	q, args := qb.BuildLimit(page.PageSize + 1)
	entries, err := repository.QueryMany(ctx, r.db, q, args, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}

	result := pagination.NewSeekResult(entries, page.Strategy, page.PageSize, position)
	return &result, nil
}

// seek positions qb after the page boundary of a keyset strategy.
func seek(qb *query.Builder, page pagination.PageRequest) error {
	switch page.Strategy {
	case pagination.StrategyCursor:
		if page.Cursor == "" {
			return nil
		}
		c, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return err
		}
		id, err := uuid.Parse(c.ID)
		if err != nil {
			return fmt.Errorf("%w: cursor id", pagination.ErrInvalidCursor)
		}
		qb.WhereKeysetBefore("Timestamp", "ID", c.Timestamp, id)
	case pagination.StrategyTime:
		switch {
		case page.Before == nil:
		case page.BeforeID != "":
			id, err := uuid.Parse(page.BeforeID)
			if err != nil {
				return fmt.Errorf("%w: before_id must be a uuid", ErrInvalidQuery)
			}
			qb.WhereKeysetBefore("Timestamp", "ID", *page.Before, id)
		default:
			qb.WhereBefore("Timestamp", *page.Before)
		}
	case pagination.StrategyID:
		if page.BeforeID == "" {
			return nil
		}
		id, err := uuid.Parse(page.BeforeID)
		if err != nil {
			return fmt.Errorf("%w: before_id must be a uuid", ErrInvalidQuery)
		}
		qb.WhereBefore("ID", id)
	}
	return nil
}

func (r *repo) Aggregate(ctx context.Context, filters Filters) (*Aggregation, error) {
	var agg Aggregation
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		q, args := r.builder(pagination.PageRequest{}, filters).BuildCount()
		if err := r.db.QueryRowContext(ctx, q, args...).Scan(&agg.Total); err != nil {
			return fmt.Errorf("count audit entries: %w", err)
		}
		return nil
	})

	groups := []struct {
		expr string
		dst  *[]Bucket
	}{
		{"Action", &agg.ByAction},
		{"ActorID", &agg.ByActor},
		{"Priority", &agg.ByPriority},
		{dayExpr, &agg.ByDay},
	}
	for _, grp := range groups {
		g.Go(func() error {
			q, args := r.builder(pagination.PageRequest{}, filters).BuildGroupCount(grp.expr)
			buckets, err := repository.QueryMany(ctx, r.db, q, args, scanBucket)
			if err != nil {
				return fmt.Errorf("aggregate audit entries by %s: %w", grp.expr, err)
			}
			if buckets == nil {
				buckets = []Bucket{}
			}
			*grp.dst = buckets
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *repo) collect(ctx context.Context, filters Filters) ([]Entry, error) {
	q, args := r.builder(pagination.PageRequest{}, filters).BuildLimit(MaxExportEntries)
	entries, err := repository.QueryMany(ctx, r.db, q, args, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	return entries, nil
}

func (r *repo) Export(ctx context.Context, w io.Writer, filters Filters, format Format) (int, error) {
	entries, err := r.collect(ctx, filters)
	if err != nil {
		return 0, err
	}
	if err := write(w, entries, format); err != nil {
		return 0, fmt.Errorf("write %s export: %w", format, err)
	}
	return len(entries), nil
}

func (r *repo) Archive(ctx context.Context, filters Filters, format Format) (*Archive, error) {
	if r.storage == nil {
		return nil, fmt.Errorf("archive audit entries: storage not configured")
	}

	var buf bytes.Buffer
	n, err := r.Export(ctx, &buf, filters, format)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	key := ArchiveKey(now, uuid.New(), format)
	if err := r.storage.Upload(ctx, key, &buf, format.ContentType()); err != nil {
		return nil, fmt.Errorf("upload audit archive: %w", err)
	}

	r.logger.Info("audit archive written", "key", key, "entries", n)
	return &Archive{Key: key, Format: format, Entries: n, CreatedAt: now}, nil
}

// ArchivePrefix is the blob key prefix shared by every audit archive.
const ArchivePrefix = "audit/exports/"

// ArchiveKey returns the blob key audit/exports/YYYY/MM/DD/<id>.<ext>.
func ArchiveKey(at time.Time, id uuid.UUID, format Format) string {
	return fmt.Sprintf("%s%s/%s.%s", ArchivePrefix, at.UTC().Format("2006/01/02"), id, format)
}
