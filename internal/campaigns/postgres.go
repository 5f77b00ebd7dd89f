package campaigns

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/query"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "campaigns", "c").
	Project("id", "ID").
	Project("status", "Status").
	Project("created_by", "CreatedBy").
	Project("created_at", "CreatedAt").
	Project("document", "Document")

var defaultSort = []query.SortField{
	{Field: "CreatedAt", Descending: true},
	{Field: "ID", Descending: true},
}

const saveSQL = `
	INSERT INTO campaigns (id, status, created_by, created_at, document)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		document = EXCLUDED.document,
		updated_at = NOW()`

// PostgresStore keeps campaigns in the campaigns table. The full campaign,
// results included, is stored as a JSONB document next to indexed columns.
type PostgresStore struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

func NewPostgresStore(db *sql.DB, logger *slog.Logger, pagination pagination.Config) *PostgresStore {
	return &PostgresStore{
		db:         db,
		logger:     logger.With("store", "campaigns"),
		pagination: pagination,
	}
}

func (s *PostgresStore) Save(ctx context.Context, c *Campaign) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode campaign: %w", err)
	}

	err = repository.ExecExpectOne(ctx, s.db, saveSQL,
		c.ID, string(c.Status), c.CreatedBy, c.CreatedAt, doc,
	)
	if err != nil {
		return fmt.Errorf("save campaign: %w", repository.MapError(err, ErrNotFound, ErrDuplicate))
	}
	s.logger.Debug("campaign saved", "id", c.ID, "status", c.Status, "processed", c.ProcessedItems)
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	c, err := repository.QueryOne(ctx, s.db, q, args, scanCampaign)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

func (s *PostgresStore) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Campaign], error) {
	page.Normalize(s.pagination)

	var status *string
	if filters.Status != nil {
		v := string(*filters.Status)
		status = &v
	}
	qb := query.
		NewBuilder(projection, defaultSort...).
		WhereEquals("Status", status).
		WhereEquals("CreatedBy", filters.CreatedBy)

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count campaigns: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, s.db, pageSQL, pageArgs, scanCampaign)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func scanCampaign(sc repository.Scanner) (Campaign, error) {
	var (
		c       Campaign
		id      uuid.UUID
		status  string
		creator string
		doc     []byte
	)
	if err := sc.Scan(&id, &status, &creator, &c.CreatedAt, &doc); err != nil {
		return c, err
	}
	if err := json.Unmarshal(doc, &c); err != nil {
		return c, fmt.Errorf("decode campaign %s: %w", id, err)
	}
	c.ID = id
	c.Status = Status(status)
	c.CreatedBy = creator
	if c.Results == nil {
		c.Results = []ItemResult{}
	}
	return c, nil
}
