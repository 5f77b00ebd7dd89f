package reviewers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/query"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/repository"
)

// candidateBatch is the number of directory rows loaded per query during selection.
const candidateBatch = 500

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
	now        func() time.Time
}

// New creates a reviewer directory implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "reviewers"),
		pagination: pagination,
		now:        time.Now,
	}
}

func (r *repo) Handler(gate *permissions.Gate, maxBody int64) *Handler {
	return NewHandler(r, gate, r.logger, r.pagination, maxBody)
}

func (r *repo) Register(ctx context.Context, cmd RegisterCommand) (*Profile, error) {
	cmd.UserID = strings.TrimSpace(cmd.UserID)
	if cmd.UserID == "" {
		return nil, ErrInvalid
	}
	if cmd.Availability == "" {
		cmd.Availability = Available
	}
	if !cmd.Availability.Valid() {
		return nil, ErrInvalid
	}
	if cmd.MaxAssignments <= 0 {
		cmd.MaxAssignments = DefaultMaxAssignments
	}
	if cmd.Specialties == nil {
		cmd.Specialties = []string{}
	}
	specialties, err := json.Marshal(cmd.Specialties)
	if err != nil {
		return nil, fmt.Errorf("encode specialties: %w", err)
	}

	q := `
		INSERT INTO reviewers(user_id, display_name, availability, max_assignments, quality_score, rating, department, specialties)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + returning

	args := []any{
		cmd.UserID,
		cmd.DisplayName,
		string(cmd.Availability),
		cmd.MaxAssignments,
		cmd.QualityScore,
		cmd.Rating,
		cmd.Department,
		specialties,
	}

	p, err := repository.QueryOne(ctx, r.db, q, args, scanProfile)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("reviewer registered", "user_id", p.UserID, "department", p.Department)
	return &p, nil
}

func (r *repo) Find(ctx context.Context, userID string) (*Profile, error) {
	q, args := query.NewBuilder(projection).BuildSingle("UserID", userID)

	p, err := repository.QueryOne(ctx, r.db, q, args, scanProfile)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Profile], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort...).
		WhereSearch(page.Search, "UserID", "DisplayName", "Department")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count reviewers: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanProfile)
	if err != nil {
		return nil, fmt.Errorf("query reviewers: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) GetAvailability(ctx context.Context, userID string) (*AvailabilityStatus, error) {
	p, err := r.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &AvailabilityStatus{
		UserID:    p.UserID,
		Effective: p.AvailabilityAt(r.now()),
		Base:      p.Availability,
		Scheduled: p.ScheduledAvailability,
	}, nil
}

// update runs an UPDATE ... RETURNING against one reviewer.
func (r *repo) update(ctx context.Context, userID, set string, args ...any) (*Profile, error) {
	q := fmt.Sprintf(
		"UPDATE reviewers SET %s, updated_at = NOW() WHERE user_id = $1 RETURNING %s",
		set, returning,
	)

	p, err := repository.QueryOne(ctx, r.db, q, append([]any{userID}, args...), scanProfile)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (r *repo) SetAvailability(ctx context.Context, userID string, cmd AvailabilityCommand) (*Profile, error) {
	if !cmd.Status.Valid() {
		return nil, ErrInvalid
	}

	if cmd.StartAt == nil && cmd.EndAt == nil {
		p, err := r.update(ctx, userID,
			"availability = $2, scheduled_status = NULL, scheduled_start = NULL, scheduled_end = NULL",
			string(cmd.Status),
		)
		if err != nil {
			return nil, err
		}
		r.logger.Info("availability set", "user_id", userID, "status", cmd.Status)
		return p, nil
	}

	if cmd.StartAt == nil || cmd.EndAt == nil || !cmd.StartAt.Before(*cmd.EndAt) {
		return nil, ErrInvalid
	}

	p, err := r.update(ctx, userID,
		"scheduled_status = $2, scheduled_start = $3, scheduled_end = $4",
		string(cmd.Status), *cmd.StartAt, *cmd.EndAt,
	)
	if err != nil {
		return nil, err
	}
	r.logger.Info("availability scheduled", "user_id", userID, "status", cmd.Status, "start", *cmd.StartAt, "end", *cmd.EndAt)
	return p, nil
}

func (r *repo) SetMaxAssignments(ctx context.Context, userID string, n int) (*Profile, error) {
	if n < 0 {
		return nil, ErrInvalid
	}
	p, err := r.update(ctx, userID, "max_assignments = $2", n)
	if err != nil {
		return nil, err
	}
	r.logger.Info("capacity set", "user_id", userID, "max_assignments", n)
	return p, nil
}

func (r *repo) Summary(ctx context.Context, userID string) (*Summary, error) {
	p, err := r.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	s := Summarize(*p, r.now())
	return &s, nil
}

func (r *repo) SetBackupReviewer(ctx context.Context, userID string, backupID *string) (*Profile, error) {
	if backupID != nil && *backupID == userID {
		return nil, ErrSelfSubstitution
	}
	p, err := r.update(ctx, userID, "backup_reviewer_id = $2", backupID)
	if err != nil {
		return nil, err
	}
	r.logger.Info("backup reviewer set", "user_id", userID, "backup", backupID)
	return p, nil
}

func (r *repo) SetTemporaryDelegation(ctx context.Context, userID string, d *Delegation) (*Profile, error) {
	if d == nil {
		p, err := r.update(ctx, userID,
			"delegate_id = NULL, delegation_start = NULL, delegation_end = NULL, delegation_note = NULL",
		)
		if err != nil {
			return nil, err
		}
		r.logger.Info("delegation cleared", "user_id", userID)
		return p, nil
	}

	if d.DelegateID == userID {
		return nil, ErrSelfSubstitution
	}
	if d.DelegateID == "" || !d.StartAt.Before(d.EndAt) {
		return nil, ErrInvalid
	}

	p, err := r.update(ctx, userID,
		"delegate_id = $2, delegation_start = $3, delegation_end = $4, delegation_note = $5",
		d.DelegateID, d.StartAt, d.EndAt, d.Note,
	)
	if err != nil {
		return nil, err
	}
	r.logger.Info("delegation set", "user_id", userID, "delegate", d.DelegateID, "end", d.EndAt)
	return p, nil
}

func (r *repo) Pick(ctx context.Context, req Request) (*Selection, error) {
	candidates, err := r.candidates(ctx, req.Pool)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	lookup := func(userID string) (Profile, bool) {
		p, err := r.Find(ctx, userID)
		if err != nil {
			r.logger.Warn("substitute lookup failed", "user_id", userID, "error", err)
			return Profile{}, false
		}
		return *p, true
	}

	return Select(req, candidates, lookup, r.now())
}

// candidates loads every profile in pool, or the whole directory when pool is empty,
// walking user ids downwards in batches.
func (r *repo) candidates(ctx context.Context, pool []string) ([]Profile, error) {
	var (
		all   []Profile
		after any
	)
	for {
		qb := query.NewBuilder(projection, query.SortField{Field: "UserID", Descending: true})
		Filters{UserIDs: pool}.Apply(qb).WhereBefore("UserID", after)

		q, args := qb.BuildLimit(candidateBatch)
		batch, err := repository.QueryMany(ctx, r.db, q, args, scanProfile)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < candidateBatch {
			return all, nil
		}
		after = batch[len(batch)-1].UserID
	}
}

func (r *repo) Assign(ctx context.Context, req Request) (*Selection, error) {
	sel, err := r.Pick(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := r.RecordAssignment(ctx, sel.AssigneeID()); err != nil {
		return nil, err
	}
	sel.Reviewer.CurrentAssignments++

	r.logger.Info("reviewer assigned", "user_id", sel.AssigneeID(), "policy", req.Policy, "substitutions", len(sel.Substitutions))
	return sel, nil
}

func (r *repo) RecordAssignment(ctx context.Context, userID string) error {
	err := repository.ExecExpectOne(ctx, r.db, `
		UPDATE reviewers
		SET current_assignments = current_assignments + 1, last_assigned_at = $2, updated_at = NOW()
		WHERE user_id = $1`,
		userID, r.now().UTC(),
	)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (r *repo) RecordReview(ctx context.Context, userID string, approved bool) error {
	approval := 0
	if approved {
		approval = 1
	}
	err := repository.ExecExpectOne(ctx, r.db, `
		UPDATE reviewers
		SET current_assignments = GREATEST(current_assignments - 1, 0),
			reviews_completed = reviews_completed + 1,
			approvals = approvals + $2,
			updated_at = NOW()
		WHERE user_id = $1`,
		userID, approval,
	)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}
