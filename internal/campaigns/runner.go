package campaigns

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/notifications"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/products"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/workflow"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/lifecycle"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
)

// Defaults applied to zero Config fields.
const (
	DefaultCeiling     = 1000
	DefaultBatchSize   = 50
	DefaultConcurrency = 4
)

// Config bounds campaign size and pacing.
type Config struct {
	Ceiling          int
	DefaultBatchSize int
	Concurrency      int
	Pause            time.Duration
	Pagination       pagination.Config
}

func (c Config) withDefaults() Config {
	if c.Ceiling < 1 {
		c.Ceiling = DefaultCeiling
	}
	if c.DefaultBatchSize < 1 {
		c.DefaultBatchSize = min(DefaultBatchSize, c.Ceiling)
	}
	if c.Concurrency < 1 {
		c.Concurrency = DefaultConcurrency
	}
	if !c.Pagination.Valid() {
		c.Pagination = pagination.DefaultConfig()
	}
	return c
}

// Runtime holds the collaborators of a Runner.
type Runtime struct {
	Executor  *workflow.Executor
	Products  products.System
	Store     Store
	Gate      *permissions.Gate
	Lifecycle *lifecycle.Coordinator
	Notifier  notifications.Notifier
	Logger    *slog.Logger
}

// System defines the public contract for bulk campaigns.
type System interface {
	Handler(maxBody int64) *Handler

	Start(ctx context.Context, actor identity.Identity, cmd StartCommand) (*Campaign, error)
	Get(ctx context.Context, id uuid.UUID) (*Campaign, error)
	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Campaign], error)
	Cancel(ctx context.Context, actor identity.Identity, id uuid.UUID) (*Campaign, error)
}

// run is the live state of a campaign owned by its background loop.
type run struct {
	mu       sync.Mutex
	campaign *Campaign
}

func (r *run) update(fn func(c *Campaign)) *Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.campaign)
	return r.campaign.Clone()
}

func (r *run) snapshot() *Campaign {
	return r.update(func(*Campaign) {})
}

// Runner starts campaigns and tracks the running ones.
type Runner struct {
	rt     Runtime
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	active map[uuid.UUID]*run
}

func NewRunner(rt Runtime, cfg Config) *Runner {
	if rt.Notifier == nil {
		rt.Notifier = notifications.Nop
	}
	return &Runner{
		rt:     rt,
		cfg:    cfg.withDefaults(),
		logger: rt.Logger.With("system", "campaigns"),
		now:    time.Now,
		active: make(map[uuid.UUID]*run),
	}
}

func (r *Runner) Handler(maxBody int64) *Handler {
	return NewHandler(r, r.rt.Gate, r.logger, r.cfg.Pagination, maxBody)
}

func (r *Runner) authorize(actor identity.Identity, action permissions.Action, target string) error {
	if !actor.Valid() {
		return outcome.New(outcome.Unauthenticated, identity.ErrMissing.Error())
	}
	d := r.rt.Gate.Check(actor.Role(), action, permissions.Context{ActorID: actor.ActorID, TargetID: target})
	if !d.Allowed {
		return outcome.New(outcome.PermissionDenied, d.Reason)
	}
	return nil
}

// Start selects the records, then either previews them or launches the background
// run. It returns before any item of a real run is processed.
func (r *Runner) Start(ctx context.Context, actor identity.Identity, cmd StartCommand) (*Campaign, error) {
	if err := r.authorize(actor, permissions.CampaignsStart, ""); err != nil {
		return nil, err
	}
	if cmd.SkipValidation {
		if err := r.authorize(actor, permissions.RecordsSkipValidation, ""); err != nil {
			return nil, err
		}
	}
	if _, err := products.ParseState(string(cmd.Action.To)); err != nil {
		return nil, outcome.Wrap(outcome.Validation, "invalid action", err)
	}

	size := cmd.BatchSize
	if size == 0 {
		size = r.cfg.DefaultBatchSize
	}
	if size < 1 || size > r.cfg.Ceiling {
		return nil, outcome.New(outcome.Validation, fmt.Sprintf("batch size must be between 1 and %d", r.cfg.Ceiling))
	}

	records, err := r.rt.Products.Select(ctx, cmd.Filter, r.cfg.Ceiling+1)
	if err != nil {
		return nil, fmt.Errorf("select campaign records: %w", err)
	}
	switch {
	case len(records) == 0:
		return nil, ErrNoRecords
	case len(records) > r.cfg.Ceiling:
		return nil, ErrTooMany
	}

	now := r.now().UTC()
	c := &Campaign{
		ID:             uuid.Must(uuid.NewV7()),
		Action:         cmd.Action,
		Filter:         cmd.Filter,
		BatchSize:      size,
		DryRun:         cmd.DryRun,
		SkipValidation: cmd.SkipValidation,
		Status:         Pending,
		TotalItems:     len(records),
		Progress:       Progress{TotalBatches: totalBatches(len(records), size)},
		Results:        []ItemResult{},
		CreatedBy:      actor.ActorID,
		CreatedAt:      now,
	}

	if cmd.DryRun {
		r.preview(ctx, c, records, actor)
		if err := r.rt.Store.Save(ctx, c); err != nil {
			return nil, err
		}
		r.logger.Info("campaign previewed", "id", c.ID, "items", c.TotalItems, "would_succeed", c.SuccessfulItems)
		return c.Clone(), nil
	}

	if err := r.rt.Store.Save(ctx, c); err != nil {
		return nil, err
	}

	rn := &run{campaign: c}
	r.mu.Lock()
	r.active[c.ID] = rn
	r.mu.Unlock()

	snapshot := rn.snapshot()
	r.rt.Lifecycle.Go(func(ctx context.Context) {
		r.execute(ctx, rn, records, actor)
	})

	r.logger.Info("campaign started", "id", c.ID, "items", c.TotalItems, "batch_size", size, "to", c.Action.To)
	r.notify(ctx, notifications.Event{
		Type:       notifications.TypeCampaignStarted,
		CampaignID: &snapshot.ID,
		ActorID:    actor.ActorID,
		To:         string(c.Action.To),
		Data:       map[string]any{"total_items": c.TotalItems},
	})
	return snapshot, nil
}

func (r *Runner) request(c *Campaign, rec products.Product, actor identity.Identity) workflow.Request {
	return workflow.Request{
		RecordID:           rec.ID,
		To:                 c.Action.To,
		Actor:              actor,
		Reason:             c.Action.Reason,
		Comment:            c.Action.Comment,
		AssignedReviewerID: c.Action.AssignedReviewerID,
		SkipValidation:     c.SkipValidation,
		Metadata:           map[string]any{"campaign_id": c.ID.String()},
	}
}

// preview computes would-be states without executing or auditing.
func (r *Runner) preview(ctx context.Context, c *Campaign, records []products.Product, actor identity.Identity) {
	results := make([]ItemResult, len(records))
	for i := range records {
		rec := &records[i]
		to, v := r.rt.Executor.Preview(ctx, rec, r.request(c, *rec, actor))
		results[i] = ItemResult{
			RecordID:  rec.ID,
			FromState: rec.CurrentState(),
			ToState:   to,
			Success:   v.IsValid,
			Errors:    v.Errors,
		}
	}

	started := r.now().UTC()
	c.StartedAt = &started
	c.record(c.Progress.TotalBatches, results)
	c.finish(Completed, started, "")
}

// execute is the background loop of one campaign. Items of a started batch run to
// completion even when ctx is cancelled.
func (r *Runner) execute(ctx context.Context, rn *run, records []products.Product, actor identity.Identity) {
	store := context.WithoutCancel(ctx)
	defer r.release(rn)
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("campaign panicked", "id", rn.campaign.ID, "panic", p)
			c := rn.update(func(c *Campaign) {
				c.finish(Failed, r.now().UTC(), fmt.Sprintf("campaign panicked: %v", p))
			})
			r.persist(store, c)
		}
	}()

	c := rn.update(func(c *Campaign) {
		started := r.now().UTC()
		c.Status = Running
		c.StartedAt = &started
	})
	if !r.persist(store, c) {
		r.fail(store, rn, "campaign store unavailable")
		return
	}

	size := c.BatchSize
	for batch, start := 1, 0; start < len(records); batch, start = batch+1, start+size {
		if batch > 1 && r.cfg.Pause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(r.cfg.Pause):
			}
		}
		if stop, msg := r.stopping(ctx, rn); stop {
			c := rn.update(func(c *Campaign) { c.finish(Cancelled, r.now().UTC(), msg) })
			r.persist(store, c)
			r.logger.Info("campaign cancelled", "id", c.ID, "processed", c.ProcessedItems)
			return
		}

		end := min(start+size, len(records))
		results := r.batch(store, c, records[start:end], actor)

		c = rn.update(func(c *Campaign) { c.record(batch, results) })
		if !r.persist(store, c) {
			r.fail(store, rn, "campaign store unavailable")
			return
		}
		r.logger.Debug("campaign batch done", "id", c.ID, "batch", batch, "processed", c.ProcessedItems)
	}

	c = rn.update(func(c *Campaign) { c.finish(Completed, r.now().UTC(), "") })
	r.persist(store, c)
	r.logger.Info("campaign completed",
		"id", c.ID,
		"successful", c.SuccessfulItems,
		"failed", c.FailedItems,
	)
}

func (r *Runner) stopping(ctx context.Context, rn *run) (bool, string) {
	if ctx.Err() != nil {
		return true, "service shutting down"
	}
	rn.mu.Lock()
	defer rn.mu.Unlock()
	return rn.campaign.CancelRequested, ""
}

// batch runs one batch with bounded concurrency. Items never fail the group.
func (r *Runner) batch(ctx context.Context, c *Campaign, recs []products.Product, actor identity.Identity) []ItemResult {
	results := make([]ItemResult, len(recs))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i := range recs {
		g.Go(func() error {
			results[i] = r.item(ctx, c, recs[i], actor)
			return nil
		})
	}
	g.Wait()
	return results
}

func (r *Runner) item(ctx context.Context, c *Campaign, rec products.Product, actor identity.Identity) (res ItemResult) {
	res = ItemResult{RecordID: rec.ID, FromState: rec.CurrentState(), ToState: c.Action.To}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("campaign item panicked", "id", c.ID, "record", rec.ID, "panic", p)
			res.Success = false
			res.Errors = []outcome.Error{{Kind: outcome.Storage, Message: fmt.Sprintf("item panicked: %v", p)}}
		}
	}()

	out := r.rt.Executor.Execute(ctx, r.request(c, rec, actor))
	res.Success = out.Success
	res.Errors = out.Errors
	if out.FromState != "" {
		res.FromState = out.FromState
	}
	if out.Success {
		res.ToState = out.Record.CurrentState()
		id := out.AuditEntry.ID
		res.AuditEntryID = &id
	}
	return res
}

func (r *Runner) persist(ctx context.Context, c *Campaign) bool {
	if err := r.rt.Store.Save(ctx, c); err != nil {
		r.logger.Error("campaign save failed", "id", c.ID, "status", c.Status, "error", err)
		return false
	}
	return true
}

func (r *Runner) fail(ctx context.Context, rn *run, msg string) {
	c := rn.update(func(c *Campaign) { c.finish(Failed, r.now().UTC(), msg) })
	r.persist(ctx, c)
}

// release drops the run from the active set and announces the outcome.
func (r *Runner) release(rn *run) {
	c := rn.snapshot()
	r.mu.Lock()
	delete(r.active, c.ID)
	r.mu.Unlock()

	r.notify(context.Background(), notifications.Event{
		Type:       notifications.TypeCampaignFinished,
		CampaignID: &c.ID,
		ActorID:    c.CreatedBy,
		To:         string(c.Action.To),
		Data: map[string]any{
			"status":     string(c.Status),
			"successful": c.SuccessfulItems,
			"failed":     c.FailedItems,
		},
	})
}

func (r *Runner) notify(ctx context.Context, e notifications.Event) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("notifier panicked", "type", e.Type, "panic", p)
		}
	}()
	r.rt.Notifier.Notify(ctx, e)
}

func (r *Runner) lookup(id uuid.UUID) (*run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.active[id]
	return rn, ok
}

// Get returns the live state of a running campaign or the stored one.
func (r *Runner) Get(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	if rn, ok := r.lookup(id); ok {
		return rn.snapshot(), nil
	}
	return r.rt.Store.Get(ctx, id)
}

func (r *Runner) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Campaign], error) {
	return r.rt.Store.List(ctx, page, filters)
}

// Cancel asks a pending or running campaign to stop after its current batch. A
// stored campaign without a live run is cancelled immediately.
func (r *Runner) Cancel(ctx context.Context, actor identity.Identity, id uuid.UUID) (*Campaign, error) {
	if err := r.authorize(actor, permissions.CampaignsCancel, id.String()); err != nil {
		return nil, err
	}

	if rn, ok := r.lookup(id); ok {
		var finished bool
		c := rn.update(func(c *Campaign) {
			if c.Status.Terminal() {
				finished = true
				return
			}
			c.CancelRequested = true
		})
		if finished {
			return nil, ErrFinished
		}
		r.logger.Info("campaign cancel requested", "id", id, "actor", actor.ActorID)
		return c, nil
	}

	c, err := r.rt.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, ErrFinished
	}
	c.CancelRequested = true
	c.finish(Cancelled, r.now().UTC(), "cancelled without an active run")
	if err := r.rt.Store.Save(ctx, c); err != nil {
		return nil, err
	}
	r.logger.Info("campaign cancelled", "id", id, "actor", actor.ActorID)
	return c, nil
}

// Recover marks campaigns left pending or running by a previous process as
// failed. It returns how many were marked.
func (r *Runner) Recover(ctx context.Context) (int, error) {
	marked := 0
	for _, status := range []Status{Pending, Running} {
		for {
			page, err := r.rt.Store.List(ctx, pagination.PageRequest{Page: 1, PageSize: r.cfg.Pagination.MaxPageSize}, Filters{Status: &status})
			if err != nil {
				return marked, fmt.Errorf("list %s campaigns: %w", status, err)
			}
			orphaned := 0
			for i := range page.Data {
				c := &page.Data[i]
				if _, live := r.lookup(c.ID); live {
					continue
				}
				c.finish(Failed, r.now().UTC(), "interrupted by restart")
				if err := r.rt.Store.Save(ctx, c); err != nil {
					return marked, err
				}
				orphaned++
			}
			marked += orphaned
			if orphaned == 0 || !page.HasMore {
				break
			}
		}
	}
	if marked > 0 {
		r.logger.Warn("orphaned campaigns marked failed", "count", marked)
	}
	return marked, nil
}
