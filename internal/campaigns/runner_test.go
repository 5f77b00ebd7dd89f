package campaigns_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/audit"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/campaigns"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/editlock"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/notifications"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/products"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/workflow"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/lifecycle"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
)

var pageCfg = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

var (
	superadmin = identity.Identity{ActorID: "su-1", ActorRole: "superadmin"}
	editor     = identity.Identity{ActorID: "ed-1", ActorRole: "editor"}
	admin      = identity.Identity{ActorID: "ad-1", ActorRole: "admin"}
	lead       = identity.Identity{ActorID: "ld-1", ActorRole: "lead"}
)

// capabilities is the default role table plus a lead who may run campaigns but not
// skip validation.
func capabilities() map[string][]string {
	table := map[string][]string{
		"lead": {"records.read", "records.transition", "campaigns.read", "campaigns.start"},
	}
	for role, actions := range permissions.DefaultCapabilities() {
		for _, a := range actions {
			table[string(role)] = append(table[string(role)], string(a))
		}
	}
	return table
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memProducts serves records in creation order and commits them in memory.
type memProducts struct {
	mu       sync.Mutex
	order    []uuid.UUID
	records  map[uuid.UUID]*products.Product
	commits  atomic.Int64
	commitFn func(*products.Product) error
}

func newProducts(states ...products.State) *memProducts {
	m := &memProducts{records: make(map[uuid.UUID]*products.Product)}
	for _, s := range states {
		p := &products.Product{ID: uuid.New(), SKU: "SKU", Name: "Item", LifecycleState: products.Draft}
		if s != products.Draft {
			p.Enter(products.HistoryEntry{State: s, ActorID: "seed"})
		}
		m.order = append(m.order, p.ID)
		m.records[p.ID] = p
	}
	return m
}

func (m *memProducts) Handler(*permissions.Gate, int64) *products.Handler { return nil }

func (m *memProducts) Create(context.Context, products.CreateCommand) (*products.Product, error) {
	return nil, errors.New("not supported")
}

func (m *memProducts) Find(_ context.Context, id uuid.UUID) (*products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[id]
	if !ok {
		return nil, products.ErrNotFound
	}
	return p.Clone(), nil
}

func (m *memProducts) List(context.Context, pagination.PageRequest, products.Filters) (*pagination.PageResult[products.Product], error) {
	return nil, errors.New("not supported")
}

func (m *memProducts) Select(_ context.Context, _ products.Filters, limit int) ([]products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]products.Product, 0, min(limit, len(m.order)))
	for _, id := range m.order {
		if len(out) == limit {
			break
		}
		out = append(out, *m.records[id].Clone())
	}
	return out, nil
}

func (m *memProducts) Commit(_ context.Context, p *products.Product, entry *audit.Entry) (*products.Product, error) {
	if m.commitFn != nil {
		if err := m.commitFn(p); err != nil {
			return nil, err
		}
	}
	m.commits.Add(1)
	audit.Stamp(entry)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[p.ID] = p.Clone()
	return p.Clone(), nil
}

type fixture struct {
	runner *campaigns.Runner
	store  campaigns.Store
	recs   *memProducts
	events chan notifications.Event
}

func newFixture(t *testing.T, recs *memProducts, store campaigns.Store, cfg campaigns.Config) *fixture {
	t.Helper()
	gate, err := permissions.New(permissions.WithCapabilities(capabilities()))
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	machine, err := workflow.NewMachine(workflow.DefaultRules(), gate, nil)
	if err != nil {
		t.Fatalf("machine: %v", err)
	}
	exec := workflow.NewExecutor(machine, workflow.Runtime{
		Products: recs,
		Guard:    editlock.New(time.Minute, discard()),
		Gate:     gate,
		Logger:   discard(),
	})

	lc := lifecycle.New()
	t.Cleanup(func() {
		if err := lc.Shutdown(5 * time.Second); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})

	if store == nil {
		store = campaigns.NewMemoryStore(pageCfg)
	}
	f := &fixture{store: store, recs: recs, events: make(chan notifications.Event, 16)}
	f.runner = campaigns.NewRunner(campaigns.Runtime{
		Executor:  exec,
		Products:  recs,
		Store:     store,
		Gate:      gate,
		Lifecycle: lc,
		Notifier: notifications.NotifierFunc(func(_ context.Context, e notifications.Event) {
			select {
			case f.events <- e:
			default:
			}
		}),
		Logger: discard(),
	}, cfg)
	return f
}

func (f *fixture) wait(t *testing.T, id uuid.UUID) *campaigns.Campaign {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		c, err := f.runner.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if c.Status.Terminal() {
			return c
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("campaign %s did not finish", id)
	return nil
}

var submit = campaigns.Action{To: products.Review, AssignedReviewerID: "rv-1"}

func TestPartialFailureCompletes(t *testing.T) {
	recs := newProducts(products.Draft, products.Approved, products.Draft)
	f := newFixture(t, recs, nil, campaigns.Config{DefaultBatchSize: 2})

	started, err := f.runner.Start(context.Background(), superadmin, campaigns.StartCommand{Action: submit})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != campaigns.Pending || started.TotalItems != 3 || started.Progress.TotalBatches != 2 {
		t.Errorf("started = %+v", started)
	}

	c := f.wait(t, started.ID)
	if c.Status != campaigns.Completed {
		t.Fatalf("status = %s (%v)", c.Status, c.Error)
	}
	if c.SuccessfulItems != 2 || c.FailedItems != 1 || c.ProcessedItems != 3 {
		t.Errorf("counters = %d/%d/%d", c.SuccessfulItems, c.FailedItems, c.ProcessedItems)
	}
	if c.Progress.Percentage != 100 || c.Progress.CurrentBatch != 2 {
		t.Errorf("progress = %+v", c.Progress)
	}
	if len(c.Results) != 3 {
		t.Fatalf("results = %d", len(c.Results))
	}

	failed := c.Results[1]
	if failed.Success || failed.Errors[0].Kind != outcome.InvalidTransition || failed.FromState != products.Approved {
		t.Errorf("failed item = %+v", failed)
	}
	for _, i := range []int{0, 2} {
		r := c.Results[i]
		if !r.Success || r.ToState != products.Review || r.AuditEntryID == nil {
			t.Errorf("item %d = %+v", i, r)
		}
	}
	if c.StartedAt == nil || c.CompletedAt == nil {
		t.Error("timestamps missing")
	}
}

func TestSubmitUsesRecordReviewer(t *testing.T) {
	recs := newProducts(products.Draft, products.Draft)
	first := recs.order[0]
	rv := "rv-7"
	recs.records[first].AssignedReviewerID = &rv
	f := newFixture(t, recs, nil, campaigns.Config{})

	started, err := f.runner.Start(context.Background(), superadmin, campaigns.StartCommand{
		Action: campaigns.Action{To: products.Review},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	c := f.wait(t, started.ID)
	if c.SuccessfulItems != 1 || c.FailedItems != 1 {
		t.Fatalf("counters = %d/%d", c.SuccessfulItems, c.FailedItems)
	}
	if !c.Results[0].Success || c.Results[0].RecordID != first {
		t.Errorf("record with reviewer = %+v", c.Results[0])
	}
	if r := c.Results[1]; r.Success || r.Errors[0].Message != workflow.MsgReviewerRequired {
		t.Errorf("record without reviewer = %+v", r)
	}
}

func TestCeiling(t *testing.T) {
	states := make([]products.State, 1000)
	for i := range states {
		states[i] = products.Draft
	}

	t.Run("at ceiling", func(t *testing.T) {
		recs := newProducts(states...)
		f := newFixture(t, recs, nil, campaigns.Config{Ceiling: 1000, DefaultBatchSize: 250, Concurrency: 8})

		started, err := f.runner.Start(context.Background(), superadmin, campaigns.StartCommand{Action: submit})
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		c := f.wait(t, started.ID)
		if c.Status != campaigns.Completed || c.SuccessfulItems != 1000 {
			t.Errorf("campaign = %s with %d successes", c.Status, c.SuccessfulItems)
		}
	})

	t.Run("over ceiling", func(t *testing.T) {
		recs := newProducts(append(states, products.Draft)...)
		f := newFixture(t, recs, nil, campaigns.Config{Ceiling: 1000})

		_, err := f.runner.Start(context.Background(), superadmin, campaigns.StartCommand{Action: submit})
		if !errors.Is(err, campaigns.ErrTooMany) || outcome.KindOf(err) != outcome.CapacityExceeded {
			t.Fatalf("err = %v", err)
		}
		if n := recs.commits.Load(); n != 0 {
			t.Errorf("commits = %d", n)
		}
	})
}

func TestStartRejects(t *testing.T) {
	tests := []struct {
		name  string
		recs  *memProducts
		actor identity.Identity
		cmd   campaigns.StartCommand
		kind  outcome.Kind
	}{
		{"no records", newProducts(), superadmin, campaigns.StartCommand{Action: submit}, outcome.Validation},
		{"editor may not start", newProducts(products.Draft), editor, campaigns.StartCommand{Action: submit}, outcome.PermissionDenied},
		{"anonymous", newProducts(products.Draft), identity.Identity{}, campaigns.StartCommand{Action: submit}, outcome.Unauthenticated},
		{"unknown state", newProducts(products.Draft), admin, campaigns.StartCommand{Action: campaigns.Action{To: "LIMBO"}}, outcome.Validation},
		{"batch too large", newProducts(products.Draft), admin, campaigns.StartCommand{Action: submit, BatchSize: 5000}, outcome.Validation},
		{"skip validation needs capability", newProducts(products.Draft), lead, campaigns.StartCommand{Action: submit, SkipValidation: true}, outcome.PermissionDenied},
		{"lead may preview", newProducts(products.Draft), lead, campaigns.StartCommand{Action: submit, DryRun: true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.recs, nil, campaigns.Config{})
			_, err := f.runner.Start(context.Background(), tt.actor, tt.cmd)
			if outcome.KindOf(err) != tt.kind {
				t.Errorf("err = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestDryRun(t *testing.T) {
	recs := newProducts(products.Review, products.Draft)
	f := newFixture(t, recs, nil, campaigns.Config{})

	c, err := f.runner.Start(context.Background(), superadmin, campaigns.StartCommand{
		Action: campaigns.Action{To: products.Rejected, Reason: "catalog cleanup"},
		DryRun: true,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.Status != campaigns.Completed || !c.DryRun {
		t.Fatalf("campaign = %+v", c)
	}
	if c.Results[0].ToState != products.Draft || !c.Results[0].Success {
		t.Errorf("preview of reject = %+v", c.Results[0])
	}
	if c.Results[1].Success || c.Results[1].ToState != products.Draft {
		t.Errorf("preview of invalid = %+v", c.Results[1])
	}
	if c.SuccessfulItems != 1 || c.FailedItems != 1 {
		t.Errorf("counters = %d/%d", c.SuccessfulItems, c.FailedItems)
	}
	if recs.commits.Load() != 0 {
		t.Error("dry run committed records")
	}

	stored, err := f.store.Get(context.Background(), c.ID)
	if err != nil || stored.Status != campaigns.Completed {
		t.Errorf("stored = %+v, %v", stored, err)
	}
}

func TestCancelAfterCurrentBatch(t *testing.T) {
	recs := newProducts(products.Draft, products.Draft, products.Draft)
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	recs.commitFn = func(*products.Product) error {
		once.Do(func() {
			close(entered)
			<-release
		})
		return nil
	}
	f := newFixture(t, recs, nil, campaigns.Config{DefaultBatchSize: 1})

	started, err := f.runner.Start(context.Background(), superadmin, campaigns.StartCommand{Action: submit})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-entered

	mid, err := f.runner.Cancel(context.Background(), admin, started.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !mid.CancelRequested || mid.Status.Terminal() {
		t.Errorf("mid-run = %+v", mid)
	}
	close(release)

	c := f.wait(t, started.ID)
	if c.Status != campaigns.Cancelled || c.ProcessedItems != 1 || len(c.Results) != 1 {
		t.Errorf("cancelled = %s with %d processed", c.Status, c.ProcessedItems)
	}

	if _, err := f.runner.Cancel(context.Background(), admin, started.ID); !errors.Is(err, campaigns.ErrFinished) {
		t.Errorf("second cancel err = %v", err)
	}
	if _, err := f.runner.Cancel(context.Background(), admin, uuid.New()); !errors.Is(err, campaigns.ErrNotFound) {
		t.Errorf("unknown cancel err = %v", err)
	}
	if _, err := f.runner.Cancel(context.Background(), editor, started.ID); outcome.KindOf(err) != outcome.PermissionDenied {
		t.Errorf("editor cancel err = %v", err)
	}
}

func TestCancelStoredWithoutRun(t *testing.T) {
	store := campaigns.NewMemoryStore(pageCfg)
	orphan := &campaigns.Campaign{ID: uuid.New(), Status: campaigns.Pending, CreatedAt: time.Now()}
	if err := store.Save(context.Background(), orphan); err != nil {
		t.Fatalf("save: %v", err)
	}
	f := newFixture(t, newProducts(), store, campaigns.Config{})

	c, err := f.runner.Cancel(context.Background(), admin, orphan.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if c.Status != campaigns.Cancelled || c.CompletedAt == nil {
		t.Errorf("cancelled = %+v", c)
	}
}

func TestItemFailuresAreIsolated(t *testing.T) {
	recs := newProducts(products.Draft, products.Draft, products.Draft, products.Draft)
	bad := recs.order[1]
	recs.commitFn = func(p *products.Product) error {
		switch p.ID {
		case bad:
			panic("constraint trigger exploded")
		case recs.order[2]:
			return errors.New("connection reset")
		}
		return nil
	}
	f := newFixture(t, recs, nil, campaigns.Config{DefaultBatchSize: 4, Concurrency: 4})

	started, err := f.runner.Start(context.Background(), superadmin, campaigns.StartCommand{Action: submit})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	c := f.wait(t, started.ID)
	if c.Status != campaigns.Completed || c.SuccessfulItems != 2 || c.FailedItems != 2 {
		t.Fatalf("campaign = %s %d/%d", c.Status, c.SuccessfulItems, c.FailedItems)
	}
	for _, i := range []int{1, 2} {
		if r := c.Results[i]; r.Success || r.Errors[0].Kind != outcome.Storage {
			t.Errorf("item %d = %+v", i, r)
		}
	}
}

// flakyStore fails the nth save.
type flakyStore struct {
	*campaigns.MemoryStore
	saves  atomic.Int32
	failOn int32
}

func (s *flakyStore) Save(ctx context.Context, c *campaigns.Campaign) error {
	if s.saves.Add(1) == s.failOn {
		return errors.New("store offline")
	}
	return s.MemoryStore.Save(ctx, c)
}

func TestStoreFailureFailsCampaign(t *testing.T) {
	store := &flakyStore{MemoryStore: campaigns.NewMemoryStore(pageCfg), failOn: 3}
	recs := newProducts(products.Draft, products.Draft, products.Draft)
	f := newFixture(t, recs, store, campaigns.Config{DefaultBatchSize: 1})

	started, err := f.runner.Start(context.Background(), superadmin, campaigns.StartCommand{Action: submit})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	c := f.wait(t, started.ID)
	if c.Status != campaigns.Failed || c.Error == nil {
		t.Fatalf("campaign = %+v", c)
	}
	if c.ProcessedItems != 1 || len(c.Results) != 1 {
		t.Errorf("partial results = %d", c.ProcessedItems)
	}
}

func TestNotifications(t *testing.T) {
	recs := newProducts(products.Draft)
	f := newFixture(t, recs, nil, campaigns.Config{})

	started, err := f.runner.Start(context.Background(), superadmin, campaigns.StartCommand{Action: submit})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.wait(t, started.ID)

	var types []string
	timeout := time.After(5 * time.Second)
	for len(types) < 2 {
		select {
		case e := <-f.events:
			types = append(types, e.Type)
		case <-timeout:
			t.Fatalf("events = %v", types)
		}
	}
	if !slices.Contains(types, notifications.TypeCampaignStarted) || !slices.Contains(types, notifications.TypeCampaignFinished) {
		t.Errorf("events = %v", types)
	}
}

func TestRecover(t *testing.T) {
	store := campaigns.NewMemoryStore(pageCfg)
	ctx := context.Background()
	for _, st := range []campaigns.Status{campaigns.Pending, campaigns.Running, campaigns.Completed} {
		if err := store.Save(ctx, &campaigns.Campaign{ID: uuid.New(), Status: st, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	f := newFixture(t, newProducts(), store, campaigns.Config{})

	n, err := f.runner.Recover(ctx)
	if err != nil || n != 2 {
		t.Fatalf("recover = %d, %v", n, err)
	}

	failed := campaigns.Failed
	page, err := f.runner.List(ctx, pagination.PageRequest{}, campaigns.Filters{Status: &failed})
	if err != nil || page.Total != 2 {
		t.Errorf("failed campaigns = %+v, %v", page, err)
	}
}

func TestMemoryStoreList(t *testing.T) {
	store := campaigns.NewMemoryStore(pageCfg)
	ctx := context.Background()
	base := time.Now()
	for i := range 5 {
		c := &campaigns.Campaign{ID: uuid.New(), Status: campaigns.Completed, CreatedBy: "ad-1", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if i == 4 {
			c.CreatedBy = "su-1"
		}
		if err := store.Save(ctx, c); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	page, err := store.List(ctx, pagination.PageRequest{Page: 1, PageSize: 2}, campaigns.Filters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 || len(page.Data) != 2 || !page.HasMore || page.Data[0].CreatedBy != "su-1" {
		t.Errorf("page = %+v", page)
	}

	by := "ad-1"
	page, _ = store.List(ctx, pagination.PageRequest{Page: 3, PageSize: 2}, campaigns.Filters{CreatedBy: &by})
	if page.Total != 4 || len(page.Data) != 0 {
		t.Errorf("filtered page = %+v", page)
	}

	if _, err := store.Get(ctx, uuid.New()); !errors.Is(err, campaigns.ErrNotFound) {
		t.Errorf("get unknown err = %v", err)
	}
}
