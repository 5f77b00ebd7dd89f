package api

import (
	"fmt"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/audit"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/campaigns"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/config"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/products"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/reviewers"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/workflow"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Products  products.System
	Audit     audit.System
	Reviewers reviewers.System
	Workflow  *workflow.Executor
	Campaigns *campaigns.Runner
}

// NewDomain creates all domain systems from the API runtime. Campaigns left
// pending or running by a previous process are marked failed during startup.
func NewDomain(cfg *config.Config, runtime *Runtime) (*Domain, error) {
	db := runtime.Database.Connection()

	productsSystem := products.New(db, runtime.Logger, runtime.Pagination)
	auditSystem := audit.New(db, runtime.Storage, runtime.Logger, runtime.Pagination)
	reviewersSystem := reviewers.New(db, runtime.Logger, runtime.Pagination)

	machine, err := workflow.NewMachine(runtime.Rules, runtime.Gate, nil)
	if err != nil {
		return nil, fmt.Errorf("build state machine: %w", err)
	}

	executor := workflow.NewExecutor(machine, workflow.Runtime{
		Products:  productsSystem,
		Reviewers: reviewersSystem,
		Guard:     runtime.Guard,
		Gate:      runtime.Gate,
		Notifier:  runtime.Notifications,
		Logger:    runtime.Logger,
	}, workflow.WithMaxAutomaticDepth(cfg.Workflow.MaxAutomaticDepth))

	store, err := newCampaignStore(&cfg.Workflow, runtime)
	if err != nil {
		return nil, err
	}

	runner := campaigns.NewRunner(campaigns.Runtime{
		Executor:  executor,
		Products:  productsSystem,
		Store:     store,
		Gate:      runtime.Gate,
		Lifecycle: runtime.Lifecycle,
		Notifier:  runtime.Notifications,
		Logger:    runtime.Logger,
	}, campaigns.Config{
		Ceiling:          cfg.Workflow.BulkCeiling,
		DefaultBatchSize: cfg.Workflow.DefaultBatchSize,
		Concurrency:      cfg.Workflow.BatchConcurrency,
		Pause:            cfg.Workflow.BatchPauseDuration(),
		Pagination:       runtime.Pagination,
	})

	lc := runtime.Lifecycle
	logger := runtime.Logger
	lc.OnStartup(func() {
		n, err := runner.Recover(lc.Context())
		if err != nil {
			logger.Error("campaign recovery failed", "error", err)
			return
		}
		if n > 0 {
			logger.Warn("interrupted campaigns marked failed", "count", n)
		}
	})

	return &Domain{
		Products:  productsSystem,
		Audit:     auditSystem,
		Reviewers: reviewersSystem,
		Workflow:  executor,
		Campaigns: runner,
	}, nil
}

func newCampaignStore(cfg *config.WorkflowConfig, runtime *Runtime) (campaigns.Store, error) {
	switch cfg.CampaignStore {
	case config.CampaignStoreMemory:
		return campaigns.NewMemoryStore(runtime.Pagination), nil
	case config.CampaignStorePostgres:
		return campaigns.NewPostgresStore(runtime.Database.Connection(), runtime.Logger, runtime.Pagination), nil
	default:
		return nil, fmt.Errorf("unknown campaign store %q", cfg.CampaignStore)
	}
}
