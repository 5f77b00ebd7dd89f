// Package infrastructure provides core service initialization for application startup.
// It assembles the shared dependencies (logging, database, storage, identity, policy,
// notifications, edit sessions) that the lifecycle systems require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/config"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/editlock"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/notifications"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/workflow"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/database"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/lifecycle"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/storage"
)

const maxSweepInterval = time.Minute

// Infrastructure holds the core systems required by all domain modules.
// It provides a single point of initialization for lifecycle coordination,
// logging, database access, file storage, token verification, the permission
// gate and transition rules, lifecycle notifications and edit sessions.
type Infrastructure struct {
	Lifecycle     *lifecycle.Coordinator
	Logger        *slog.Logger
	Database      database.System
	Storage       storage.System
	Verifier      identity.Verifier
	Gate          *permissions.Gate
	Rules         []workflow.Rule
	Notifications *notifications.Dispatcher
	Guard         *editlock.Guard

	sweepInterval time.Duration
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	verifier, err := NewVerifier(&cfg.Identity)
	if err != nil {
		return nil, fmt.Errorf("identity init failed: %w", err)
	}

	gate, rules, err := NewPolicy(&cfg.Workflow)
	if err != nil {
		return nil, fmt.Errorf("policy init failed: %w", err)
	}

	publisher, err := NewPublisher(&cfg.Notifications, logger)
	if err != nil {
		return nil, fmt.Errorf("notifications init failed: %w", err)
	}

	ttl := cfg.Workflow.EditSessionTTLDuration()

	return &Infrastructure{
		Lifecycle:     lc,
		Logger:        logger,
		Database:      db,
		Storage:       store,
		Verifier:      verifier,
		Gate:          gate,
		Rules:         rules,
		Notifications: notifications.NewDispatcher(publisher, cfg.Notifications.BufferSize, logger),
		Guard:         editlock.New(ttl, logger),
		sweepInterval: min(ttl, maxSweepInterval),
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
// Database and storage hooks are registered for startup and shutdown coordination;
// the notification worker and the edit session sweeper run until shutdown.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	i.Notifications.Start(i.Lifecycle)
	i.Guard.Start(i.Lifecycle, i.sweepInterval)
	return nil
}

// NewVerifier builds the bearer token verifier selected by cfg.Mode.
func NewVerifier(cfg *config.IdentityConfig) (identity.Verifier, error) {
	claims := identity.Claims{
		Role:  cfg.RoleClaim,
		Name:  cfg.NameClaim,
		Email: cfg.EmailClaim,
	}

	switch cfg.Mode {
	case config.IdentityModeOIDC:
		return identity.NewOIDC(cfg.Issuer, cfg.Audience, claims), nil
	case config.IdentityModeHMAC:
		return identity.NewHMAC(cfg.Secret, cfg.Issuer, cfg.Audience, claims), nil
	default:
		return nil, fmt.Errorf("unknown identity mode %q", cfg.Mode)
	}
}

// NewPolicy loads the optional workflow policy file and builds the permission gate
// and transition rules from it. Without a policy file the built-in capabilities and
// rules apply.
func NewPolicy(cfg *config.WorkflowConfig) (*permissions.Gate, []workflow.Rule, error) {
	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, nil, err
	}

	opts := []permissions.Option{permissions.WithSuperusers(cfg.SuperuserRoles...)}
	if policy != nil && len(policy.Roles) > 0 {
		table := make(map[string][]string, len(policy.Roles))
		for name, role := range policy.Roles {
			table[name] = role.Actions
		}
		opts = append(opts, permissions.WithCapabilities(table))
	}

	gate, err := permissions.New(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("build permission gate: %w", err)
	}

	rules, err := workflow.RulesFromPolicy(policy)
	if err != nil {
		return nil, nil, fmt.Errorf("build transition rules: %w", err)
	}
	return gate, rules, nil
}

// NewPublisher builds the notification publisher selected by cfg.Driver. The kafka
// driver also logs each event so deliveries stay visible in the service log.
func NewPublisher(cfg *config.NotificationsConfig, logger *slog.Logger) (notifications.Publisher, error) {
	switch cfg.Driver {
	case config.NotifierLog:
		return notifications.NewLogPublisher(logger), nil
	case config.NotifierKafka:
		timeout := cfg.WriteTimeoutDuration()
		writer := notifications.NewKafkaWriter(cfg.Brokers, cfg.Topic, timeout)
		return notifications.Fanout{
			notifications.NewKafkaPublisher(writer, timeout),
			notifications.NewLogPublisher(logger),
		}, nil
	default:
		return nil, fmt.Errorf("unknown notifications driver %q", cfg.Driver)
	}
}
