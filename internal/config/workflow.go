package config

import (
	"fmt"
	"os"
	"time"
)

// Campaign store drivers.
const (
	CampaignStoreMemory   = "memory"
	CampaignStorePostgres = "postgres"
)

const (
	EnvWorkflowPolicyFile        = "PIMIFY_WORKFLOW_POLICY_FILE"
	EnvWorkflowSuperuserRoles    = "PIMIFY_WORKFLOW_SUPERUSER_ROLES"
	EnvWorkflowBulkCeiling       = "PIMIFY_WORKFLOW_BULK_CEILING"
	EnvWorkflowDefaultBatchSize  = "PIMIFY_WORKFLOW_DEFAULT_BATCH_SIZE"
	EnvWorkflowBatchConcurrency  = "PIMIFY_WORKFLOW_BATCH_CONCURRENCY"
	EnvWorkflowBatchPause        = "PIMIFY_WORKFLOW_BATCH_PAUSE"
	EnvWorkflowEditSessionTTL    = "PIMIFY_WORKFLOW_EDIT_SESSION_TTL"
	EnvWorkflowMaxAutomaticDepth = "PIMIFY_WORKFLOW_MAX_AUTOMATIC_DEPTH"
	EnvWorkflowCampaignStore     = "PIMIFY_WORKFLOW_CAMPAIGN_STORE"
)

// WorkflowConfig tunes the lifecycle engine: policy source, superusers, bulk
// campaign limits and pacing, edit session expiry and automatic transition depth.
type WorkflowConfig struct {
	PolicyFile        string   `toml:"policy_file"`
	SuperuserRoles    []string `toml:"superuser_roles"`
	BulkCeiling       int      `toml:"bulk_ceiling"`
	DefaultBatchSize  int      `toml:"default_batch_size"`
	BatchConcurrency  int      `toml:"batch_concurrency"`
	BatchPause        string   `toml:"batch_pause"`
	EditSessionTTL    string   `toml:"edit_session_ttl"`
	MaxAutomaticDepth int      `toml:"max_automatic_depth"`
	CampaignStore     string   `toml:"campaign_store"`
}

// BatchPauseDuration returns BatchPause as a time.Duration.
func (c *WorkflowConfig) BatchPauseDuration() time.Duration {
	return mustDuration(c.BatchPause)
}

// EditSessionTTLDuration returns EditSessionTTL as a time.Duration.
func (c *WorkflowConfig) EditSessionTTLDuration() time.Duration {
	return mustDuration(c.EditSessionTTL)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *WorkflowConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *WorkflowConfig) Merge(overlay *WorkflowConfig) {
	mergeString(&c.PolicyFile, overlay.PolicyFile)
	if overlay.SuperuserRoles != nil {
		c.SuperuserRoles = overlay.SuperuserRoles
	}
	if overlay.BulkCeiling != 0 {
		c.BulkCeiling = overlay.BulkCeiling
	}
	if overlay.DefaultBatchSize != 0 {
		c.DefaultBatchSize = overlay.DefaultBatchSize
	}
	if overlay.BatchConcurrency != 0 {
		c.BatchConcurrency = overlay.BatchConcurrency
	}
	mergeString(&c.BatchPause, overlay.BatchPause)
	mergeString(&c.EditSessionTTL, overlay.EditSessionTTL)
	if overlay.MaxAutomaticDepth != 0 {
		c.MaxAutomaticDepth = overlay.MaxAutomaticDepth
	}
	mergeString(&c.CampaignStore, overlay.CampaignStore)
}

func (c *WorkflowConfig) loadDefaults() {
	if len(c.SuperuserRoles) == 0 {
		c.SuperuserRoles = []string{"superadmin"}
	}
	if c.BulkCeiling == 0 {
		c.BulkCeiling = 1000
	}
	if c.DefaultBatchSize == 0 {
		c.DefaultBatchSize = 50
	}
	if c.BatchConcurrency == 0 {
		c.BatchConcurrency = 4
	}
	defaultString(&c.BatchPause, "100ms")
	defaultString(&c.EditSessionTTL, "15m")
	if c.MaxAutomaticDepth == 0 {
		c.MaxAutomaticDepth = 5
	}
	defaultString(&c.CampaignStore, CampaignStoreMemory)
}

func (c *WorkflowConfig) loadEnv() {
	envString(EnvWorkflowPolicyFile, &c.PolicyFile)
	envList(EnvWorkflowSuperuserRoles, &c.SuperuserRoles)
	envInt(EnvWorkflowBulkCeiling, &c.BulkCeiling)
	envInt(EnvWorkflowDefaultBatchSize, &c.DefaultBatchSize)
	envInt(EnvWorkflowBatchConcurrency, &c.BatchConcurrency)
	envString(EnvWorkflowBatchPause, &c.BatchPause)
	envString(EnvWorkflowEditSessionTTL, &c.EditSessionTTL)
	envInt(EnvWorkflowMaxAutomaticDepth, &c.MaxAutomaticDepth)
	envString(EnvWorkflowCampaignStore, &c.CampaignStore)
}

func (c *WorkflowConfig) validate() error {
	if c.BulkCeiling < 1 {
		return fmt.Errorf("bulk_ceiling must be positive")
	}
	if c.DefaultBatchSize < 1 || c.DefaultBatchSize > c.BulkCeiling {
		return fmt.Errorf("default_batch_size must be between 1 and bulk_ceiling (%d)", c.BulkCeiling)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("batch_concurrency must be positive")
	}
	if c.MaxAutomaticDepth < 1 {
		return fmt.Errorf("max_automatic_depth must be positive")
	}
	if err := validateDurations(map[string]string{
		"batch_pause":      c.BatchPause,
		"edit_session_ttl": c.EditSessionTTL,
	}); err != nil {
		return err
	}
	if pause := c.BatchPauseDuration(); pause < 0 || pause >= time.Second {
		return fmt.Errorf("batch_pause must be within [0s, 1s): %s", c.BatchPause)
	}
	if c.EditSessionTTLDuration() <= 0 {
		return fmt.Errorf("edit_session_ttl must be positive")
	}
	switch c.CampaignStore {
	case CampaignStoreMemory, CampaignStorePostgres:
	default:
		return fmt.Errorf("unknown campaign_store %q", c.CampaignStore)
	}
	if c.PolicyFile != "" {
		if _, err := os.Stat(c.PolicyFile); err != nil {
			return fmt.Errorf("policy_file: %w", err)
		}
	}
	return nil
}
