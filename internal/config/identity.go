package config

import "fmt"

// Identity verification modes.
const (
	IdentityModeOIDC = "oidc"
	IdentityModeHMAC = "hmac"
)

const (
	EnvIdentityMode       = "PIMIFY_IDENTITY_MODE"
	EnvIdentityIssuer     = "PIMIFY_IDENTITY_ISSUER"
	EnvIdentityAudience   = "PIMIFY_IDENTITY_AUDIENCE"
	EnvIdentitySecret     = "PIMIFY_IDENTITY_SECRET"
	EnvIdentityRoleClaim  = "PIMIFY_IDENTITY_ROLE_CLAIM"
	EnvIdentityNameClaim  = "PIMIFY_IDENTITY_NAME_CLAIM"
	EnvIdentityEmailClaim = "PIMIFY_IDENTITY_EMAIL_CLAIM"
)

// IdentityConfig describes how bearer tokens are verified and mapped to an actor.
type IdentityConfig struct {
	Mode       string `toml:"mode"`
	Issuer     string `toml:"issuer"`
	Audience   string `toml:"audience"`
	Secret     string `toml:"secret"`
	RoleClaim  string `toml:"role_claim"`
	NameClaim  string `toml:"name_claim"`
	EmailClaim string `toml:"email_claim"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *IdentityConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *IdentityConfig) Merge(overlay *IdentityConfig) {
	mergeString(&c.Mode, overlay.Mode)
	mergeString(&c.Issuer, overlay.Issuer)
	mergeString(&c.Audience, overlay.Audience)
	mergeString(&c.Secret, overlay.Secret)
	mergeString(&c.RoleClaim, overlay.RoleClaim)
	mergeString(&c.NameClaim, overlay.NameClaim)
	mergeString(&c.EmailClaim, overlay.EmailClaim)
}

func (c *IdentityConfig) loadDefaults() {
	defaultString(&c.Mode, IdentityModeHMAC)
	defaultString(&c.RoleClaim, "role")
	defaultString(&c.NameClaim, "name")
	defaultString(&c.EmailClaim, "email")
}

func (c *IdentityConfig) loadEnv() {
	envString(EnvIdentityMode, &c.Mode)
	envString(EnvIdentityIssuer, &c.Issuer)
	envString(EnvIdentityAudience, &c.Audience)
	envString(EnvIdentitySecret, &c.Secret)
	envString(EnvIdentityRoleClaim, &c.RoleClaim)
	envString(EnvIdentityNameClaim, &c.NameClaim)
	envString(EnvIdentityEmailClaim, &c.EmailClaim)
}

func (c *IdentityConfig) validate() error {
	switch c.Mode {
	case IdentityModeOIDC:
		if c.Issuer == "" {
			return fmt.Errorf("issuer required for oidc mode")
		}
		if c.Audience == "" {
			return fmt.Errorf("audience required for oidc mode")
		}
	case IdentityModeHMAC:
		if len(c.Secret) < 32 {
			return fmt.Errorf("secret of at least 32 bytes required for hmac mode")
		}
	default:
		return fmt.Errorf("unknown identity mode %q", c.Mode)
	}
	return nil
}
