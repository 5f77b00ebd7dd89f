package infrastructure_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/config"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/infrastructure"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/notifications"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/products"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/database"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=pimifystore;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/pimifystore;"

const secret = "0123456789abcdef0123456789abcdef"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validConfig() *config.Config {
	return &config.Config{
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "pimify",
			User:            "pimify",
			Password:        "pimify",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Storage: storage.Config{
			Provider:         storage.ProviderAzure,
			ContainerName:    "archives",
			ConnectionString: azuriteConnString,
		},
		Identity: config.IdentityConfig{
			Mode:   config.IdentityModeHMAC,
			Secret: secret,
		},
		Notifications: config.NotificationsConfig{
			Driver:       config.NotifierLog,
			BufferSize:   16,
			WriteTimeout: "5s",
		},
		Workflow: config.WorkflowConfig{
			SuperuserRoles: []string{"superadmin"},
			EditSessionTTL: "15m",
		},
		Version: "0.1.0",
	}
}

func TestNew(t *testing.T) {
	infra, err := infrastructure.New(validConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if infra.Lifecycle == nil {
		t.Error("Lifecycle is nil")
	}
	if infra.Logger == nil {
		t.Error("Logger is nil")
	}
	if infra.Database == nil {
		t.Error("Database is nil")
	}
	if infra.Storage == nil {
		t.Error("Storage is nil")
	}
	if infra.Verifier == nil || infra.Gate == nil || infra.Notifications == nil || infra.Guard == nil {
		t.Errorf("infrastructure = %+v", infra)
	}
	if len(infra.Rules) != 5 {
		t.Errorf("default rules: got %d, want 5", len(infra.Rules))
	}
}

func TestNewRejectsUnknownIdentityMode(t *testing.T) {
	cfg := validConfig()
	cfg.Identity.Mode = "saml"

	if _, err := infrastructure.New(cfg); err == nil {
		t.Fatal("expected error for unknown identity mode")
	}
}

func TestNewVerifier(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.IdentityConfig
		want    string
		wantErr bool
	}{
		{"hmac", config.IdentityConfig{Mode: config.IdentityModeHMAC, Secret: secret}, "hmac", false},
		{"oidc", config.IdentityConfig{Mode: config.IdentityModeOIDC, Issuer: "https://login.example.com", Audience: "pimify"}, "oidc", false},
		{"unknown", config.IdentityConfig{Mode: "basic"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := infrastructure.NewVerifier(&tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewVerifier() error = %v", err)
			}

			switch v.(type) {
			case *identity.HMACVerifier:
				if tt.want != "hmac" {
					t.Errorf("got hmac verifier, want %s", tt.want)
				}
			case *identity.OIDCVerifier:
				if tt.want != "oidc" {
					t.Errorf("got oidc verifier, want %s", tt.want)
				}
			default:
				t.Errorf("unexpected verifier %T", v)
			}
		})
	}
}

func TestNewPublisher(t *testing.T) {
	log, err := infrastructure.NewPublisher(&config.NotificationsConfig{Driver: config.NotifierLog}, discard())
	if err != nil {
		t.Fatalf("log driver: %v", err)
	}
	if _, ok := log.(*notifications.LogPublisher); !ok {
		t.Errorf("log driver built %T", log)
	}

	kafka, err := infrastructure.NewPublisher(&config.NotificationsConfig{
		Driver:       config.NotifierKafka,
		Brokers:      []string{"localhost:9092"},
		Topic:        "pimify.lifecycle",
		WriteTimeout: "5s",
	}, discard())
	if err != nil {
		t.Fatalf("kafka driver: %v", err)
	}
	fanout, ok := kafka.(notifications.Fanout)
	if !ok || len(fanout) != 2 {
		t.Errorf("kafka driver built %T", kafka)
	}
	if err := kafka.Close(); err != nil {
		t.Errorf("close: %v", err)
	}

	if _, err := infrastructure.NewPublisher(&config.NotificationsConfig{Driver: "sns"}, discard()); err == nil {
		t.Error("expected error for unknown driver")
	}
}

const policyYAML = `
rules:
  - name: submit
    from: DRAFT
    to: REVIEW
    role: editor
  - name: publish
    from: REVIEW
    to: PUBLISHED
    role: publisher
    priority: high
roles:
  editor:
    actions: [records.read, records.create, records.edit, records.transition]
  publisher:
    actions: [records.read, records.transition]
`

func TestNewPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(policyYAML), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	gate, rules, err := infrastructure.NewPolicy(&config.WorkflowConfig{
		PolicyFile:     path,
		SuperuserRoles: []string{"owner"},
	})
	if err != nil {
		t.Fatalf("NewPolicy() error = %v", err)
	}

	if len(rules) != 2 || rules[1].To != products.Published || rules[1].RequiredRole != "publisher" {
		t.Errorf("rules = %+v", rules)
	}
	if !gate.Allowed("publisher", permissions.RecordsTransition, permissions.Context{}) {
		t.Error("publisher should transition records")
	}
	if gate.Allowed("publisher", permissions.RecordsEdit, permissions.Context{}) {
		t.Error("publisher should not edit records")
	}
	if !gate.IsSuperuser("owner") {
		t.Error("owner should be a superuser")
	}
}

func TestNewPolicyDefaults(t *testing.T) {
	gate, rules, err := infrastructure.NewPolicy(&config.WorkflowConfig{SuperuserRoles: []string{"superadmin"}})
	if err != nil {
		t.Fatalf("NewPolicy() error = %v", err)
	}
	if len(rules) != 5 {
		t.Errorf("rules: got %d, want 5", len(rules))
	}
	if !gate.Allowed(permissions.Reviewer, permissions.RecordsTransition, permissions.Context{}) {
		t.Error("reviewer should transition records by default")
	}
}

func TestNewPolicyMissingFile(t *testing.T) {
	_, _, err := infrastructure.NewPolicy(&config.WorkflowConfig{PolicyFile: filepath.Join(t.TempDir(), "absent.yaml")})
	if err == nil {
		t.Fatal("expected error for missing policy file")
	}
}
