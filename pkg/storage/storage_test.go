package storage_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/storage"
)

const azuriteConn = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func TestFinalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		env     map[string]string
		wantErr bool
		check   func(*testing.T, storage.Config)
	}{
		{
			name: "azure defaults",
			cfg:  storage.Config{ConnectionString: azuriteConn},
			check: func(t *testing.T, c storage.Config) {
				if c.Provider != storage.ProviderAzure {
					t.Errorf("provider = %q", c.Provider)
				}
				if c.ContainerName != "pimify" {
					t.Errorf("container = %q", c.ContainerName)
				}
			},
		},
		{
			name: "azure account url",
			cfg:  storage.Config{AccountURL: "https://acct.blob.core.windows.net"},
		},
		{
			name:    "azure missing credentials",
			cfg:     storage.Config{},
			wantErr: true,
		},
		{
			name:    "s3 requires region",
			cfg:     storage.Config{Provider: storage.ProviderS3},
			wantErr: true,
		},
		{
			name: "s3 region from env",
			cfg:  storage.Config{Provider: storage.ProviderS3},
			env:  map[string]string{"TEST_STORAGE_REGION": "eu-north-1"},
			check: func(t *testing.T, c storage.Config) {
				if c.Region != "eu-north-1" {
					t.Errorf("region = %q", c.Region)
				}
			},
		},
		{
			name:    "unknown provider",
			cfg:     storage.Config{Provider: "gcs"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := tt.cfg
			err := cfg.Finalize(&storage.Env{Region: "TEST_STORAGE_REGION"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Finalize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := storage.Config{Provider: storage.ProviderAzure, ContainerName: "base", ConnectionString: "a"}
	base.Merge(&storage.Config{Provider: storage.ProviderS3, Region: "us-east-1"})

	if base.Provider != storage.ProviderS3 {
		t.Errorf("provider = %q", base.Provider)
	}
	if base.ContainerName != "base" {
		t.Errorf("container = %q, want unchanged", base.ContainerName)
	}
	if base.Region != "us-east-1" {
		t.Errorf("region = %q", base.Region)
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", storage.ErrNotFound), http.StatusNotFound},
		{storage.ErrEmptyKey, http.StatusBadRequest},
		{storage.ErrInvalidKey, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := storage.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestKeyValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sys, err := storage.New(&storage.Config{
		Provider:         storage.ProviderAzure,
		ContainerName:    "pimify",
		ConnectionString: azuriteConn,
	}, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()

	if _, err := sys.Exists(ctx, ""); !errors.Is(err, storage.ErrEmptyKey) {
		t.Errorf("Exists(empty) error = %v, want ErrEmptyKey", err)
	}
	if err := sys.Delete(ctx, "audit/../secret"); !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("Delete(traversal) error = %v, want ErrInvalidKey", err)
	}
	if _, err := sys.Download(ctx, "a/../../b"); !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("Download(traversal) error = %v, want ErrInvalidKey", err)
	}
	if _, err := sys.Exists(ctx, "/audit/exports/a.csv"); !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("Exists(absolute) error = %v, want ErrInvalidKey", err)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := storage.New(&storage.Config{Provider: "ftp"}, logger); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
