// Package storage provides blob storage operations behind a provider-neutral System
// with Azure Blob Storage and Amazon S3 implementations.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/lifecycle"
)

// System manages blob storage operations and lifecycle coordination.
type System interface {
	// Start registers a startup hook that verifies or creates the storage container.
	Start(lc *lifecycle.Coordinator) error
	// Upload streams data to a blob at the given key with the specified content type.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Download returns a stream for the blob at the given key. The caller must close the reader.
	// Returns ErrNotFound if the blob does not exist.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob at the given key. Returns ErrNotFound if the blob does not exist.
	Delete(ctx context.Context, key string) error
	// Exists reports whether a blob exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)
}

// New creates a storage system for the configured provider.
// Clients are created eagerly but no request is made until Start is called.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	logger = logger.With("system", "storage", "provider", cfg.Provider)

	switch cfg.Provider {
	case ProviderAzure:
		return newAzure(cfg, logger)
	case ProviderS3:
		return newS3(cfg, logger)
	}
	return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
}
