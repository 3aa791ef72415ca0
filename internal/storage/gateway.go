// Package storage keeps documents behind a uniform gateway so the router
// never knows whether they live in process memory, a bolt file or a
// relational database.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"hybridserver/internal/config"
	"hybridserver/internal/document"
	herrors "hybridserver/internal/errors"
)

// ErrNotFound is returned by Get and SchemaRef for unknown ids.
var ErrNotFound = herrors.New(herrors.NotFound, "document not found", nil)

// Gateway is the storage contract for one document type.
type Gateway interface {
	// List returns every stored document as id -> content.
	List(ctx context.Context) (map[string]string, error)
	// Get returns the content stored under id, or ErrNotFound.
	Get(ctx context.Context, id string) (string, error)
	// Create stores content under id. schemaRef is only kept for transforms.
	Create(ctx context.Context, id, content, schemaRef string) error
	// Delete removes id and reports whether something was removed.
	Delete(ctx context.Context, id string) (bool, error)
	// Exists reports whether id is stored.
	Exists(ctx context.Context, id string) (bool, error)
}

// SchemaResolver is implemented by the transform gateway of every backend.
type SchemaResolver interface {
	// SchemaRef returns the schema id a transform was created with.
	SchemaRef(ctx context.Context, id string) (string, error)
}

// Store hands out one Gateway per document type.
type Store interface {
	Gateway(t document.Type) Gateway
	Close() error
}

// Open selects a backend from configuration: a database URL wins, then a
// bolt file, then the in-memory table. Seed documents are loaded into the
// non-relational backends.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg.DB.Enabled() {
		store, err := NewSQLStore(cfg.DB)
		if err != nil {
			return nil, err
		}
		logger.Info("Using relational storage", "driver", store.Driver())
		return store, nil
	}

	var store Store
	if cfg.Storage.BoltPath != "" {
		bs, err := OpenBoltStore(cfg.Storage.BoltPath)
		if err != nil {
			return nil, err
		}
		logger.Info("Using bolt storage", "path", cfg.Storage.BoltPath)
		store = bs
	} else {
		logger.Info("Using in-memory storage")
		store = NewMemoryStore()
	}

	if cfg.Storage.SeedFile != "" {
		seeded, err := SeedFromFile(ctx, store, cfg.Storage.SeedFile)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Info("Loaded seed documents", "file", cfg.Storage.SeedFile, "count", seeded.Count())
	}

	return store, nil
}

func storageErr(op string, t document.Type, err error) error {
	return herrors.Storage(fmt.Sprintf("%s %s", op, t), err)
}
