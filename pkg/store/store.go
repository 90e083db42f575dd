// Package store opens the entry store backends behind a single factory while
// keeping their implementations internal.
package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/linkrepo/internal/memory"
	"github.com/mesh-intelligence/linkrepo/internal/sqlite"
	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

// Handle is an open store. Close releases it; for the SQLite backend it
// also flushes pending log writes.
type Handle interface {
	types.Store
	Source() types.Hash
	Close() error
}

// Open validates cfg and returns an open store for cfg.Backend.
//
// Example:
//
//	h, err := store.Open(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".linkrepo",
//	}, logger)
//	defer h.Close()
func Open(cfg types.Config, logger *zap.Logger) (Handle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch cfg.Backend {
	case types.BackendMemory:
		return memoryHandle{memory.New(cfg.GetAgent())}, nil
	case types.BackendSQLite:
		b := sqlite.NewBackend(sqlite.WithLogger(logger.Named("sqlite")))
		if err := b.Attach(cfg); err != nil {
			return nil, fmt.Errorf("attaching sqlite store: %w", err)
		}
		return sqliteHandle{b}, nil
	default:
		return nil, types.ErrBackendUnknown
	}
}

type memoryHandle struct {
	*memory.Store
}

func (memoryHandle) Close() error { return nil }

type sqliteHandle struct {
	*sqlite.Backend
}

func (h sqliteHandle) Close() error { return h.Detach() }
