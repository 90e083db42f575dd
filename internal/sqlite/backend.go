// Package sqlite implements a types.Store that persists entries to an
// append-only JSONL log and answers queries from a SQLite index.
//
// entries.jsonl in the data directory is the source of truth. On Attach the
// SQLite database is recreated and the log replayed into it; on Commit the
// index is updated first and the log record is written according to the
// configured sync strategy.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/linkrepo/internal/address"
	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

var (
	_ types.Store    = (*Backend)(nil)
	_ types.Attacher = (*Backend)(nil)
)

// Backend is a SQLite-indexed, JSONL-persisted store. It is safe for
// concurrent use.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	logPath  string
	source   types.Hash
	seq      uint64
	logger   *zap.Logger

	syncStrategy  string
	batchSize     int
	batchInterval time.Duration
	pendingWrites []json.RawMessage
	batchTimer    *time.Timer
	batchMu       sync.Mutex // protects pendingWrites and batchTimer
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger for replay and flush diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBackend creates a detached backend. Call Attach to open it.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach opens the store in config.DataDir, creating the directory and an
// empty log if needed, and replays the log into a fresh index.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, databaseFile)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return err
	}

	logPath := filepath.Join(dataDir, entriesJSONL)
	if err := initJSONL(logPath); err != nil {
		db.Close()
		return err
	}
	last, err := loadEntriesJSONL(db, logPath, b.logger)
	if err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	b.db = db
	b.config = config
	b.logPath = logPath
	b.seq = last
	b.source = address.Must("Agent", types.StringEntry(config.GetAgent()))

	b.syncStrategy = config.GetSyncStrategy()
	b.batchSize = config.GetBatchSize()
	b.batchInterval = time.Duration(config.GetBatchInterval()) * time.Second
	b.pendingWrites = nil
	b.attached = true

	if b.syncStrategy == types.SyncBatch && b.batchInterval > 0 {
		b.startBatchTimer()
	}

	b.logger.Debug("attached",
		zap.String("data_dir", dataDir),
		zap.String("sync_strategy", b.syncStrategy),
		zap.Uint64("seq", last))
	return nil
}

// Detach flushes pending log writes and closes the index. Detach is
// idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	b.stopBatchTimer()

	if err := b.flushPendingWrites(); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}

	b.attached = false
	return nil
}

// Flush writes any queued log records now.
func (b *Backend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}
	return b.flushPendingWrites()
}

// Source returns the address links committed through this backend are
// attributed to.
func (b *Backend) Source() types.Hash {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.source
}

func (b *Backend) shouldPersistImmediately() bool {
	return b.syncStrategy == types.SyncImmediate || b.syncStrategy == ""
}

// queueWrite adds a log record to the pending queue and flushes when the
// batch size is reached. The caller must hold b.mu.
func (b *Backend) queueWrite(line json.RawMessage) {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	b.pendingWrites = append(b.pendingWrites, line)

	if b.syncStrategy == types.SyncBatch && b.batchSize > 0 && len(b.pendingWrites) >= b.batchSize {
		if err := b.flushPendingWritesBatchLocked(); err != nil {
			b.logger.Warn("batch flush failed", zap.Error(err))
		}
	}
}

// flushPendingWrites appends all queued records to the log. The caller must
// hold b.mu.
func (b *Backend) flushPendingWrites() error {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	return b.flushPendingWritesBatchLocked()
}

// flushPendingWritesBatchLocked appends all queued records. The caller must
// hold b.batchMu. On failure the queue is kept so a later flush can retry.
func (b *Backend) flushPendingWritesBatchLocked() error {
	if len(b.pendingWrites) == 0 {
		return nil
	}
	if err := appendJSONL(b.logPath, b.pendingWrites); err != nil {
		return fmt.Errorf("flush %d records: %w", len(b.pendingWrites), err)
	}
	b.pendingWrites = nil
	return nil
}

func (b *Backend) startBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		return
	}

	b.batchTimer = time.AfterFunc(b.batchInterval, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if !b.attached {
			return
		}

		if err := b.flushPendingWrites(); err != nil {
			b.logger.Warn("interval flush failed", zap.Error(err))
		}

		b.batchMu.Lock()
		if b.batchTimer != nil && b.attached {
			b.batchTimer.Reset(b.batchInterval)
		}
		b.batchMu.Unlock()
	})
}

func (b *Backend) stopBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		b.batchTimer.Stop()
		b.batchTimer = nil
	}
}
