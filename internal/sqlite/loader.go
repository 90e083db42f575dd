// Replay of entries.jsonl into the SQLite index at startup.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/linkrepo/internal/address"
	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// loadEntriesJSONL replays the log at path into db in one transaction and
// returns the highest sequence number seen. Malformed lines, undecodable
// entries and records whose hash does not match their content are skipped.
func loadEntriesJSONL(db *sql.DB, path string, logger *zap.Logger) (uint64, error) {
	records, err := readJSONL(path)
	if err != nil {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	var last uint64
	skipped := 0
	for i, raw := range records {
		var rec logRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped++
			continue
		}
		entry, err := types.UnmarshalEntry(rec.Entry)
		if err != nil {
			skipped++
			continue
		}
		hash, err := address.Of(rec.EntryType, entry)
		if err != nil || hash != rec.Hash {
			logger.Warn("skipping log record with mismatched hash",
				zap.Int("line", i+1), zap.String("hash", rec.Hash))
			skipped++
			continue
		}
		if err := applyRecord(tx, rec, entry); err != nil {
			return 0, fmt.Errorf("replaying record %d: %w", rec.Seq, err)
		}
		last = max(last, rec.Seq)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing load transaction: %w", err)
	}
	logger.Debug("replayed entry log",
		zap.Int("records", len(records)-skipped), zap.Int("skipped", skipped))
	return last, nil
}

// applyRecord stores the entry of rec and, for a links entry, updates the
// live link index.
func applyRecord(x execer, rec logRecord, entry types.Entry) error {
	_, err := x.Exec(
		`INSERT OR IGNORE INTO entries (hash, entry_type, kind, data, committed_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Hash, rec.EntryType, string(entry.Kind()), string(rec.Entry), rec.CommittedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}

	le, ok := entry.(types.LinksEntry)
	if !ok {
		return nil
	}
	for _, l := range le.Links {
		if l.Action == types.ActionDelete {
			_, err = x.Exec(
				`DELETE FROM links WHERE entry_type = ? AND base = ? AND tag = ? AND target = ?`,
				rec.EntryType, l.Base, l.Tag, l.Target,
			)
		} else {
			_, err = x.Exec(
				`INSERT OR IGNORE INTO links (entry_type, base, tag, target, source) VALUES (?, ?, ?, ?, ?)`,
				rec.EntryType, l.Base, l.Tag, l.Target, rec.Source,
			)
		}
		if err != nil {
			return fmt.Errorf("applying link %s -%s-> %s: %w", l.Base, l.Tag, l.Target, err)
		}
	}
	return nil
}
