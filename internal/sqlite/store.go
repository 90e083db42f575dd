// types.Store operations over the SQLite index.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/linkrepo/internal/address"
	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

// Commit implements types.Store.
func (b *Backend) Commit(entryType string, entry types.Entry) (types.Hash, error) {
	raw, err := types.MarshalEntry(entry)
	if err != nil {
		return "", &types.StoreError{Op: "commit", Err: err}
	}
	hash, err := address.Of(entryType, entry)
	if err != nil {
		return "", &types.StoreError{Op: "commit", Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return "", &types.StoreError{Op: "commit", Err: types.ErrStoreDetached}
	}

	rec := logRecord{
		Seq:         b.seq + 1,
		Hash:        hash,
		EntryType:   entryType,
		Entry:       raw,
		Source:      b.source,
		CommittedAt: time.Now().UTC().Format(time.RFC3339),
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return "", &types.StoreError{Op: "commit", Err: fmt.Errorf("marshaling log record: %w", err)}
	}

	tx, err := b.db.Begin()
	if err != nil {
		return "", &types.StoreError{Op: "commit", Err: err}
	}
	if err := applyRecord(tx, rec, entry); err != nil {
		tx.Rollback()
		return "", &types.StoreError{Op: "commit", Err: err}
	}

	// Under immediate sync the index change only becomes visible once the
	// record is in the log.
	immediate := b.shouldPersistImmediately()
	if immediate {
		if err := appendJSONL(b.logPath, []json.RawMessage{line}); err != nil {
			tx.Rollback()
			return "", &types.StoreError{Op: "commit", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return "", &types.StoreError{Op: "commit", Err: err}
	}
	b.seq = rec.Seq

	if !immediate {
		b.queueWrite(line)
	}
	return hash, nil
}

// Get implements types.Store.
func (b *Backend) Get(hash types.Hash) (types.Entry, error) {
	if hash == "" {
		return nil, types.ErrInvalidHash
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, &types.StoreError{Op: "get", Err: types.ErrStoreDetached}
	}

	var data string
	err := b.db.QueryRow(`SELECT data FROM entries WHERE hash = ?`, hash).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.StoreError{Op: "get", Err: err}
	}
	entry, err := types.UnmarshalEntry([]byte(data))
	if err != nil {
		return nil, &types.StoreError{Op: "get", Err: err}
	}
	return entry, nil
}

// MakeHash implements types.Store.
func (b *Backend) MakeHash(entryType string, entry types.Entry) (types.Hash, error) {
	hash, err := address.Of(entryType, entry)
	if err != nil {
		return "", &types.StoreError{Op: "make hash", Err: err}
	}
	return hash, nil
}

// QueryLinks implements types.Store.
func (b *Backend) QueryLinks(base types.Hash, tag string, opts types.QueryOptions) ([]types.LinkRecord, error) {
	if base == "" {
		return nil, &types.StoreError{Op: "query links", Err: types.ErrInvalidHash}
	}

	var sb strings.Builder
	sb.WriteString(`SELECT l.target, l.tag, l.source, e.entry_type, e.data
FROM links l LEFT JOIN entries e ON e.hash = l.target
WHERE l.base = ?`)
	args := []any{base}
	if tag != "" {
		sb.WriteString(` AND l.tag = ?`)
		args = append(args, tag)
	}
	if opts.EntryType != "" {
		sb.WriteString(` AND l.entry_type = ?`)
		args = append(args, opts.EntryType)
	}
	sb.WriteString(` ORDER BY l.seq`)

	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, &types.StoreError{Op: "query links", Err: types.ErrStoreDetached}
	}

	rows, err := b.db.Query(sb.String(), args...)
	if err != nil {
		return nil, &types.StoreError{Op: "query links", Err: err}
	}
	defer rows.Close()

	results := []types.LinkRecord{}
	for rows.Next() {
		var (
			rec       = types.LinkRecord{Base: base, Action: types.ActionAdd}
			entryType sql.NullString
			data      sql.NullString
		)
		if err := rows.Scan(&rec.Target, &rec.Tag, &rec.Source, &entryType, &data); err != nil {
			return nil, &types.StoreError{Op: "query links", Err: err}
		}
		rec.EntryType = entryType.String
		if opts.Load && data.Valid {
			entry, err := types.UnmarshalEntry([]byte(data.String))
			if err != nil {
				return nil, &types.StoreError{Op: "query links", Err: err}
			}
			rec.Entry = entry
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StoreError{Op: "query links", Err: err}
	}
	return results, nil
}
