// Package memory implements an in-memory entry store. It keeps everything in
// maps and is meant for tests and one-shot CLI sessions.
package memory

import (
	"sync"

	"github.com/mesh-intelligence/linkrepo/internal/address"
	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

var _ types.Store = (*Store)(nil)

type stored struct {
	entryType string
	entry     types.Entry
}

// liveLink is an edge currently in the index.
type liveLink struct {
	entryType string
	record    types.LinkRecord
	seq       uint64
}

// Store is a types.Store backed by maps. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	source  types.Hash
	entries map[types.Hash]stored
	// links indexes live edges by base; order within a base is commit order.
	links map[types.Hash][]liveLink
	seq   uint64

	// FailCommit, when set, is consulted before every commit. A non-nil return
	// aborts the commit with that error. Tests use it to inject store failures.
	FailCommit func(entryType string, entry types.Entry) error
}

// New returns an empty store whose links are attributed to agent.
func New(agent string) *Store {
	if agent == "" {
		agent = types.DefaultAgent
	}
	return &Store{
		source:  address.Must("Agent", types.StringEntry(agent)),
		entries: make(map[types.Hash]stored),
		links:   make(map[types.Hash][]liveLink),
	}
}

// Source returns the address links committed through this store are
// attributed to.
func (s *Store) Source() types.Hash {
	return s.source
}

// Commit implements types.Store.
func (s *Store) Commit(entryType string, entry types.Entry) (types.Hash, error) {
	if s.FailCommit != nil {
		if err := s.FailCommit(entryType, entry); err != nil {
			return "", &types.StoreError{Op: "commit", Err: err}
		}
	}
	hash, err := address.Of(entryType, entry)
	if err != nil {
		return "", &types.StoreError{Op: "commit", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[hash] = stored{entryType: entryType, entry: entry}
	if le, ok := entry.(types.LinksEntry); ok {
		for _, rec := range le.Links {
			s.applyLocked(entryType, rec)
		}
	}
	return hash, nil
}

// applyLocked adds or retracts one edge. The caller must hold s.mu.
func (s *Store) applyLocked(entryType string, rec types.LinkRecord) {
	list := s.links[rec.Base]
	idx := -1
	for i, l := range list {
		if l.entryType == entryType && l.record.Tag == rec.Tag && l.record.Target == rec.Target {
			idx = i
			break
		}
	}

	if rec.Action == types.ActionDelete {
		if idx >= 0 {
			s.links[rec.Base] = append(list[:idx:idx], list[idx+1:]...)
		}
		return
	}
	if idx >= 0 {
		return
	}
	s.seq++
	s.links[rec.Base] = append(list, liveLink{
		entryType: entryType,
		record: types.LinkRecord{
			Base:   rec.Base,
			Target: rec.Target,
			Tag:    rec.Tag,
			Action: types.ActionAdd,
			Source: s.source,
		},
		seq: s.seq,
	})
}

// Get implements types.Store.
func (s *Store) Get(hash types.Hash) (types.Entry, error) {
	if hash == "" {
		return nil, types.ErrInvalidHash
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.entries[hash]
	if !ok {
		return nil, types.ErrNotFound
	}
	return st.entry, nil
}

// MakeHash implements types.Store.
func (s *Store) MakeHash(entryType string, entry types.Entry) (types.Hash, error) {
	hash, err := address.Of(entryType, entry)
	if err != nil {
		return "", &types.StoreError{Op: "make hash", Err: err}
	}
	return hash, nil
}

// QueryLinks implements types.Store.
func (s *Store) QueryLinks(base types.Hash, tag string, opts types.QueryOptions) ([]types.LinkRecord, error) {
	if base == "" {
		return nil, &types.StoreError{Op: "query links", Err: types.ErrInvalidHash}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []types.LinkRecord{}
	for _, l := range s.links[base] {
		if tag != "" && l.record.Tag != tag {
			continue
		}
		if opts.EntryType != "" && l.entryType != opts.EntryType {
			continue
		}
		rec := l.record
		if st, ok := s.entries[rec.Target]; ok {
			rec.EntryType = st.entryType
			if opts.Load {
				rec.Entry = st.entry
			}
		}
		results = append(results, rec)
	}
	return results, nil
}

// Len returns the number of distinct entries committed.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
