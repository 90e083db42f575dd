package links

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/linkrepo/internal/memory"
	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

func newStore() *memory.Store {
	return memory.New("tester")
}

// names commits one Name entry per argument and returns their hashes.
func names(t *testing.T, s types.Store, ns ...string) []types.Hash {
	t.Helper()
	out := make([]types.Hash, len(ns))
	for i, n := range ns {
		h, err := s.Commit("Name", types.StringEntry(n))
		require.NoError(t, err)
		out[i] = h
	}
	return out
}

func hashesOf(t *testing.T, r *Repo, base types.Hash, tags ...string) []types.Hash {
	t.Helper()
	ls, err := r.Get(base, tags...)
	require.NoError(t, err)
	return ls.Hashes()
}

// failDeletes returns a commit hook that rejects the retraction of any link
// pointing at one of targets, or of every link when none are given.
func failDeletes(err error, targets ...types.Hash) func(string, types.Entry) error {
	return func(_ string, e types.Entry) error {
		le, ok := e.(types.LinksEntry)
		if !ok {
			return nil
		}
		for _, rec := range le.Links {
			if rec.Action != types.ActionDelete {
				continue
			}
			if len(targets) == 0 || slices.Contains(targets, rec.Target) {
				return err
			}
		}
		return nil
	}
}
