package sqlite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mesh-intelligence/linkrepo/pkg/links"
	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func attach(t *testing.T, cfg types.Config) *Backend {
	t.Helper()
	if cfg.Backend == "" {
		cfg.Backend = types.BackendSQLite
	}
	b := NewBackend()
	require.NoError(t, b.Attach(cfg))
	t.Cleanup(func() { b.Detach() })
	return b
}

func logLines(t *testing.T, dir string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, entriesJSONL))
	require.NoError(t, err)
	s := strings.TrimSpace(string(data))
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func addLink(base, target types.Hash, tag string) types.LinksEntry {
	return types.LinksEntry{Links: []types.LinkRecord{{Base: base, Target: target, Tag: tag, Action: types.ActionAdd}}}
}

func TestBackendAttachDetach(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	require.NoError(t, b.Attach(cfg))
	assert.FileExists(t, filepath.Join(dir, databaseFile))
	assert.FileExists(t, filepath.Join(dir, entriesJSONL))
	assert.Empty(t, logLines(t, dir))

	assert.ErrorIs(t, b.Attach(cfg), types.ErrAlreadyAttached)

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach(), "detach is idempotent")

	_, err := b.Commit("Name", types.StringEntry("x"))
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	_, err = b.Get("abc")
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	_, err = b.QueryLinks("abc", "", types.QueryOptions{})
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	assert.ErrorIs(t, b.Flush(), types.ErrStoreDetached)
}

func TestBackendCommitLogFailure(t *testing.T) {
	dir := t.TempDir()
	b := attach(t, types.Config{DataDir: dir, SyncStrategy: types.SyncImmediate})
	a, err := b.Commit("Name", types.StringEntry("a"))
	require.NoError(t, err)

	logPath := filepath.Join(dir, entriesJSONL)
	require.NoError(t, os.Remove(logPath))
	require.NoError(t, os.Mkdir(logPath, 0o755))

	hash, err := b.Commit("Links", addLink(a, a, "self"))
	assert.ErrorIs(t, err, types.ErrStore)
	assert.Empty(t, hash)

	want, err := b.MakeHash("Links", addLink(a, a, "self"))
	require.NoError(t, err)
	_, err = b.Get(want)
	assert.ErrorIs(t, err, types.ErrNotFound)
	links, err := b.QueryLinks(a, "self", types.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestBackendAttachInvalidConfig(t *testing.T) {
	b := NewBackend()
	err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir(), SyncStrategy: "eventually"})
	assert.ErrorIs(t, err, types.ErrSyncStrategyUnknown)
}

func TestBackendCommitGet(t *testing.T) {
	dir := t.TempDir()
	b := attach(t, types.Config{DataDir: dir})

	obj, err := types.NewObjectEntry(map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)

	entries := []struct {
		name      string
		entryType string
		entry     types.Entry
	}{
		{"string", "Name", types.StringEntry("alice")},
		{"object", "Repo", obj},
		{"links", "Links", addLink("x", "y", "t")},
	}
	for _, e := range entries {
		t.Run(e.name, func(t *testing.T) {
			h, err := b.Commit(e.entryType, e.entry)
			require.NoError(t, err)

			made, err := b.MakeHash(e.entryType, e.entry)
			require.NoError(t, err)
			assert.Equal(t, made, h)

			got, err := b.Get(h)
			require.NoError(t, err)
			assert.Equal(t, e.entry.Kind(), got.Kind())
			if e.name == "object" {
				var m map[string]any
				require.NoError(t, got.(types.ObjectEntry).Decode(&m))
				assert.Equal(t, "x", m["a"])
			} else {
				assert.Equal(t, e.entry, got)
			}
		})
	}

	_, err = b.Get("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = b.Get("")
	assert.ErrorIs(t, err, types.ErrInvalidHash)
	assert.Len(t, logLines(t, dir), 3)
}

func TestBackendQueryLinks(t *testing.T) {
	b := attach(t, types.Config{DataDir: t.TempDir(), Agent: "ann"})

	a, err := b.Commit("Name", types.StringEntry("a"))
	require.NoError(t, err)
	x, err := b.Commit("Name", types.StringEntry("x"))
	require.NoError(t, err)
	y, err := b.Commit("Doc", types.StringEntry("y"))
	require.NoError(t, err)

	for _, step := range []struct {
		entryType string
		entry     types.LinksEntry
	}{
		{"Links", addLink(a, x, "t")},
		{"Links", addLink(a, y, "u")},
		{"Other", addLink(a, x, "t")},
		{"Links", addLink(a, x, "t")},
	} {
		_, err := b.Commit(step.entryType, step.entry)
		require.NoError(t, err)
	}

	recs, err := b.QueryLinks(a, "", types.QueryOptions{EntryType: "Links", Load: true})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, x, recs[0].Target)
	assert.Equal(t, "t", recs[0].Tag)
	assert.Equal(t, "Name", recs[0].EntryType)
	assert.Equal(t, types.StringEntry("x"), recs[0].Entry)
	assert.Equal(t, b.Source(), recs[0].Source)
	assert.Equal(t, y, recs[1].Target)
	assert.Equal(t, "Doc", recs[1].EntryType)

	recs, err = b.QueryLinks(a, "t", types.QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, recs, 2, "one per entry type")
	assert.Nil(t, recs[0].Entry)

	del := types.LinksEntry{Links: []types.LinkRecord{{Base: a, Target: x, Tag: "t", Action: types.ActionDelete}}}
	_, err = b.Commit("Links", del)
	require.NoError(t, err)
	_, err = b.Commit("Links", addLink(a, x, "t"))
	require.NoError(t, err)

	recs, err = b.QueryLinks(a, "", types.QueryOptions{EntryType: "Links"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, y, recs[0].Target, "re-added edge moves to the end")
	assert.Equal(t, x, recs[1].Target)

	recs, err = b.QueryLinks("nothing-here", "", types.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestBackendReplay(t *testing.T) {
	dir := t.TempDir()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir, Agent: "ann"}

	first := NewBackend()
	require.NoError(t, first.Attach(cfg))
	married := links.NewRepo("married", first).LinkBack("marriedTo", "", nil)
	a, err := first.Commit("Name", types.StringEntry("alice"))
	require.NoError(t, err)
	bob, err := first.Commit("Name", types.StringEntry("bob"))
	require.NoError(t, err)
	carol, err := first.Commit("Name", types.StringEntry("carol"))
	require.NoError(t, err)
	require.NoError(t, married.Put(a, bob, "marriedTo"))
	require.NoError(t, married.Remove(a, bob, "marriedTo"))
	require.NoError(t, married.Put(a, carol, "marriedTo"))
	source := first.Source()
	require.NoError(t, first.Detach())

	// A different agent reopening the log keeps the original sources.
	cfg.Agent = "ben"
	second := attach(t, cfg)
	assert.NotEqual(t, source, second.Source())

	married = links.NewRepo("married", second).LinkBack("marriedTo", "", nil)
	ls, err := married.Get(carol, "marriedTo")
	require.NoError(t, err)
	assert.Equal(t, []types.Hash{a}, ls.Hashes())
	assert.Equal(t, source, ls.Links()[0].Source)

	ls, err = married.Get(bob, "marriedTo")
	require.NoError(t, err)
	assert.Zero(t, ls.Len())

	ok, err := married.Exists(a, bob, "marriedTo")
	require.NoError(t, err)
	assert.True(t, ok, "retracted edges still have their add record")

	// Commits continue the sequence after replay.
	_, err = second.Commit("Name", types.StringEntry("dave"))
	require.NoError(t, err)
	assert.Equal(t, uint64(len(logLines(t, dir))), second.seq)
}

func TestBackendReplaySkipsBadLines(t *testing.T) {
	dir := t.TempDir()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	b := NewBackend()
	require.NoError(t, b.Attach(cfg))
	good, err := b.Commit("Name", types.StringEntry("good"))
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	path := filepath.Join(dir, entriesJSONL)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n" +
		`{"seq":2,"hash":"forged","entry_type":"Name","entry":{"kind":"string","data":"evil"}}` + "\n" +
		`{"seq":3,"hash":"x","entry_type":"Name","entry":{"kind":"mystery","data":1}}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	b = attach(t, cfg)
	got, err := b.Get(good)
	require.NoError(t, err)
	assert.Equal(t, types.StringEntry("good"), got)
	_, err = b.Get("forged")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestBackendSyncStrategies(t *testing.T) {
	tests := []struct {
		name         string
		cfg          types.Config
		commits      int
		wantBefore   int
		wantAfterEnd int
	}{
		{
			name:         "immediate",
			cfg:          types.Config{SyncStrategy: types.SyncImmediate},
			commits:      3,
			wantBefore:   3,
			wantAfterEnd: 3,
		},
		{
			name:         "on close",
			cfg:          types.Config{SyncStrategy: types.SyncOnClose},
			commits:      3,
			wantBefore:   0,
			wantAfterEnd: 3,
		},
		{
			name:         "batch size reached",
			cfg:          types.Config{SyncStrategy: types.SyncBatch, BatchSize: 2, BatchInterval: 3600},
			commits:      3,
			wantBefore:   2,
			wantAfterEnd: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.cfg.Backend = types.BackendSQLite
			tt.cfg.DataDir = dir

			b := NewBackend()
			require.NoError(t, b.Attach(tt.cfg))
			for i := range tt.commits {
				_, err := b.Commit("Name", types.StringEntry(string(rune('a'+i))))
				require.NoError(t, err)
			}
			assert.Len(t, logLines(t, dir), tt.wantBefore)

			require.NoError(t, b.Detach())
			assert.Len(t, logLines(t, dir), tt.wantAfterEnd)
		})
	}
}

func TestBackendFlush(t *testing.T) {
	dir := t.TempDir()
	b := attach(t, types.Config{DataDir: dir, SyncStrategy: types.SyncOnClose})

	_, err := b.Commit("Name", types.StringEntry("a"))
	require.NoError(t, err)
	assert.Empty(t, logLines(t, dir))

	require.NoError(t, b.Flush())
	assert.Len(t, logLines(t, dir), 1)
}
