package catalog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/linkrepo/internal/memory"
	"github.com/mesh-intelligence/linkrepo/pkg/links"
	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

func newCatalog(t *testing.T, objects ...string) (*Catalog, *memory.Store) {
	t.Helper()
	s := memory.New("tester")
	c := New(s, "tester")
	for _, o := range objects {
		require.NoError(t, c.CreateObject(o))
	}
	return c, s
}

func query(t *testing.T, c *Catalog, repo, base, tag string) []string {
	t.Helper()
	got, err := c.CreateQuery("", repo, base, tag)
	require.NoError(t, err)
	return got
}

func TestObjects(t *testing.T) {
	c, _ := newCatalog(t, "alice", "bob")

	d, err := c.Dump(DumpOptions{Links: true})
	require.NoError(t, err)
	assert.Len(t, d, 2)
	assert.Contains(t, d, "alice")

	require.NoError(t, c.RemoveObject("alice"))
	d, err = c.Dump(DumpOptions{})
	require.NoError(t, err)
	assert.NotContains(t, d, "alice")

	assert.ErrorIs(t, c.CreateObject(""), ErrNameEmpty)

	root, err := c.Root()
	require.NoError(t, err)
	again, err := New(memory.New("x"), "tester").Root()
	require.NoError(t, err)
	assert.Equal(t, root, again, "root is the agent's Name entry")
}

func TestLinkDefaultRepo(t *testing.T) {
	c, _ := newCatalog(t, "alice", "bob", "carol")

	desc, err := c.Link("", "alice", "bob", "knows")
	require.NoError(t, err)
	assert.Equal(t, "alice +knows bob", desc)
	_, err = c.Link(DefaultRepo, "alice", "carol", "knows")
	require.NoError(t, err)

	assert.Equal(t, []string{"bob", "carol"}, query(t, c, "", "alice", "knows"))
	assert.Empty(t, query(t, c, "", "bob", "knows"), "default repo has no rules")

	desc, err = c.RemoveLink("", "alice", "bob", "knows")
	require.NoError(t, err)
	assert.Equal(t, "alice -knows bob", desc)
	assert.Equal(t, []string{"carol"}, query(t, c, "", "alice", ""))

	_, err = c.Link("", "alice", "nobody", "knows")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	_, err = c.CreateQuery("", "", "nobody", "knows")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestRepos(t *testing.T) {
	c, _ := newCatalog(t)

	require.NoError(t, c.CreateRepo("married"))
	assert.ErrorIs(t, c.CreateRepo("married"), ErrRepoExists)
	assert.ErrorIs(t, c.CreateRepo(DefaultRepo), ErrRepoExists)

	r, err := c.Repo("married")
	require.NoError(t, err)
	assert.Equal(t, "married", r.Label())
	assert.Equal(t, "married", r.Name())

	_, err = c.Repo("nope")
	assert.ErrorIs(t, err, ErrRepoNotFound)
	assert.ErrorIs(t, err, types.ErrRuleReconstruction)

	_, err = c.Link("nope", "married", "married", "t")
	assert.ErrorIs(t, err, ErrRepoNotFound)
}

func TestReciprocalMarried(t *testing.T) {
	c, s := newCatalog(t, "alice", "bob", "carol")
	require.NoError(t, c.CreateRepo("married"))
	require.NoError(t, c.Reciprocal(links.TagRef{Tag: "marriedTo", Repo: "married"}, nil))

	_, err := c.Link("married", "alice", "bob", "marriedTo")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, query(t, c, "married", "bob", "marriedTo"))

	_, err = c.RemoveLink("married", "alice", "bob", "marriedTo")
	require.NoError(t, err)
	_, err = c.Link("married", "alice", "carol", "marriedTo")
	require.NoError(t, err)

	assert.Empty(t, query(t, c, "married", "bob", "marriedTo"))
	assert.Equal(t, []string{"alice"}, query(t, c, "married", "carol", "marriedTo"))

	// Rules live in the store, so a fresh catalog over it sees them.
	fresh := New(s, "tester")
	_, err = fresh.Link("married", "bob", "carol", "marriedTo")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, query(t, fresh, "married", "carol", "marriedTo"))
}

func TestReciprocalForeign(t *testing.T) {
	c, _ := newCatalog(t, "post", "ann")
	require.NoError(t, c.CreateRepo("posts"))
	require.NoError(t, c.CreateRepo("authors"))
	require.NoError(t, c.Reciprocal(
		links.TagRef{Tag: "writtenBy", Repo: "posts"},
		&links.TagRef{Tag: "wrote", Repo: "authors"},
	))

	_, err := c.Link("posts", "post", "ann", "writtenBy")
	require.NoError(t, err)
	assert.Equal(t, []string{"post"}, query(t, c, "authors", "ann", "wrote"))
	assert.Empty(t, query(t, c, "posts", "ann", "wrote"))

	err = c.Reciprocal(links.TagRef{Tag: "t", Repo: "posts"}, &links.TagRef{Tag: "t", Repo: "missing"})
	assert.ErrorIs(t, err, ErrRepoNotFound)
}

func TestPredicateRule(t *testing.T) {
	c, _ := newCatalog(t, "ann", "club", "doc")
	for _, r := range []string{"people", "groups", "access"} {
		require.NoError(t, c.CreateRepo(r))
	}
	require.NoError(t, c.Predicate(
		links.TagRef{Tag: "memberOf", Repo: "people"},
		links.TagRef{Tag: "owns", Repo: "groups"},
		links.TagRef{Tag: "canRead", Repo: "access"},
	))

	_, err := c.Link("groups", "club", "doc", "owns")
	require.NoError(t, err)
	_, err = c.Link("people", "ann", "club", "memberOf")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc"}, query(t, c, "access", "ann", "canRead"))

	_, err = c.RemoveLink("people", "ann", "club", "memberOf")
	require.NoError(t, err)
	assert.Empty(t, query(t, c, "access", "ann", "canRead"))
}

func TestSingularRule(t *testing.T) {
	c, _ := newCatalog(t, "car", "ann", "ben")
	require.NoError(t, c.CreateRepo("owners"))
	require.NoError(t, c.Singular(links.TagRef{Tag: "ownedBy", Repo: "owners"}))

	_, err := c.Link("owners", "car", "ann", "ownedBy")
	require.NoError(t, err)
	_, err = c.Link("owners", "car", "ben", "ownedBy")
	require.NoError(t, err)
	assert.Equal(t, []string{"ben"}, query(t, c, "owners", "car", "ownedBy"))

	assert.ErrorIs(t, c.Singular(links.TagRef{Tag: "x", Repo: "nope"}), ErrRepoNotFound)
}

func TestRuleUpdatesKeepOneRepoLink(t *testing.T) {
	c, _ := newCatalog(t)
	require.NoError(t, c.CreateRepo("r"))
	require.NoError(t, c.Singular(links.TagRef{Tag: "a", Repo: "r"}))
	require.NoError(t, c.Singular(links.TagRef{Tag: "b", Repo: "r"}))

	nh, err := c.HashByName("r")
	require.NoError(t, err)
	ls, err := c.repos.Get(nh, tagRepo)
	require.NoError(t, err)
	assert.Equal(t, 1, ls.Len())

	r, err := c.Repo("r")
	require.NoError(t, err)
	assert.True(t, r.IsSingular("a"))
	assert.True(t, r.IsSingular("b"))
}

func TestQueries(t *testing.T) {
	c, _ := newCatalog(t, "alice", "bob", "carol", "dave")
	for _, l := range [][3]string{{"alice", "bob", "knows"}, {"alice", "carol", "likes"}, {"alice", "dave", "knows"}} {
		_, err := c.Link("", l[0], l[1], l[2])
		require.NoError(t, err)
	}

	got, err := c.CreateQuery("everyone", "", "alice", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol", "dave"}, got)

	data, err := c.Data("everyone")
	require.NoError(t, err)
	assert.Equal(t, got, data)

	hashes, err := c.Hashes("everyone")
	require.NoError(t, err)
	bob, err := c.HashByName("bob")
	require.NoError(t, err)
	assert.Len(t, hashes, 3)
	assert.Equal(t, bob, hashes[0])

	known, err := c.Tags("everyone", []string{"knows"}, "known")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "dave"}, known)
	data, err = c.Data("known")
	require.NoError(t, err)
	assert.Equal(t, known, data)

	// Saving under an existing name replaces the earlier query.
	_, err = c.Tags("everyone", []string{"likes"}, "known")
	require.NoError(t, err)
	data, err = c.Data("known")
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, data)

	onlyView, err := c.Tags("everyone", []string{"likes"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, onlyView)

	require.NoError(t, c.RemoveAllQuery("known"))
	assert.Equal(t, []string{"bob", "dave"}, query(t, c, "", "alice", ""))
	d, err := c.Dump(DumpOptions{Links: true})
	require.NoError(t, err)
	assert.NotContains(t, d, "known")

	_, err = c.Data("nothing")
	assert.ErrorIs(t, err, ErrQueryNotFound)
}

func TestCreateQueryPartialResult(t *testing.T) {
	c, s := newCatalog(t, "alice", "bob")
	_, err := c.Link("", "alice", "bob", "knows")
	require.NoError(t, err)

	s.FailCommit = func(entryType string, _ types.Entry) error {
		if entryType == EntryQuery {
			return assert.AnError
		}
		return nil
	}
	got, err := c.CreateQuery("saved", "", "alice", "knows")
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"bob"}, got)
}

func TestRenameQueryFailureKeepsOneQuery(t *testing.T) {
	c, s := newCatalog(t, "alice", "bob", "carol")
	_, err := c.Link("", "alice", "bob", "knows")
	require.NoError(t, err)
	_, err = c.Link("", "alice", "carol", "likes")
	require.NoError(t, err)
	_, err = c.CreateQuery("saved", "", "alice", "knows")
	require.NoError(t, err)

	s.FailCommit = func(_ string, e types.Entry) error {
		if le, ok := e.(types.LinksEntry); ok && len(le.Links) > 0 && le.Links[0].Action == types.ActionDelete {
			return assert.AnError
		}
		return nil
	}
	got, err := c.CreateQuery("saved", "", "alice", "likes")
	s.FailCommit = nil
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"carol"}, got)

	nh, err := c.HashByName("saved")
	require.NoError(t, err)
	ls, err := c.queries.Get(nh, tagQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, ls.Len())

	data, err := c.Data("saved")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, data)
}

func setupDump(t *testing.T) *Catalog {
	t.Helper()
	c, _ := newCatalog(t, "alice", "bob")
	require.NoError(t, c.CreateRepo("married"))
	require.NoError(t, c.Reciprocal(links.TagRef{Tag: "marriedTo", Repo: "married"}, nil))
	_, err := c.Link("married", "alice", "bob", "marriedTo")
	require.NoError(t, err)
	_, err = c.Link("", "alice", "bob", "knows")
	require.NoError(t, err)
	got, err := c.CreateQuery("spouses", "married", "bob", "marriedTo")
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, got)
	return c
}

func TestDumpGolden(t *testing.T) {
	c := setupDump(t)
	d, err := c.Dump(DumpOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	require.NoError(t, enc.Encode(d))

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "dump", buf.Bytes())
}

func TestDumpOptions(t *testing.T) {
	c := setupDump(t)

	tests := []struct {
		name string
		opts DumpOptions
		want map[string]DumpInfo
	}{
		{
			name: "names and tags",
			opts: DumpOptions{Names: []string{"alice"}, Tags: []string{"knows"}, Links: true},
			want: map[string]DumpInfo{"alice": {Links: []string{"knows bob"}}},
		},
		{
			name: "rules only",
			opts: DumpOptions{Names: []string{"married", "bob"}, Rules: true},
			want: map[string]DumpInfo{
				"bob":     {},
				"married": {Rules: []string{"All subject marriedTo object => object marriedTo subject"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Dump(tt.opts)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Dump mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExportRepo(t *testing.T) {
	c, _ := newCatalog(t)
	require.NoError(t, c.CreateRepo("married"))
	require.NoError(t, c.Reciprocal(links.TagRef{Tag: "marriedTo", Repo: "married"}, nil))
	require.NoError(t, c.Singular(links.TagRef{Tag: "marriedTo", Repo: "married"}))

	out, err := c.ExportRepo("married")
	require.NoError(t, err)

	var re links.RepoEntry
	require.NoError(t, yaml.Unmarshal(out, &re))
	r, err := c.Repo("married")
	require.NoError(t, err)
	if diff := cmp.Diff(r.Serial(), re, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("exported rules differ (-repo +export):\n%s", diff)
	}

	_, err = c.ExportRepo("nope")
	assert.ErrorIs(t, err, ErrRepoNotFound)
}

func TestRender(t *testing.T) {
	obj, err := types.NewObjectEntry(map[string]int{"a": 1})
	require.NoError(t, err)

	assert.Equal(t, "alice", Render(types.StringEntry("alice")))
	assert.Equal(t, `{"a":1}`, Render(obj))
	assert.Equal(t, `{"links":[{"base":"a","target":"b","tag":"t"}]}`,
		Render(types.LinksEntry{Links: []types.LinkRecord{{Base: "a", Target: "b", Tag: "t"}}}))
}
