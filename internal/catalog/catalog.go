// Package catalog is the named-object layer behind the linkrepo command.
//
// Objects and repos are addressed by name: a name's hash is the address of a
// Name entry holding it. The catalog keeps its own bookkeeping in link repos
// under the InteriorLinks entry type:
//
//	scope    root  -> object   every object created through the catalog
//	repo     name  -> Repo     the current rule set of a named repo
//	query    name  -> Query    a saved query result
//	element  Query -> object   the members of a saved query
//
// The root is the Name entry of the configured agent.
package catalog

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/linkrepo/pkg/links"
	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

// Entry types committed by the catalog.
const (
	EntryName  = "Name"
	EntryRepo  = "Repo"
	EntryQuery = "Query"

	// InteriorLinks is the entry type of the bookkeeping repos.
	InteriorLinks = "InteriorLinks"

	// DefaultRepo names the rule-free repo used when no repo is given.
	DefaultRepo = "Links"
)

// Bookkeeping tags.
const (
	tagScope   = "scope"
	tagRepo    = "repo"
	tagQuery   = "query"
	tagElement = "element"
)

// Catalog errors.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrRepoNotFound   = errors.New("repo not found")
	ErrRepoExists     = errors.New("repo already exists")
	ErrQueryNotFound  = errors.New("query not found")
	ErrNameEmpty      = errors.New("name must not be empty")
)

// Catalog runs named operations against a store. It is not safe for
// concurrent use.
type Catalog struct {
	store  types.Store
	agent  string
	logger *zap.Logger
	root   types.Hash

	scope     *links.Repo
	repos     *links.Repo
	queries   *links.Repo
	elements  *links.Repo
	userLinks *links.Repo
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger passed to every repo the catalog builds.
func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a catalog over store rooted at agent's Name entry.
func New(store types.Store, agent string, opts ...Option) *Catalog {
	if agent == "" {
		agent = types.DefaultAgent
	}
	c := &Catalog{store: store, agent: agent, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	interior := func(label string) *links.Repo {
		return links.NewRepo(InteriorLinks, store, links.WithLabel(label), links.WithLogger(c.logger))
	}
	c.scope = interior(tagScope)
	c.repos = interior(tagRepo)
	c.queries = interior(tagQuery)
	c.elements = interior(tagElement)
	c.userLinks = links.NewRepo(DefaultRepo, store, links.WithLogger(c.logger))
	return c
}

// Root returns the catalog root, committing it on first use.
func (c *Catalog) Root() (types.Hash, error) {
	if c.root != "" {
		return c.root, nil
	}
	h, err := c.store.Commit(EntryName, types.StringEntry(c.agent))
	if err != nil {
		return "", fmt.Errorf("committing root: %w", err)
	}
	c.root = h
	return h, nil
}

// HashByName returns the address of name's Name entry without committing it.
func (c *Catalog) HashByName(name string) (types.Hash, error) {
	return c.store.MakeHash(EntryName, types.StringEntry(name))
}

// existing returns the hash of name, failing with ErrObjectNotFound when its
// Name entry was never committed.
func (c *Catalog) existing(name string) (types.Hash, error) {
	if name == "" {
		return "", ErrNameEmpty
	}
	h, err := c.HashByName(name)
	if err != nil {
		return "", err
	}
	if _, err := c.store.Get(h); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrObjectNotFound, name)
		}
		return "", err
	}
	return h, nil
}

// commitName commits name and puts it in scope.
func (c *Catalog) commitName(name string) (types.Hash, error) {
	if name == "" {
		return "", ErrNameEmpty
	}
	root, err := c.Root()
	if err != nil {
		return "", err
	}
	h, err := c.store.Commit(EntryName, types.StringEntry(name))
	if err != nil {
		return "", err
	}
	if err := c.scope.Put(root, h, tagScope); err != nil {
		return "", err
	}
	return h, nil
}

// CreateObject commits a named object and adds it to the scope.
func (c *Catalog) CreateObject(name string) error {
	if _, err := c.commitName(name); err != nil {
		return fmt.Errorf("creating object %q: %w", name, err)
	}
	return nil
}

// RemoveObject takes a named object out of the scope. Its entry and links
// remain in the store.
func (c *Catalog) RemoveObject(name string) error {
	h, err := c.HashByName(name)
	if err != nil {
		return fmt.Errorf("removing object %q: %w", name, err)
	}
	root, err := c.Root()
	if err != nil {
		return fmt.Errorf("removing object %q: %w", name, err)
	}
	if err := c.scope.Remove(root, h, tagScope); err != nil {
		return fmt.Errorf("removing object %q: %w", name, err)
	}
	return nil
}

// Link puts base -tag-> target in the named repo, or in the default repo
// when repo is empty, and returns a description of the edge.
func (c *Catalog) Link(repo, base, target, tag string) (string, error) {
	r, b, t, err := c.edge(repo, base, target)
	if err != nil {
		return "", fmt.Errorf("linking %s +%s %s: %w", base, tag, target, err)
	}
	if err := r.Put(b, t, tag); err != nil {
		return "", fmt.Errorf("linking %s +%s %s: %w", base, tag, target, err)
	}
	return fmt.Sprintf("%s +%s %s", base, tag, target), nil
}

// RemoveLink removes base -tag-> target from the named repo, or from the
// default repo when repo is empty, and returns a description of the edge.
func (c *Catalog) RemoveLink(repo, base, target, tag string) (string, error) {
	r, b, t, err := c.edge(repo, base, target)
	if err != nil {
		return "", fmt.Errorf("unlinking %s -%s %s: %w", base, tag, target, err)
	}
	if err := r.Remove(b, t, tag); err != nil {
		return "", fmt.Errorf("unlinking %s -%s %s: %w", base, tag, target, err)
	}
	return fmt.Sprintf("%s -%s %s", base, tag, target), nil
}

func (c *Catalog) edge(repo, base, target string) (*links.Repo, types.Hash, types.Hash, error) {
	b, err := c.existing(base)
	if err != nil {
		return nil, "", "", err
	}
	t, err := c.existing(target)
	if err != nil {
		return nil, "", "", err
	}
	r, err := c.Repo(repo)
	if err != nil {
		return nil, "", "", err
	}
	return r, b, t, nil
}
