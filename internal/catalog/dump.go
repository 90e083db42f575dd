package catalog

import (
	"fmt"
	"slices"

	"github.com/mesh-intelligence/linkrepo/pkg/links"
	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

// DumpOptions selects what Dump reports. When none of Links, Rules and
// Elements is set, all three are.
type DumpOptions struct {
	// Names restricts the dump to these objects.
	Names []string
	// Tags restricts the links aspect to these tags.
	Tags []string

	Links    bool
	Rules    bool
	Elements bool
}

// DumpInfo is what Dump reports about one object.
type DumpInfo struct {
	Links    []string `json:"links,omitempty" yaml:"links,omitempty"`
	Rules    []string `json:"rules,omitempty" yaml:"rules,omitempty"`
	Elements []string `json:"elements,omitempty" yaml:"elements,omitempty"`
}

// Dump reports on every object in scope, keyed by name:
//
//   - links: outgoing links in the default repo as "tag target", and in
//     named repos as "repo:tag target"
//   - rules: the rule sentences of objects that are repos
//   - elements: the members of objects that name a saved query, as
//     "origin: base tag target"
//
// On error the entries gathered so far are returned with it.
func (c *Catalog) Dump(opts DumpOptions) (map[string]DumpInfo, error) {
	if !opts.Links && !opts.Rules && !opts.Elements {
		opts.Links, opts.Rules, opts.Elements = true, true, true
	}
	out := make(map[string]DumpInfo)

	root, err := c.Root()
	if err != nil {
		return out, err
	}
	everything, err := c.scope.Get(root, tagScope)
	if err != nil {
		return out, err
	}
	if len(opts.Names) > 0 {
		everything, err = everything.Select(func(lr links.LinkReplace) bool {
			return slices.Contains(opts.Names, Render(lr.Entry))
		})
		if err != nil {
			return out, err
		}
	}
	names, err := everything.Data()
	if err != nil {
		return out, err
	}
	hashes := everything.Hashes()

	var repos []*links.Repo
	if opts.Links {
		if repos, err = c.linkRepos(); err != nil {
			return out, err
		}
	}

	for i, h := range hashes {
		name := Render(names[i])
		var info DumpInfo

		if opts.Links {
			if info.Links, err = c.dumpLinks(h, repos, opts.Tags); err != nil {
				return out, fmt.Errorf("dumping links of %q: %w", name, err)
			}
		}
		if opts.Rules {
			isRepo, err := c.isRepo(h)
			if err != nil {
				return out, err
			}
			if isRepo {
				r, err := c.Repo(name)
				if err != nil {
					return out, err
				}
				info.Rules = r.Rules("", "", "")
			}
		}
		if opts.Elements {
			if info.Elements, err = c.dumpElements(name, h); err != nil {
				return out, fmt.Errorf("dumping elements of %q: %w", name, err)
			}
		}
		out[name] = info
	}
	return out, nil
}

// linkRepos returns the default repo followed by every named repo in scope.
func (c *Catalog) linkRepos() ([]*links.Repo, error) {
	root, err := c.Root()
	if err != nil {
		return nil, err
	}
	scope, err := c.scope.Get(root, tagScope)
	if err != nil {
		return nil, err
	}
	repos := []*links.Repo{c.userLinks}
	v := c.reviver()
	for _, l := range scope.Links() {
		isRepo, err := c.isRepo(l.Target)
		if err != nil {
			return nil, err
		}
		if !isRepo {
			continue
		}
		r, err := v.Repo(Render(l.Entry))
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, nil
}

func (c *Catalog) dumpLinks(h types.Hash, repos []*links.Repo, tags []string) ([]string, error) {
	var out []string
	for _, r := range repos {
		ls, err := r.Get(h, tags...)
		if err != nil {
			return nil, err
		}
		prefix := ""
		if r != c.userLinks {
			prefix = r.Label() + ":"
		}
		for _, l := range ls.Links() {
			out = append(out, fmt.Sprintf("%s%s %s", prefix, l.Tag, c.nameOf(l.Target, l.Entry)))
		}
	}
	return out, nil
}

func (c *Catalog) dumpElements(name string, h types.Hash) ([]string, error) {
	saved, err := c.queries.Get(h, tagQuery)
	if err != nil || saved.Len() == 0 {
		return nil, err
	}
	q, err := c.loadQuery(name)
	if err != nil {
		return nil, err
	}
	base := c.nameOf(q.Base(), nil)
	var out []string
	for _, l := range q.Links() {
		out = append(out, fmt.Sprintf("%s: %s %s %s", q.Origin().Label(), base, l.Tag, c.nameOf(l.Target, nil)))
	}
	return out, nil
}

// nameOf renders the entry at h, loading it when e is nil. Entries that
// cannot be loaded render as their hash.
func (c *Catalog) nameOf(h types.Hash, e types.Entry) string {
	if e == nil {
		var err error
		if e, err = c.store.Get(h); err != nil {
			return h
		}
	}
	return Render(e)
}
