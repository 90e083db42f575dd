package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/linkrepo/pkg/links"
	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

// Render returns a printable form of an entry: the string itself for a
// StringEntry, compact JSON otherwise.
func Render(e types.Entry) string {
	switch v := e.(type) {
	case types.StringEntry:
		return string(v)
	case types.ObjectEntry:
		return string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("<%s entry>", e.Kind())
		}
		return string(b)
	}
}

func renderAll(es []types.Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = Render(e)
	}
	return out
}

// saveQuery commits the set as a Query entry and links the entry to each of
// its members.
func (c *Catalog) saveQuery(ls *links.LinkSet) (types.Hash, error) {
	obj, err := types.NewObjectEntry(ls.Serial())
	if err != nil {
		return "", err
	}
	qh, err := c.store.Commit(EntryQuery, obj)
	if err != nil {
		return "", err
	}
	for _, el := range ls.Hashes() {
		if err := c.elements.Put(qh, el, tagElement); err != nil {
			return "", err
		}
	}
	return qh, nil
}

// nameQuery points name at the saved query qh, replacing what it pointed at.
// The name is committed if needed.
func (c *Catalog) nameQuery(name string, qh types.Hash) error {
	nh, err := c.HashByName(name)
	if err != nil {
		return err
	}
	if _, err := c.store.Get(nh); err != nil {
		if nh, err = c.commitName(name); err != nil {
			return err
		}
	}
	prev, err := c.queries.Get(nh, tagQuery)
	if err != nil {
		return err
	}
	for _, l := range prev.Links() {
		if err := c.queries.Remove(nh, l.Target, tagQuery); err != nil {
			return err
		}
	}
	return c.queries.Put(nh, qh, tagQuery)
}

// CreateQuery runs repo.Get(base, tag) and returns the members. With a
// non-empty name the result is saved under that name. When saving fails the
// members are still returned along with the error.
func (c *Catalog) CreateQuery(name, repo, base, tag string) ([]string, error) {
	bh, err := c.existing(base)
	if err != nil {
		return nil, fmt.Errorf("query base: %w", err)
	}
	r, err := c.Repo(repo)
	if err != nil {
		return nil, err
	}
	var tags []string
	if tag != "" {
		tags = []string{tag}
	}
	ls, err := r.Get(bh, tags...)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	data, err := ls.Data()
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	elements := renderAll(data)
	if name == "" {
		return elements, nil
	}

	qh, err := c.saveQuery(ls)
	if err != nil {
		return elements, fmt.Errorf("ran query, but could not save it: %w", err)
	}
	if err := c.nameQuery(name, qh); err != nil {
		return elements, fmt.Errorf("ran query, but could not name it %q: %w", name, err)
	}
	return elements, nil
}

// loadQuery revives the named query over its origin repo.
func (c *Catalog) loadQuery(name string) (*links.LinkSet, error) {
	nh, err := c.HashByName(name)
	if err != nil {
		return nil, err
	}
	ls, err := c.queries.Get(nh, tagQuery)
	if err != nil {
		return nil, err
	}
	if ls.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrQueryNotFound, name)
	}
	data, err := ls.Data()
	if err != nil {
		return nil, err
	}
	obj, ok := data[0].(types.ObjectEntry)
	if !ok {
		return nil, fmt.Errorf("query %s: %w: got %s entry", name, types.ErrInvalidEntry, data[0].Kind())
	}
	var qe links.QueryEntry
	if err := obj.Decode(&qe); err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	origin, err := c.Repo(qe.Origin)
	if err != nil {
		return nil, err
	}
	return links.ReviveSet(qe, origin)
}

// Tags narrows the named query to the given tags and returns the members.
// With a non-empty dest the narrowed set is saved under dest, replacing any
// query saved there before.
func (c *Catalog) Tags(query string, tags []string, dest string) ([]string, error) {
	q, err := c.loadQuery(query)
	if err != nil {
		return nil, fmt.Errorf("loading query %q: %w", query, err)
	}
	p := q.Tags(tags...)
	data, err := p.Data()
	if err != nil {
		return nil, fmt.Errorf("reading query %q: %w", query, err)
	}
	elements := renderAll(data)
	if dest == "" {
		return elements, nil
	}

	ph, err := c.saveQuery(p)
	if err != nil {
		return elements, fmt.Errorf("could not save result: %w", err)
	}
	if err := c.nameQuery(dest, ph); err != nil {
		return elements, fmt.Errorf("could not name result %q: %w", dest, err)
	}
	return elements, nil
}

// Hashes returns the member hashes of the named query.
func (c *Catalog) Hashes(name string) ([]types.Hash, error) {
	q, err := c.loadQuery(name)
	if err != nil {
		return nil, fmt.Errorf("loading query %q: %w", name, err)
	}
	return q.Hashes(), nil
}

// Data returns the rendered members of the named query.
func (c *Catalog) Data(name string) ([]string, error) {
	q, err := c.loadQuery(name)
	if err != nil {
		return nil, fmt.Errorf("loading query %q: %w", name, err)
	}
	data, err := q.Data()
	if err != nil {
		return nil, fmt.Errorf("reading query %q: %w", name, err)
	}
	return renderAll(data), nil
}

// RemoveAllQuery removes every link in the named query from its origin repo,
// with rules applied, and takes the query name out of the scope.
func (c *Catalog) RemoveAllQuery(name string) error {
	q, err := c.loadQuery(name)
	if err != nil {
		return fmt.Errorf("loading query %q: %w", name, err)
	}
	q.RemoveAll()
	return c.RemoveObject(name)
}
