package catalog

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/linkrepo/pkg/links"
	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

// repoInfo is the current persisted rule set of a named repo.
type repoInfo struct {
	nameHash types.Hash
	hash     types.Hash
	entry    links.RepoEntry
}

// CreateRepo creates a named object and an empty rule set for it. Links put
// through the repo are committed under its name as entry type.
func (c *Catalog) CreateRepo(name string) error {
	if name == DefaultRepo {
		return fmt.Errorf("creating repo %q: %w", name, ErrRepoExists)
	}
	if _, err := c.loadRepo(name); err == nil {
		return fmt.Errorf("creating repo %q: %w", name, ErrRepoExists)
	} else if !errors.Is(err, ErrRepoNotFound) {
		return fmt.Errorf("creating repo %q: %w", name, err)
	}

	nh, err := c.commitName(name)
	if err != nil {
		return fmt.Errorf("creating repo %q: %w", name, err)
	}
	obj, err := types.NewObjectEntry(links.NewRepo(name, c.store).Serial())
	if err != nil {
		return fmt.Errorf("creating repo %q: %w", name, err)
	}
	rh, err := c.store.Commit(EntryRepo, obj)
	if err != nil {
		return fmt.Errorf("creating repo %q: %w", name, err)
	}
	if err := c.repos.Put(nh, rh, tagRepo); err != nil {
		return fmt.Errorf("creating repo %q: %w", name, err)
	}
	return nil
}

// loadRepo returns the current rule set of the named repo.
func (c *Catalog) loadRepo(name string) (repoInfo, error) {
	nh, err := c.HashByName(name)
	if err != nil {
		return repoInfo{}, err
	}
	ls, err := c.repos.Get(nh, tagRepo)
	if err != nil {
		return repoInfo{}, err
	}
	if ls.Len() == 0 {
		return repoInfo{}, fmt.Errorf("%w: %s", ErrRepoNotFound, name)
	}
	data, err := ls.Data()
	if err != nil {
		return repoInfo{}, err
	}
	obj, ok := data[0].(types.ObjectEntry)
	if !ok {
		return repoInfo{}, fmt.Errorf("repo %s: %w: got %s entry", name, types.ErrInvalidEntry, data[0].Kind())
	}
	var re links.RepoEntry
	if err := obj.Decode(&re); err != nil {
		return repoInfo{}, fmt.Errorf("repo %s: %w", name, err)
	}
	return repoInfo{nameHash: nh, hash: ls.Hashes()[0], entry: re}, nil
}

// reviver returns a Reviver that loads referenced repos from the catalog.
// Repos revived through one Reviver share instances.
func (c *Catalog) reviver() *links.Reviver {
	return links.NewReviver(c.store, func(name string) (links.RepoEntry, error) {
		info, err := c.loadRepo(name)
		if err != nil {
			return links.RepoEntry{}, err
		}
		return info.entry, nil
	}, links.WithLogger(c.logger))
}

// Repo revives the named repo with its current rules. An empty name or
// DefaultRepo returns the default repo, which has no rules.
func (c *Catalog) Repo(name string) (*links.Repo, error) {
	if name == "" || name == DefaultRepo {
		return c.userLinks, nil
	}
	r, err := c.reviver().Repo(name)
	if err != nil {
		return nil, fmt.Errorf("loading repo %q: %w", name, err)
	}
	return r, nil
}

// updateRepo commits the current rules of repo and moves its repo link from
// the previous entry to the new one.
func (c *Catalog) updateRepo(info repoInfo, repo *links.Repo) error {
	obj, err := types.NewObjectEntry(repo.Serial())
	if err != nil {
		return err
	}
	rh, err := c.store.Commit(EntryRepo, obj)
	if err != nil {
		return err
	}
	if err := c.repos.Remove(info.nameHash, info.hash, tagRepo); err != nil {
		return err
	}
	return c.repos.Put(info.nameHash, rh, tagRepo)
}

// Reciprocal adds a standing back-link rule to local's repo: local.Tag links
// are mirrored by foreign.Tag links in foreign's repo. A nil foreign mirrors
// the tag onto itself; an empty foreign.Repo means local's repo.
func (c *Catalog) Reciprocal(local links.TagRef, foreign *links.TagRef) error {
	far := local
	if foreign != nil {
		far = *foreign
		if far.Repo == "" {
			far.Repo = local.Repo
		}
	}

	info, err := c.loadRepo(local.Repo)
	if err != nil {
		return fmt.Errorf("loading repo %q: %w", local.Repo, err)
	}
	v := c.reviver()
	near, err := v.Revive(info.entry)
	if err != nil {
		return err
	}
	farRepo, err := v.Repo(far.Repo)
	if err != nil {
		return err
	}

	near.LinkBack(local.Tag, far.Tag, farRepo)
	if err := c.updateRepo(info, near); err != nil {
		return fmt.Errorf("added rule to %q, but could not save it: %w", local.Repo, err)
	}
	return nil
}

// Predicate adds a ternary rule to trigger's repo: for trigger edges A -> B,
// every C with B -query-> C gets A -dependent-> C.
func (c *Catalog) Predicate(trigger, query, dependent links.TagRef) error {
	info, err := c.loadRepo(trigger.Repo)
	if err != nil {
		return fmt.Errorf("loading trigger repo %q: %w", trigger.Repo, err)
	}
	v := c.reviver()
	tr, err := v.Revive(info.entry)
	if err != nil {
		return err
	}
	qr, err := v.Repo(query.Repo)
	if err != nil {
		return fmt.Errorf("loading query repo: %w", err)
	}
	dr, err := v.Repo(dependent.Repo)
	if err != nil {
		return fmt.Errorf("loading dependent repo: %w", err)
	}

	tr.Predicate(trigger.Tag, qr.Tag(query.Tag), dr.Tag(dependent.Tag))
	if err := c.updateRepo(info, tr); err != nil {
		return fmt.Errorf("created rule in %q, but could not save it: %w", trigger.Repo, err)
	}
	return nil
}

// Singular makes ref.Tag exclusive in ref.Repo.
func (c *Catalog) Singular(ref links.TagRef) error {
	info, err := c.loadRepo(ref.Repo)
	if err != nil {
		return fmt.Errorf("loading repo %q: %w", ref.Repo, err)
	}
	r, err := c.reviver().Revive(info.entry)
	if err != nil {
		return err
	}
	r.Singular(ref.Tag)
	if err := c.updateRepo(info, r); err != nil {
		return fmt.Errorf("created singular rule in %q, but could not save it: %w", ref.Repo, err)
	}
	return nil
}

// ExportRepo returns the rule set of the named repo as YAML.
func (c *Catalog) ExportRepo(name string) ([]byte, error) {
	info, err := c.loadRepo(name)
	if err != nil {
		return nil, fmt.Errorf("exporting repo %q: %w", name, err)
	}
	out, err := yaml.Marshal(info.entry)
	if err != nil {
		return nil, fmt.Errorf("exporting repo %q: %w", name, err)
	}
	return out, nil
}

// isRepo reports whether hash names a repo.
func (c *Catalog) isRepo(hash types.Hash) (bool, error) {
	ls, err := c.repos.Get(hash, tagRepo)
	if err != nil {
		return false, err
	}
	return ls.Len() > 0, nil
}
