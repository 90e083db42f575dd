package links

import (
	"fmt"
	"maps"
	"slices"

	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

// TagRef is a tag and the name of the repo it belongs to.
type TagRef struct {
	Tag  string `json:"tag" yaml:"tag"`
	Repo string `json:"repo" yaml:"repo"`
}

// PredicateRef is the persisted form of a Predicate.
type PredicateRef struct {
	Query     TagRef `json:"query" yaml:"query"`
	Dependent TagRef `json:"dependent" yaml:"dependent"`
}

// RepoEntry is the persisted form of a repo's rule set. Self-links are stored
// as back-links naming the repo itself. Repos are referenced by label, so a
// set of repos that refer to one another needs a resolver to be revived.
type RepoEntry struct {
	Name       string                    `json:"name" yaml:"name"`
	EntryType  string                    `json:"entry_type,omitempty" yaml:"entry_type,omitempty"`
	BackLinks  map[string][]TagRef       `json:"back_links" yaml:"back_links"`
	Exclusive  []string                  `json:"exclusive" yaml:"exclusive"`
	Predicates map[string][]PredicateRef `json:"predicates" yaml:"predicates"`
}

// QueryEntry is the persisted form of a LinkSet.
type QueryEntry struct {
	Links  []types.LinkRecord `json:"links" yaml:"links"`
	Base   types.Hash         `json:"base" yaml:"base"`
	Origin string             `json:"origin" yaml:"origin"`
}

// Serial returns the persisted form of the repo's rules. Tags keep the order
// in which they first received a rule; the JSON encoding of the maps is
// sorted by key.
func (r *Repo) Serial() RepoEntry {
	re := RepoEntry{
		Name:       r.label,
		BackLinks:  make(map[string][]TagRef),
		Exclusive:  []string{},
		Predicates: make(map[string][]PredicateRef),
	}
	if r.name != r.label {
		re.EntryType = r.name
	}

	for _, tag := range r.tagOrder {
		for _, bl := range r.backLinks[tag] {
			re.BackLinks[tag] = append(re.BackLinks[tag], TagRef{Tag: bl.Name, Repo: bl.Repo.label})
		}
		for _, revTag := range r.selfLinks[tag] {
			re.BackLinks[tag] = append(re.BackLinks[tag], TagRef{Tag: revTag, Repo: r.label})
		}
		for _, p := range r.predicates[tag] {
			re.Predicates[tag] = append(re.Predicates[tag], PredicateRef{
				Query:     TagRef{Tag: p.Query.Name, Repo: p.Query.Repo.label},
				Dependent: TagRef{Tag: p.Dependent.Name, Repo: p.Dependent.Repo.label},
			})
		}
		if r.IsSingular(tag) {
			re.Exclusive = append(re.Exclusive, tag)
		}
	}
	return re
}

// Serial returns the persisted form of the set. Loaded targets are not part
// of it.
func (s *LinkSet) Serial() QueryEntry {
	recs := make([]types.LinkRecord, len(s.links))
	for i, l := range s.links {
		l.Entry = nil
		recs[i] = l
	}
	return QueryEntry{Links: recs, Base: s.base, Origin: s.origin.label}
}

// ReviveSet rebuilds a LinkSet over origin from its persisted form. The
// revived set is synced; its targets are loaded lazily from the store.
func ReviveSet(qe QueryEntry, origin *Repo) (*LinkSet, error) {
	if origin == nil {
		return nil, fmt.Errorf("reviving query over %q: %w", qe.Origin, errNoOrigin)
	}
	return newLinkSet(slices.Clone(qe.Links), origin, qe.Base, false, true), nil
}

// Reviver rebuilds repos from RepoEntry values. Repos revived through the
// same Reviver share instances: a reference to a repo that is already built,
// or under construction, resolves to that instance, so mutually referencing
// rule sets revive without recursion.
type Reviver struct {
	// Resolve loads the entry of a referenced repo that is not cached yet.
	Resolve func(name string) (RepoEntry, error)
	Store   types.Store
	Options []Option

	cache map[string]*Repo
}

// NewReviver returns a Reviver over store. resolve may be nil when every
// reference is expected to be revived explicitly beforehand.
func NewReviver(store types.Store, resolve func(string) (RepoEntry, error), opts ...Option) *Reviver {
	return &Reviver{
		Resolve: resolve,
		Store:   store,
		Options: opts,
		cache:   make(map[string]*Repo),
	}
}

// Cached returns the instance already revived under name, if any.
func (v *Reviver) Cached(name string) (*Repo, bool) {
	r, ok := v.cache[name]
	return r, ok
}

// Revive builds a fresh repo from re and caches it under re.Name before its
// references are resolved. Failures are reported as
// *types.RuleReconstructionError.
func (v *Reviver) Revive(re RepoEntry) (*Repo, error) {
	if v.cache == nil {
		v.cache = make(map[string]*Repo)
	}
	entryType := re.EntryType
	if entryType == "" {
		entryType = re.Name
	}
	opts := append(slices.Clone(v.Options), WithLabel(re.Name))
	repo := NewRepo(entryType, v.Store, opts...)
	v.cache[re.Name] = repo

	for _, tag := range slices.Sorted(maps.Keys(re.BackLinks)) {
		for _, ref := range re.BackLinks[tag] {
			target, err := v.lookup(ref.Repo)
			if err != nil {
				return nil, &types.RuleReconstructionError{Name: re.Name, Err: err}
			}
			repo.LinkBack(tag, ref.Tag, target)
		}
	}
	for _, tag := range re.Exclusive {
		repo.Singular(tag)
	}
	for _, tag := range slices.Sorted(maps.Keys(re.Predicates)) {
		for _, ref := range re.Predicates[tag] {
			query, err := v.lookup(ref.Query.Repo)
			if err != nil {
				return nil, &types.RuleReconstructionError{Name: re.Name, Err: err}
			}
			dependent, err := v.lookup(ref.Dependent.Repo)
			if err != nil {
				return nil, &types.RuleReconstructionError{Name: re.Name, Err: err}
			}
			repo.Predicate(tag, query.Tag(ref.Query.Tag), dependent.Tag(ref.Dependent.Tag))
		}
	}
	return repo, nil
}

// Repo returns the instance for name, reviving it through Resolve when it is
// not cached.
func (v *Reviver) Repo(name string) (*Repo, error) {
	r, err := v.lookup(name)
	if err != nil {
		return nil, &types.RuleReconstructionError{Name: name, Err: err}
	}
	return r, nil
}

func (v *Reviver) lookup(name string) (*Repo, error) {
	if r, ok := v.cache[name]; ok {
		return r, nil
	}
	if v.Resolve == nil {
		return nil, fmt.Errorf("resolving repo %q: %w", name, types.ErrNotFound)
	}
	re, err := v.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("resolving repo %q: %w", name, err)
	}
	return v.Revive(re)
}
