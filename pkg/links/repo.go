package links

import (
	"errors"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

// Tag pairs a tag name with the repo authoritative for links under it. Tags
// with the same name in different repos are different tags.
type Tag struct {
	Name string
	Repo *Repo
}

// Predicate is a ternary rule registered under a trigger tag: for a trigger
// edge A -> B, every C with B -Query-> C gets A -Dependent-> C.
type Predicate struct {
	Query     Tag
	Dependent Tag
}

// Option configures a Repo.
type Option func(*Repo)

// WithLogger sets the logger used for propagation tracing.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repo) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithLabel sets the name the repo is persisted and referenced under. It
// defaults to the entry type name.
func WithLabel(label string) Option {
	return func(r *Repo) {
		r.label = label
	}
}

// Repo is a named rule set over tags together with the edge mutation API.
// Rules are added with LinkBack, Predicate and Singular and are never removed.
type Repo struct {
	name   string // entry type links are committed under
	label  string // persisted name, used in rule references
	store  types.Store
	logger *zap.Logger

	backLinks  map[string][]Tag
	selfLinks  map[string][]string
	predicates map[string][]Predicate
	exclusive  map[string]struct{}

	// tagOrder records the order in which tags first received a rule, so
	// serialization and rendering are stable.
	tagOrder []string
	seenTag  map[string]struct{}

	inFlight map[eventKey]struct{}
}

// NewRepo returns a repo with an empty rule set whose links are committed to
// store under the entry type name.
func NewRepo(name string, store types.Store, opts ...Option) *Repo {
	r := &Repo{
		name:       name,
		label:      name,
		store:      store,
		logger:     zap.NewNop(),
		backLinks:  make(map[string][]Tag),
		selfLinks:  make(map[string][]string),
		predicates: make(map[string][]Predicate),
		exclusive:  make(map[string]struct{}),
		seenTag:    make(map[string]struct{}),
		inFlight:   make(map[eventKey]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("repo", r.label))
	return r
}

// Name returns the entry type this repo commits links under.
func (r *Repo) Name() string { return r.name }

// Label returns the name this repo is persisted and referenced under.
func (r *Repo) Label() string { return r.label }

// Store returns the store this repo writes to.
func (r *Repo) Store() types.Store { return r.store }

// Tag returns a Tag bound to this repo.
func (r *Repo) Tag(name string) Tag {
	return Tag{Name: name, Repo: r}
}

func (r *Repo) noteTag(tag string) {
	if _, ok := r.seenTag[tag]; ok {
		return
	}
	r.seenTag[tag] = struct{}{}
	r.tagOrder = append(r.tagOrder, tag)
}

// LinkBack registers a standing reciprocal rule: putting or removing
// A -tag-> B also puts or removes B -backTag-> A in repo. An empty backTag
// means tag. A nil repo, or the receiver itself, records a self-link.
func (r *Repo) LinkBack(tag, backTag string, repo *Repo) *Repo {
	if backTag == "" {
		backTag = tag
	}
	r.noteTag(tag)
	if repo == nil || repo == r {
		r.selfLinks[tag] = append(r.selfLinks[tag], backTag)
		return r
	}
	r.backLinks[tag] = append(r.backLinks[tag], Tag{Name: backTag, Repo: repo})
	return r
}

// Predicate registers a ternary rule under triggerTag. A nil Repo in query or
// dependent defaults to the receiver.
func (r *Repo) Predicate(triggerTag string, query, dependent Tag) *Repo {
	if query.Repo == nil {
		query.Repo = r
	}
	if dependent.Repo == nil {
		dependent.Repo = r
	}
	r.noteTag(triggerTag)
	r.predicates[triggerTag] = append(r.predicates[triggerTag], Predicate{Query: query, Dependent: dependent})
	return r
}

// Singular marks tag exclusive: a base keeps at most one outgoing link under
// it, the most recent one.
func (r *Repo) Singular(tag string) *Repo {
	r.noteTag(tag)
	r.exclusive[tag] = struct{}{}
	return r
}

// IsSingular reports whether tag is exclusive in this repo.
func (r *Repo) IsSingular(tag string) bool {
	_, ok := r.exclusive[tag]
	return ok
}

// linksEntry builds the single-record payload committed for an edge event.
func linksEntry(base, target types.Hash, tag string, action types.Action) types.LinksEntry {
	return types.LinksEntry{Links: []types.LinkRecord{{
		Base:   base,
		Target: target,
		Tag:    tag,
		Action: action,
	}}}
}

// GetHash returns the address the link record for base -tag-> target has, or
// would have once put, without committing anything.
func (r *Repo) GetHash(base, target types.Hash, tag string) (types.Hash, error) {
	return r.store.MakeHash(r.name, linksEntry(base, target, tag, types.ActionAdd))
}

// Exists reports whether the add record for base -tag-> target was ever
// committed to the store.
func (r *Repo) Exists(base, target types.Hash, tag string) (bool, error) {
	hash, err := r.GetHash(base, target, tag)
	if err != nil {
		return false, err
	}
	if _, err := r.store.Get(hash); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return false, nil
		}
		return false, &types.StoreError{Op: "get", Err: err}
	}
	return true, nil
}

// Get returns the live links from base in this repo. With no tags every tag
// matches; otherwise one query is issued per tag and the results are
// concatenated in argument order, each stamped with the tag it was queried
// under. Targets are always loaded.
func (r *Repo) Get(base types.Hash, tags ...string) (*LinkSet, error) {
	opts := types.QueryOptions{Load: true, EntryType: r.name}
	if len(tags) == 0 {
		recs, err := r.store.QueryLinks(base, "", opts)
		if err != nil {
			return nil, wrapStore("query links", err)
		}
		return newLinkSet(recs, r, base, true, true), nil
	}

	var all []types.LinkRecord
	for _, tag := range tags {
		recs, err := r.store.QueryLinks(base, tag, opts)
		if err != nil {
			return nil, wrapStore("query links", err)
		}
		for i := range recs {
			recs[i].Tag = tag
		}
		all = append(all, recs...)
	}
	return newLinkSet(all, r, base, true, true), nil
}

// EmptySet returns an empty, write-through LinkSet bound to this repo and
// base. Records added to it are put through the repo.
func (r *Repo) EmptySet(base types.Hash) *LinkSet {
	return newLinkSet(nil, r, base, true, true)
}

// Put commits base -tag-> target and applies the rules registered under tag,
// in this order: clear the previous link of a singular tag, propagate
// predicates, commit the link, put standing back-links, put self-links, put
// the one-off back links given as arguments.
//
// A Put of an event already in flight on this repo is a no-op. Failures are
// reported as *types.LinkMutationError; edges committed before the failure
// are not rolled back.
func (r *Repo) Put(base, target types.Hash, tag string, back ...Tag) error {
	key := eventKey{base: base, op: polarityPut, tag: tag, target: target}
	return r.guard(key, func() error {
		r.logger.Debug("put", zap.Stringer("event", key))

		if r.IsSingular(tag) {
			existing, err := r.Get(base, tag)
			if err != nil {
				return r.mutationErr("put", base, target, tag, err)
			}
			for _, l := range existing.Links() {
				if err := r.Remove(base, l.Target, tag); err != nil {
					return r.mutationErr("put", base, target, tag, err)
				}
			}
		}

		for _, p := range r.predicates[tag] {
			if err := r.propagatePut(p, base, target); err != nil {
				return r.mutationErr("put", base, target, tag, err)
			}
		}

		if _, err := r.store.Commit(r.name, linksEntry(base, target, tag, types.ActionAdd)); err != nil {
			return r.mutationErr("put", base, target, tag, wrapStore("commit", err))
		}

		for _, bl := range r.backLinks[tag] {
			if err := bl.Repo.Put(target, base, bl.Name); err != nil {
				return r.mutationErr("put", base, target, tag, err)
			}
		}
		for _, revTag := range r.selfLinks[tag] {
			if err := r.Put(target, base, revTag); err != nil {
				return r.mutationErr("put", base, target, tag, err)
			}
		}
		for _, bl := range back {
			if bl.Repo == nil || bl.Name == "" {
				continue
			}
			if err := bl.Repo.Put(target, base, bl.Name); err != nil {
				return r.mutationErr("put", base, target, tag, err)
			}
		}
		return nil
	})
}

// Remove commits the retraction of base -tag-> target and undoes the rules
// registered under tag: back-links, self-links, then predicate-derived links.
// It is guarded like Put, under a key that never collides with Put's.
func (r *Repo) Remove(base, target types.Hash, tag string) error {
	key := eventKey{base: base, op: polarityRemove, tag: tag, target: target}
	return r.guard(key, func() error {
		r.logger.Debug("remove", zap.Stringer("event", key))

		if _, err := r.store.Commit(r.name, linksEntry(base, target, tag, types.ActionDelete)); err != nil {
			return r.mutationErr("remove", base, target, tag, wrapStore("commit", err))
		}

		for _, bl := range r.backLinks[tag] {
			if err := bl.Repo.Remove(target, base, bl.Name); err != nil {
				return r.mutationErr("remove", base, target, tag, err)
			}
		}
		for _, revTag := range r.selfLinks[tag] {
			if err := r.Remove(target, base, revTag); err != nil {
				return r.mutationErr("remove", base, target, tag, err)
			}
		}
		for _, p := range r.predicates[tag] {
			if err := r.propagateRemove(p, base, target); err != nil {
				return r.mutationErr("remove", base, target, tag, err)
			}
		}
		return nil
	})
}

// Replace swaps old for update. If old was never committed it behaves as
// Put(update); otherwise it removes old and then puts update. The two steps
// are not atomic: if the put fails, old stays removed.
func (r *Repo) Replace(old, update types.LinkRecord) error {
	exists, err := r.Exists(old.Base, old.Target, old.Tag)
	if err != nil {
		return r.mutationErr("remove", old.Base, old.Target, old.Tag, err)
	}
	if exists {
		if err := r.Remove(old.Base, old.Target, old.Tag); err != nil {
			return err
		}
	}
	return r.Put(update.Base, update.Target, update.Tag)
}

// propagatePut puts subj -dependent-> C for every C with obj -query-> C.
func (r *Repo) propagatePut(p Predicate, subj, obj types.Hash) error {
	queried, err := p.Query.Repo.Get(obj, p.Query.Name)
	if err != nil {
		return err
	}
	for _, c := range queried.Hashes() {
		if err := p.Dependent.Repo.Put(subj, c, p.Dependent.Name); err != nil {
			return err
		}
	}
	return nil
}

// propagateRemove removes subj -dependent-> C for every C with obj -query-> C.
func (r *Repo) propagateRemove(p Predicate, subj, obj types.Hash) error {
	queried, err := p.Query.Repo.Get(obj, p.Query.Name)
	if err != nil {
		return err
	}
	for _, c := range queried.Hashes() {
		if err := p.Dependent.Repo.Remove(subj, c, p.Dependent.Name); err != nil {
			return err
		}
	}
	return nil
}

// mutationErr reports a failed edge event. An error that already names the
// edge where propagation failed is passed through unchanged.
func (r *Repo) mutationErr(op string, base, target types.Hash, tag string, err error) error {
	var lme *types.LinkMutationError
	if errors.As(err, &lme) {
		return err
	}
	r.logger.Warn("link mutation failed",
		zap.String("op", op),
		zap.String("base", base),
		zap.String("target", target),
		zap.String("tag", tag),
		zap.Error(err))
	return &types.LinkMutationError{
		Op:     op,
		Repo:   r.label,
		Base:   base,
		Target: target,
		Tag:    tag,
		Err:    err,
	}
}

// wrapStore marks err as a store failure unless it already is one.
func wrapStore(op string, err error) error {
	var se *types.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &types.StoreError{Op: op, Err: err}
}
