package links

import (
	"errors"
	"iter"
	"slices"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

// LinkSet is an ordered view over the link records returned by one Repo.Get.
// Every record shares the same base. Filters return new sets; Add, RemoveAll
// and Replace mutate the set in place.
//
// When the set is synced (the default for query results) mutations write
// through to the store immediately. An unsynced set only changes in memory
// until Save reconciles it with the store.
type LinkSet struct {
	links  []types.LinkRecord
	origin *Repo
	base   types.Hash
	loaded bool
	sync   bool
}

func newLinkSet(recs []types.LinkRecord, origin *Repo, base types.Hash, loaded, sync bool) *LinkSet {
	return &LinkSet{
		links:  recs,
		origin: origin,
		base:   base,
		loaded: loaded,
		sync:   sync,
	}
}

// derive returns a new set in the same lineage holding recs.
func (s *LinkSet) derive(recs []types.LinkRecord) *LinkSet {
	return newLinkSet(recs, s.origin, s.base, s.loaded, s.sync)
}

// Len returns the number of records in the set.
func (s *LinkSet) Len() int { return len(s.links) }

// Base returns the base hash every record links from.
func (s *LinkSet) Base() types.Hash { return s.base }

// Origin returns the repo that produced the set.
func (s *LinkSet) Origin() *Repo { return s.origin }

// Loaded reports whether targets were fetched with the query.
func (s *LinkSet) Loaded() bool { return s.loaded }

// Sync reports whether mutations write through to the store.
func (s *LinkSet) Sync() bool { return s.sync }

// SetSync switches write-through on or off and returns the set.
func (s *LinkSet) SetSync(sync bool) *LinkSet {
	s.sync = sync
	return s
}

// Links returns a copy of the records.
func (s *LinkSet) Links() []types.LinkRecord {
	return slices.Clone(s.links)
}

// All iterates over the records in order.
func (s *LinkSet) All() iter.Seq2[int, types.LinkRecord] {
	return func(yield func(int, types.LinkRecord) bool) {
		for i, l := range s.links {
			if !yield(i, l) {
				return
			}
		}
	}
}

func (s *LinkSet) filter(keep func(types.LinkRecord) bool) *LinkSet {
	var out []types.LinkRecord
	for _, l := range s.links {
		if keep(l) {
			out = append(out, l)
		}
	}
	return s.derive(out)
}

func setOf(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

// Tags keeps the records whose tag is one of names.
func (s *LinkSet) Tags(names ...string) *LinkSet {
	want := setOf(names)
	return s.filter(func(l types.LinkRecord) bool {
		_, ok := want[l.Tag]
		return ok
	})
}

// Types keeps the records whose target entry type is one of names.
func (s *LinkSet) Types(names ...string) *LinkSet {
	want := setOf(names)
	return s.filter(func(l types.LinkRecord) bool {
		_, ok := want[l.EntryType]
		return ok
	})
}

// Sources keeps the records committed by one of the given agents.
func (s *LinkSet) Sources(hashes ...types.Hash) *LinkSet {
	want := setOf(hashes)
	return s.filter(func(l types.LinkRecord) bool {
		_, ok := want[l.Source]
		return ok
	})
}

// Hashes returns the target of every record, in order.
func (s *LinkSet) Hashes() []types.Hash {
	out := make([]types.Hash, len(s.links))
	for i, l := range s.links {
		out[i] = l.Target
	}
	return out
}

// Data returns the target entry of every record, in order. It fails with a
// *types.EntryLoadError if any target cannot be dereferenced; narrow the set
// with Select or Replace first to skip such records.
func (s *LinkSet) Data() ([]types.Entry, error) {
	out := make([]types.Entry, len(s.links))
	for i, l := range s.links {
		e, err := s.entry(l)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// entry returns the target of l, from the query result when it was loaded,
// from the store otherwise.
func (s *LinkSet) entry(l types.LinkRecord) (types.Entry, error) {
	if l.Entry != nil {
		return l.Entry, nil
	}
	e, err := s.origin.store.Get(l.Target)
	if err != nil {
		return nil, &types.EntryLoadError{Hash: l.Target, Err: err}
	}
	return e, nil
}

// Has reports whether the set holds a record with this tag and target.
func (s *LinkSet) Has(tag string, hash types.Hash) bool {
	for _, l := range s.links {
		if l.Tag == tag && l.Target == hash {
			return true
		}
	}
	return false
}

// RemoveAll empties the set. When the set is synced every record is removed
// from the store through the origin repo first; a failed removal is logged
// and the rest still proceed.
func (s *LinkSet) RemoveAll() {
	if s.sync {
		for _, l := range s.links {
			if err := s.origin.Remove(s.base, l.Target, l.Tag); err != nil {
				s.origin.logger.Warn("bulk remove: skipping failed link",
					zap.String("base", s.base),
					zap.String("target", l.Target),
					zap.String("tag", l.Tag),
					zap.Error(err))
			}
		}
	}
	s.links = s.links[:0]
}

// Add appends a record and, when the set is synced, puts it through the
// origin repo.
func (s *LinkSet) Add(tag string, hash types.Hash, entryType string) error {
	if s.sync {
		if err := s.origin.Put(s.base, hash, tag); err != nil {
			return err
		}
	}
	s.links = append(s.links, types.LinkRecord{
		Base:      s.base,
		Target:    hash,
		Tag:       tag,
		Action:    types.ActionAdd,
		EntryType: entryType,
	})
	return nil
}

// LinkReplace is what Replace and Select callbacks see for each record.
type LinkReplace struct {
	Hash  types.Hash
	Tag   string
	Type  string
	Entry types.Entry
}

type replaceOp int

const (
	opKeep replaceOp = iota
	opDelete
	opDrop
	opWith
)

// Replacement is a Replace callback's verdict for one record. Build one with
// Keep, Delete, Drop or With.
type Replacement struct {
	op   replaceOp
	Hash types.Hash
	Tag  string
	Type string
}

// Keep leaves the record alone.
func Keep() Replacement { return Replacement{op: opKeep} }

// Delete removes the record from the set and its link from the store. On a
// set that is not synced only the record is dropped; the link stays in the
// store until Save with rem retracts it.
func Delete() Replacement { return Replacement{op: opDelete} }

// Drop removes the record from the set only.
func Drop() Replacement { return Replacement{op: opDrop} }

// With relinks the record to hash under tag, declaring the target's type.
func With(hash types.Hash, tag, entryType string) Replacement {
	return Replacement{op: opWith, Hash: hash, Tag: tag, Type: entryType}
}

// Replace calls fn for every record whose target loads and applies its
// verdict in place. Records whose target cannot be loaded are dropped from
// the set silently. A With verdict that keeps the hash and tag is a no-op;
// one that keeps the hash but changes the type fails with
// *types.TypeMismatchError. Store writes happen only when the set is synced.
//
// On error the set is left as it was before the failing record.
func (s *LinkSet) Replace(fn func(LinkReplace) Replacement) error {
	kept := make([]types.LinkRecord, 0, len(s.links))
	for i, l := range s.links {
		e, err := s.entry(l)
		if err != nil {
			s.origin.logger.Debug("replace: dropping unloadable record",
				zap.String("target", l.Target), zap.Error(err))
			continue
		}

		rep := fn(LinkReplace{Hash: l.Target, Tag: l.Tag, Type: l.EntryType, Entry: e})
		switch rep.op {
		case opKeep:
			kept = append(kept, l)
		case opDrop:
		case opDelete:
			if s.sync {
				if err := s.origin.Remove(s.base, l.Target, l.Tag); err != nil {
					s.links = append(kept, s.links[i:]...)
					return err
				}
			}
		case opWith:
			if rep.Hash == l.Target && rep.Tag == l.Tag {
				kept = append(kept, l)
				continue
			}
			if rep.Hash == l.Target && rep.Type != l.EntryType {
				s.links = append(kept, s.links[i:]...)
				return &types.TypeMismatchError{Hash: l.Target, From: l.EntryType, To: rep.Type}
			}
			if s.sync {
				if err := s.origin.Remove(s.base, l.Target, l.Tag); err != nil {
					s.links = append(kept, s.links[i:]...)
					return err
				}
				if err := s.origin.Put(s.base, rep.Hash, rep.Tag); err != nil {
					s.links = append(kept, s.links[i:]...)
					return err
				}
			}
			kept = append(kept, types.LinkRecord{
				Base:      s.base,
				Target:    rep.Hash,
				Tag:       rep.Tag,
				Action:    types.ActionAdd,
				Source:    l.Source,
				EntryType: rep.Type,
			})
		}
	}
	s.links = kept
	return nil
}

// Select returns a new set with the records for which fn returns true. Every
// candidate's target is loaded; a target that cannot be loaded fails the
// whole call with *types.EntryLoadError.
func (s *LinkSet) Select(fn func(LinkReplace) bool) (*LinkSet, error) {
	var chosen []types.LinkRecord
	for _, l := range s.links {
		e, err := s.entry(l)
		if err != nil {
			return nil, err
		}
		if fn(LinkReplace{Hash: l.Target, Tag: l.Tag, Type: l.EntryType, Entry: e}) {
			chosen = append(chosen, l)
		}
	}
	return s.derive(chosen), nil
}

// Unique returns a new set without duplicate descriptors, keeping the first
// occurrence. Store duplicates are cleaned when the set is synced; see
// UniqueClean.
func (s *LinkSet) Unique() (*LinkSet, error) {
	return s.UniqueClean(s.sync)
}

// UniqueClean is Unique with explicit control over the store. When cleanStore
// is true each duplicated edge is collapsed in the store to a single live
// link: its record is retracted and re-added once, without running rules.
func (s *LinkSet) UniqueClean(cleanStore bool) (*LinkSet, error) {
	seen := make(map[string]struct{}, len(s.links))
	var out []types.LinkRecord
	var dups []types.LinkRecord
	for _, l := range s.links {
		d := l.Descriptor()
		if _, ok := seen[d]; ok {
			dups = append(dups, l)
			continue
		}
		seen[d] = struct{}{}
		out = append(out, l)
	}

	if cleanStore {
		collapsed := make(map[string]struct{})
		for _, l := range dups {
			d := l.Descriptor()
			if _, ok := collapsed[d]; ok {
				continue
			}
			collapsed[d] = struct{}{}
			if err := s.origin.collapse(s.base, l.Target, l.Tag); err != nil {
				return nil, err
			}
		}
	}
	return s.derive(out), nil
}

// NotIn returns the records of s whose descriptor is absent from other. A set
// from another repo or base leaves s unchanged: the result is a copy of s.
func (s *LinkSet) NotIn(other *LinkSet) *LinkSet {
	if other == nil || other.origin != s.origin || other.base != s.base {
		return s.derive(slices.Clone(s.links))
	}
	in := other.descriptors()
	return s.filter(func(l types.LinkRecord) bool {
		_, ok := in[l.Descriptor()]
		return !ok
	})
}

// AndIn returns the records of s whose descriptor is present in other. Sets
// over different bases share nothing, so the result is empty.
func (s *LinkSet) AndIn(other *LinkSet) *LinkSet {
	if other == nil || other.base != s.base {
		return s.derive(nil)
	}
	in := other.descriptors()
	return s.filter(func(l types.LinkRecord) bool {
		_, ok := in[l.Descriptor()]
		return ok
	})
}

func (s *LinkSet) descriptors() map[string]struct{} {
	m := make(map[string]struct{}, len(s.links))
	for _, l := range s.links {
		m[l.Descriptor()] = struct{}{}
	}
	return m
}

// Save reconciles an unsynced set with the store, tag by tag. With add, links
// in the set but not in the store are put; with rem, links in the store but
// not in the set are removed. Both go through the origin repo, so rules apply.
// Save on a synced set does nothing.
func (s *LinkSet) Save(add, rem bool) error {
	if s.sync {
		return nil
	}

	var tags []string
	seen := make(map[string]struct{})
	for _, l := range s.links {
		if _, ok := seen[l.Tag]; ok {
			continue
		}
		seen[l.Tag] = struct{}{}
		tags = append(tags, l.Tag)
	}

	for _, tag := range tags {
		current, err := s.origin.Get(s.base, tag)
		if err != nil {
			return err
		}
		if add {
			for _, l := range s.links {
				if l.Tag != tag || current.Has(tag, l.Target) {
					continue
				}
				if err := s.origin.Put(s.base, l.Target, tag); err != nil {
					return err
				}
			}
		}
		if rem {
			for _, l := range current.links {
				if s.Has(tag, l.Target) {
					continue
				}
				if err := s.origin.Remove(s.base, l.Target, tag); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// collapse retracts and re-adds one edge directly, bypassing rules, so that
// any duplicate store records for it become a single live link.
func (r *Repo) collapse(base, target types.Hash, tag string) error {
	if _, err := r.store.Commit(r.name, linksEntry(base, target, tag, types.ActionDelete)); err != nil {
		return r.mutationErr("remove", base, target, tag, wrapStore("commit", err))
	}
	if _, err := r.store.Commit(r.name, linksEntry(base, target, tag, types.ActionAdd)); err != nil {
		return r.mutationErr("put", base, target, tag, wrapStore("commit", err))
	}
	return nil
}

// errNoOrigin is returned by ReviveSet when no repo is given.
var errNoOrigin = errors.New("link set has no origin repo")
