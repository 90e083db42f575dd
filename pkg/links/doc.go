// Package links manages typed, directed links between content-addressed
// entries and keeps derived relationships consistent as links come and go.
//
// A Repo owns a rule set over its tags:
//
//   - reciprocal rules (LinkBack): putting A -t-> B also puts B -t'-> A,
//     in this repo or another one;
//   - singular rules (Singular): a base has at most one outgoing link per tag;
//   - predicate rules (Predicate): putting A -t-> B also puts A -d-> C for
//     every C with B -q-> C.
//
// Rules may form cycles, within one repo or across repos. Every Put and Remove
// is guarded by the event it performs, so each distinct edge event is applied
// at most once per call tree and propagation always terminates.
//
// Get returns a LinkSet, an ordered view of query results with filters, set
// algebra and optional write-through.
//
// Tags are plain strings. Which tags belong to which repo is a convention of
// the application; nothing checks it at runtime.
//
// Neither Repo nor LinkSet is safe for concurrent use.
package links
