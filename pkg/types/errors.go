package types

import (
	"errors"
	"fmt"
)

// Store errors.
var (
	ErrNotFound        = errors.New("entry not found")
	ErrStore           = errors.New("store operation failed")
	ErrInvalidEntry    = errors.New("invalid entry")
	ErrInvalidHash     = errors.New("invalid hash")
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Link layer errors.
var (
	ErrEntryLoad          = errors.New("entry could not be loaded")
	ErrTypeMismatch       = errors.New("entry type mismatch")
	ErrLinkMutation       = errors.New("link mutation failed")
	ErrRuleReconstruction = errors.New("rule set could not be reconstructed")
)

// StoreError reports a failed commit, get or query against the store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStore, e.Err} }

// EntryLoadError reports a link target that could not be dereferenced.
type EntryLoadError struct {
	Hash Hash
	Err  error
}

func (e *EntryLoadError) Error() string {
	return fmt.Sprintf("loading entry %s: %v", e.Hash, e.Err)
}

func (e *EntryLoadError) Unwrap() []error { return []error{ErrEntryLoad, e.Err} }

// TypeMismatchError reports an attempt to relink an address under a different
// declared type. An entry cannot change its type in place.
type TypeMismatchError struct {
	Hash Hash
	From string
	To   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("can't link to %s %s as type %s", e.From, e.Hash, e.To)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// LinkMutationError reports the edge whose put or remove failed. The edges
// committed before the failure stay committed.
type LinkMutationError struct {
	Op     string // "put" or "remove"
	Repo   string
	Base   Hash
	Target Hash
	Tag    string
	Err    error
}

func (e *LinkMutationError) Error() string {
	sign := "+"
	if e.Op == "remove" {
		sign = "-"
	}
	return fmt.Sprintf("%s %s %s%s %s: %v", e.Repo, e.Base, sign, e.Tag, e.Target, e.Err)
}

func (e *LinkMutationError) Unwrap() []error { return []error{ErrLinkMutation, e.Err} }

// RuleReconstructionError reports a rule set that references a repo which
// could not be resolved during revival.
type RuleReconstructionError struct {
	Name string
	Err  error
}

func (e *RuleReconstructionError) Error() string {
	return fmt.Sprintf("reviving repo %q: %v", e.Name, e.Err)
}

func (e *RuleReconstructionError) Unwrap() []error {
	return []error{ErrRuleReconstruction, e.Err}
}
