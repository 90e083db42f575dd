// Entry payloads stored in the content-addressed store.
package types

import (
	"encoding/json"
	"fmt"
)

// EntryKind discriminates the Entry union on the wire.
type EntryKind string

// Entry kinds.
const (
	KindString EntryKind = "string"
	KindObject EntryKind = "object"
	KindLinks  EntryKind = "links"
)

// Entry is a closed union of the payloads the store accepts: StringEntry,
// ObjectEntry and LinksEntry. Only this package can add variants.
type Entry interface {
	Kind() EntryKind
	isEntry()
}

// StringEntry is a plain string payload, used for names and agent identities.
type StringEntry string

// ObjectEntry is a structured JSON object payload, used for persisted rule
// sets and query results.
type ObjectEntry json.RawMessage

// LinksEntry is a batch of link records. Committing one mutates the link index.
type LinksEntry struct {
	Links []LinkRecord `json:"links"`
}

func (StringEntry) Kind() EntryKind { return KindString }
func (ObjectEntry) Kind() EntryKind { return KindObject }
func (LinksEntry) Kind() EntryKind  { return KindLinks }

func (StringEntry) isEntry() {}
func (ObjectEntry) isEntry() {}
func (LinksEntry) isEntry()  {}

// NewObjectEntry marshals v into an ObjectEntry.
func NewObjectEntry(v any) (ObjectEntry, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling object entry: %w", err)
	}
	return ObjectEntry(b), nil
}

// Decode unmarshals the object payload into v.
func (o ObjectEntry) Decode(v any) error {
	if err := json.Unmarshal(o, v); err != nil {
		return fmt.Errorf("decoding object entry: %w", err)
	}
	return nil
}

// entryEnvelope is the persisted form of an Entry.
type entryEnvelope struct {
	Kind EntryKind       `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalEntry encodes an Entry with its kind discriminator.
func MarshalEntry(e Entry) ([]byte, error) {
	if e == nil {
		return nil, ErrInvalidEntry
	}
	var data []byte
	var err error
	switch v := e.(type) {
	case StringEntry:
		data, err = json.Marshal(string(v))
	case ObjectEntry:
		if !json.Valid(v) {
			return nil, fmt.Errorf("%w: object payload is not valid JSON", ErrInvalidEntry)
		}
		data = v
	case LinksEntry:
		data, err = json.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: unknown entry %T", ErrInvalidEntry, e)
	}
	if err != nil {
		return nil, fmt.Errorf("marshaling %s entry: %w", e.Kind(), err)
	}
	return json.Marshal(entryEnvelope{Kind: e.Kind(), Data: data})
}

// UnmarshalEntry decodes the output of MarshalEntry.
func UnmarshalEntry(b []byte) (Entry, error) {
	var env entryEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	switch env.Kind {
	case KindString:
		var s string
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
		return StringEntry(s), nil
	case KindObject:
		cp := make([]byte, len(env.Data))
		copy(cp, env.Data)
		return ObjectEntry(cp), nil
	case KindLinks:
		var le LinksEntry
		if err := json.Unmarshal(env.Data, &le); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
		return le, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, env.Kind)
	}
}
