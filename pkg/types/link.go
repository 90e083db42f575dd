// Link records exchanged with the entry store.
package types

// Hash is the content address of an entry or of a hypothetical link record.
// Hashes are computed by the store, never by callers.
type Hash = string

// Action says whether a committed link record adds or retracts an edge.
type Action string

// Link actions.
const (
	ActionAdd    Action = "add"
	ActionDelete Action = "del"
)

// LinkRecord is a directed, tagged edge from Base to Target.
type LinkRecord struct {
	// Base is the entry the link hangs off; queries are keyed by it.
	Base Hash `json:"base"`

	// Target is the entry the link points to.
	Target Hash `json:"target"`

	// Tag scopes the meaning of the edge within one repo.
	Tag string `json:"tag"`

	// Action is ActionAdd or ActionDelete. Queries only return live (added) links.
	Action Action `json:"action,omitempty"`

	// Source identifies the agent that committed the link (query results only).
	Source Hash `json:"source,omitempty"`

	// EntryType is the declared type of the target entry (query results only).
	EntryType string `json:"entry_type,omitempty"`

	// Entry is the dereferenced target, set when the query asked for Load.
	Entry Entry `json:"-"`
}

// Descriptor identifies a record by tag, target and target type. Two records
// with equal descriptors are the same edge as far as set algebra is concerned.
func (l LinkRecord) Descriptor() string {
	tag := l.Tag
	if tag == "" {
		tag = "no-tag"
	}
	typ := l.EntryType
	if typ == "" {
		typ = "no-type"
	}
	return tag + " " + l.Target + ":" + typ
}

// Bare returns the record stripped down to the fields that determine its
// address: base, target, tag and action.
func (l LinkRecord) Bare() LinkRecord {
	action := l.Action
	if action == "" {
		action = ActionAdd
	}
	return LinkRecord{Base: l.Base, Target: l.Target, Tag: l.Tag, Action: action}
}

// QueryOptions narrows and shapes a Store.QueryLinks call.
type QueryOptions struct {
	// Load dereferences each target into LinkRecord.Entry.
	Load bool

	// EntryType restricts results to links committed under this entry type.
	// Empty matches links of every entry type.
	EntryType string
}
