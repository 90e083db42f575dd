package types

// Store is the content-addressed, append-only entry store the link layer is
// built on. Implementations must give sequential consistency: a QueryLinks call
// observes every Commit that returned before it.
type Store interface {
	// Commit persists entry under entryType and returns its address. Committing
	// a LinksEntry also applies each record to the link index: ActionAdd makes
	// the edge live, ActionDelete retracts it.
	Commit(entryType string, entry Entry) (Hash, error)

	// Get dereferences an address. Returns ErrNotFound if nothing was committed
	// at hash.
	Get(hash Hash) (Entry, error)

	// MakeHash computes the address Commit would return, without writing.
	MakeHash(entryType string, entry Entry) (Hash, error)

	// QueryLinks returns the live links from base, in commit order. An empty
	// tag matches every tag.
	QueryLinks(base Hash, tag string, opts QueryOptions) ([]LinkRecord, error)
}

// Attacher is implemented by stores with a lifecycle (open files, database
// handles). Attach and Detach follow the same contract as the sqlite backend:
// Attach fails with ErrAlreadyAttached when called twice, Detach is idempotent.
type Attacher interface {
	Attach(config Config) error
	Detach() error
}
