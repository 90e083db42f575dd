// Schema for the SQLite index. The index is rebuilt from entries.jsonl on
// every Attach, so the schema carries no migrations.
package sqlite

import (
	"database/sql"
	"fmt"
)

const (
	createEntries = `CREATE TABLE entries (
    hash TEXT PRIMARY KEY,
    entry_type TEXT NOT NULL,
    kind TEXT NOT NULL,
    data TEXT NOT NULL,
    committed_at TEXT NOT NULL
);`

	// links holds live edges only. seq orders results by the commit that
	// added the edge; a retracted and re-added edge moves to the end.
	createLinks = `CREATE TABLE links (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    entry_type TEXT NOT NULL,
    base TEXT NOT NULL,
    tag TEXT NOT NULL,
    target TEXT NOT NULL,
    source TEXT NOT NULL
);`
)

const (
	idxEntriesType = `CREATE INDEX idx_entries_type ON entries(entry_type);`
	idxLinksUnique = `CREATE UNIQUE INDEX idx_links_unique ON links(entry_type, base, tag, target);`
	idxLinksBase   = `CREATE INDEX idx_links_base ON links(base, tag);`
)

var schemaDDL = []string{
	createEntries,
	createLinks,
}

var indexDDL = []string{
	idxEntriesType,
	idxLinksUnique,
	idxLinksBase,
}

// createSchema creates all tables and indexes in a fresh database.
func createSchema(db *sql.DB) error {
	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}
	for _, stmt := range indexDDL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}
