// JSONL record format for entries.jsonl.
package sqlite

import "encoding/json"

// entriesJSONL is the append-only log that is the source of truth.
const entriesJSONL = "entries.jsonl"

// databaseFile is the SQLite index, rebuilt from the log on Attach.
const databaseFile = "linkrepo.db"

// logRecord is one commit in entries.jsonl. Committing the same entry twice
// appends two records; replaying a links entry re-applies its edges.
type logRecord struct {
	Seq         uint64          `json:"seq"`
	Hash        string          `json:"hash"`
	EntryType   string          `json:"entry_type"`
	Entry       json.RawMessage `json:"entry"`
	Source      string          `json:"source"`
	CommittedAt string          `json:"committed_at"`
}
