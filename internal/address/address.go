// Package address computes content addresses for store entries.
//
// An address is SHA-256 over a domain prefix, the entry type and the canonical
// JSON encoding of the entry envelope. The same entry committed under two
// entry types gets two addresses.
package address

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

// DomainEntry prefixes every entry hash. The version suffix leaves room for an
// algorithm migration.
const DomainEntry = "linkrepo/entry/v1"

// Of returns the address of entry committed under entryType.
func Of(entryType string, entry types.Entry) (types.Hash, error) {
	raw, err := types.MarshalEntry(entry)
	if err != nil {
		return "", err
	}
	canonical, err := Canonicalize(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalizing %s entry: %w", entry.Kind(), err)
	}
	return hashWithDomain(DomainEntry, entryType, canonical), nil
}

// Must is like Of but panics on error. Use only in tests or for entries known
// to be valid.
func Must(entryType string, entry types.Entry) types.Hash {
	h, err := Of(entryType, entry)
	if err != nil {
		panic(err)
	}
	return h
}

// hashWithDomain computes SHA256(domain 0x00 entryType 0x00 data). The null
// separators keep the boundaries unambiguous.
func hashWithDomain(domain, entryType string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write([]byte(entryType))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
