// Package types defines the entry store contract, link records, the entry
// union, configuration, and the standard error types shared by the link
// repository packages.
package types
