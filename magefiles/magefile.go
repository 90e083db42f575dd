//go:build mage

// Package main provides build targets for the linkrepo project using Mage.
//
// Usage:
//
//	mage build          Compile the linkrepo binary to bin/
//	mage test:all       Run all tests
//	mage test:unit      Run tests in short mode
//	mage test:race      Run all tests with the race detector
//	mage test:golden    Regenerate golden files
//	mage test:cover     Write a coverage profile to bin/
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
//	mage install        Install linkrepo to GOPATH/bin
//	mage stats          Print Go LOC and documentation word counts
package main
