//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets.
type Test mg.Namespace

// goldenPkgs are the packages whose tests compare against testdata/golden.
var goldenPkgs = []string{
	"./pkg/links/...",
	"./internal/catalog/...",
}

// All runs all tests.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-v", "./...")
}

// Unit runs the tests in short mode.
func (Test) Unit() error {
	return sh.RunV(binGo, "test", "-short", "./...")
}

// Race runs all tests with the race detector.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Golden regenerates the golden files and prints which ones changed.
func (Test) Golden() error {
	args := append([]string{"test"}, goldenPkgs...)
	args = append(args, "-update")
	if err := sh.RunV(binGo, args...); err != nil {
		return err
	}
	changed, err := sh.Output("git", "status", "--porcelain", "--", "*.golden")
	if err != nil {
		return nil
	}
	if changed == "" {
		fmt.Println("Golden files unchanged.")
		return nil
	}
	for line := range strings.SplitSeq(changed, "\n") {
		fmt.Println("updated", strings.TrimSpace(line))
	}
	return nil
}

// Cover writes a coverage profile to bin/coverage.out and prints the total.
func (Test) Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, "coverage.out")
	if err := sh.RunV(binGo, "test", "-coverprofile", profile, "./..."); err != nil {
		return err
	}
	out, err := sh.Output(binGo, "tool", "cover", "-func", profile)
	if err != nil {
		return err
	}
	lines := strings.Split(out, "\n")
	fmt.Println(lines[len(lines)-1])
	return nil
}
