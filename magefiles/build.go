//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the sheets project using Mage.
//
// Usage:
//
//	mage build          Compile the sheets binary to bin/
//	mage buildCGO       Compile with the cgo SQLite driver
//	mage test:all       Run all tests
//	mage test:race      Run all tests with the race detector
//	mage test:cgo       Run all tests against the cgo SQLite driver
//	mage test:cover     Write coverage.out and print a summary
//	mage lint           Run go vet and golangci-lint
//	mage clean          Remove build artifacts
//	mage install        Install sheets to GOPATH/bin
//	mage stats          Print Go lines of code per package
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "sheets"
	binaryDir  = "bin"
	cmdDir     = "./cmd/sheets"
	modulePath = "github.com/mesh-intelligence/sheets"

	// cgoTag selects the mattn/go-sqlite3 driver.
	cgoTag = "cgo_sqlite"
)

// ldflags stamps the version into internal/cli. SHEETS_VERSION overrides
// the default in the source.
func ldflags() string {
	v := os.Getenv("SHEETS_VERSION")
	if v == "" {
		return ""
	}
	return "-X " + modulePath + "/internal/cli.Version=" + v
}

func build(env map[string]string, tags ...string) error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v", "-o", filepath.Join(binaryDir, binaryName)}
	if flags := ldflags(); flags != "" {
		args = append(args, "-ldflags", flags)
	}
	for _, tag := range tags {
		args = append(args, "-tags", tag)
	}
	return sh.RunWithV(env, binGo, append(args, cmdDir)...)
}

// Build compiles the sheets binary to bin/ with the pure Go SQLite driver.
func Build() error {
	return build(nil)
}

// BuildCGO compiles the sheets binary with the cgo SQLite driver.
func BuildCGO() error {
	return build(map[string]string{"CGO_ENABLED": "1"}, cgoTag)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	if err := os.Remove("coverage.out"); err != nil && !os.IsNotExist(err) {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
