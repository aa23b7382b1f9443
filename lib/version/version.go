// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the nook
// binary.
//
// Version information is injected at build time via -ldflags, for
// example:
//
//	go build -ldflags "-X github.com/nook-im/nook/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"os"
	"runtime"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version, set manually for releases.
	Version = "0.1.0-dev"
)

// Info returns a formatted version string for --version output.
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildTime)
}

// Print writes the program name, version, and platform to stdout.
func Print(program string) {
	fmt.Fprintf(os.Stdout, "%s %s\n  Go: %s\n  Platform: %s/%s\n",
		program, Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
