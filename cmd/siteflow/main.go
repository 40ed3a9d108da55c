// Package main is the entry point for the siteflow CLI.
//
// siteflow provisions multi-site networks against a cloud-managed network
// platform: deterministic address planning, dependency-ordered idempotent
// configuration workflows, and metrics-gated canary rollouts.
//
// Commands: reachability, site, claim, day1, assure, canary, rotate, status,
// cancel.
//
// For detailed usage information, run:
//
//	siteflow --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/siteflow/cmd/siteflow/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
