// Package main provides the cosmos-agent CLI.
package main

import (
	"github.com/dotcommander/cosmos-agent/internal/cmd"
	"github.com/dotcommander/cosmos-agent/internal/config"
)

// Build vars.
var (
	//nolint: gochecknoglobals
	Version = ""
	//nolint: gochecknoglobals
	CommitSHA = ""
)

func main() {
	cfg, cfgErr := config.Ensure()
	cmd.Execute(cmd.BuildInfo{Version: Version, CommitSHA: CommitSHA}, cfg, cfgErr)
}
