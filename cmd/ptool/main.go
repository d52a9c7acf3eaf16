package main

import (
	"os"

	"github.com/jdsd/practice-tool/cmd/ptool/cmds"
	"github.com/jdsd/practice-tool/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.PtoolVersion.Build = Build
	}
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
