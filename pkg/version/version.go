// Package version reports the version of ptool and the memory maps it
// knows about.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/jdsd/practice-tool/pkg/pointers"
)

// Version represents the current version of ptool.
type Version struct {
	Major    string
	Minor    string
	Patch    string
	Metadata string
	Build    string
}

// PtoolVersion is the current version of ptool.
var PtoolVersion = Version{
	Major: "0", Minor: "4", Patch: "1", Metadata: "",
	Build: "$Id$",
}

func (v Version) String() string {
	fixBuild(&v)
	ver := fmt.Sprintf("Version: %s.%s.%s", v.Major, v.Minor, v.Patch)
	if v.Metadata != "" {
		ver += "-" + v.Metadata
	}
	return fmt.Sprintf("%s\nBuild: %s", ver, v.Build)
}

// BuildInfo returns the Go version and the modules ptool was built with.
func BuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return runtime.Version() + "\nnot built in module mode"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n mod\t%s\t%s\n", runtime.Version(), info.Main.Path, info.Main.Version)
	for _, dep := range info.Deps {
		fmt.Fprintf(&b, " dep\t%s\t%s\n", dep.Path, dep.Version)
	}
	return b.String()
}

// GameVersions returns the supported game versions, oldest first.
func GameVersions() string {
	vs := pointers.Supported()
	s := make([]string, len(vs))
	for i := range vs {
		s[i] = vs[i].String()
	}
	return strings.Join(s, ", ")
}

func fixBuild(v *Version) {
	// Return if v.Build already set, but not if it is Git ident expand file blob hash
	if !strings.HasPrefix(v.Build, "$Id$") {
		return
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			v.Build = setting.Value
			return
		}
	}
}
