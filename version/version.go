// Package version exposes build and dependency information embedded by the
// Go toolchain at build time.
package version

import (
	"runtime/debug"
	"sort"
)

// Version is the arbiter release version, overridable at build time via
// -ldflags "-X github.com/arbiterhq/arbiter/version.Version=...".
var Version = "v0.1.0"

// DependencyInfo describes one module dependency of the binary.
type DependencyInfo struct {
	Path    string `json:"path"`
	Version string `json:"version"`
	Replace string `json:"replace,omitempty"`
}

// BuildInfo contains build-time information about the running binary.
type BuildInfo struct {
	GoVersion    string           `json:"goVersion"`
	MainModule   string           `json:"mainModule"`
	MainVersion  string           `json:"mainVersion"`
	Dependencies []DependencyInfo `json:"dependencies"`
}

// GetBuildInfo reads module information embedded in the current binary.
func GetBuildInfo() *BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return &BuildInfo{
			GoVersion:   "unknown",
			MainModule:  "unknown",
			MainVersion: Version,
		}
	}

	bi := &BuildInfo{
		GoVersion:   info.GoVersion,
		MainModule:  info.Main.Path,
		MainVersion: info.Main.Version,
	}
	if bi.MainVersion == "" || bi.MainVersion == "(devel)" {
		bi.MainVersion = Version
	}

	for _, dep := range info.Deps {
		d := DependencyInfo{Path: dep.Path, Version: dep.Version}
		if dep.Replace != nil {
			d.Replace = dep.Replace.Path + "@" + dep.Replace.Version
		}
		bi.Dependencies = append(bi.Dependencies, d)
	}
	sort.Slice(bi.Dependencies, func(i, j int) bool {
		return bi.Dependencies[i].Path < bi.Dependencies[j].Path
	})

	return bi
}
