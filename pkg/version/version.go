package version

import (
	_ "embed"
	"fmt"
	"runtime"
	"strings"
)

//go:embed VERSION
var Version string

// Commit is stamped at link time:
// -ldflags "-X github.com/kamshory/wsbridge/pkg/version.Commit=$(git rev-parse --short HEAD)"
var Commit string

// Get returns the current version of the application
func Get() string {
	return strings.TrimSpace(Version)
}

// String returns the version with the commit, Go runtime and platform
func String() string {
	v := Get()
	if Commit != "" {
		v += "+" + Commit
	}
	return fmt.Sprintf("%s (%s %s/%s)", v, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
