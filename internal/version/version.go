// Package version reports the foldcrew release.
package version

import (
	_ "embed"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionContent string

// override is set at link time:
//
//	go build -ldflags "-X github.com/ShayCichocki/foldcrew/internal/version.override=1.2.3"
var override string

// Get returns the release, preferring the link-time override to the
// embedded VERSION file.
func Get() string {
	if v := strings.TrimSpace(override); v != "" {
		return v
	}
	return strings.TrimSpace(versionContent)
}

// Full returns the release with the Go toolchain and platform.
func Full() string {
	return Get() + " (" + runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
