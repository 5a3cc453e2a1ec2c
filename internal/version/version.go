/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package version // import "github.com/sunny352/YooAsset/internal/version"

import (
	"flag"
	"runtime"
	"strings"

	"github.com/sunny352/YooAsset/pkg/manifest"
)

var (
	// version is the release of yoo, set with -ldflags at build time.
	version = "v1.5"

	// metadata is appended to version as build metadata.
	metadata = ""
	// gitCommit is the git sha1
	gitCommit = ""
	// gitTreeState is "clean" or "dirty"
	gitTreeState = ""
)

// BuildInfo describes the yoo binary and the content it can read.
type BuildInfo struct {
	// Version is the release of yoo.
	Version string `json:"version,omitempty"`
	// ManifestVersion is the package manifest file version this build
	// accepts.
	ManifestVersion string `json:"manifestVersion"`
	GitCommit       string `json:"gitCommit,omitempty"`
	GitTreeState    string `json:"gitTreeState,omitempty"`
	GoVersion       string `json:"goVersion,omitempty"`
	// Platform is GOOS/GOARCH.
	Platform string `json:"platform,omitempty"`
}

// GetVersion returns the release with its build metadata.
func GetVersion() string {
	if metadata == "" {
		return version
	}
	return version + "+" + metadata
}

// GetUserAgent returns the User-Agent sent to content servers. It names the
// manifest version so that servers can tell old clients apart.
func GetUserAgent() string {
	return "YooAsset/" + strings.TrimPrefix(GetVersion(), "v") + " manifest/" + manifest.FileVersion
}

// Get returns the build info. Go version and platform are left out under
// go test so that output stays stable.
func Get() BuildInfo {
	v := BuildInfo{
		Version:         GetVersion(),
		ManifestVersion: manifest.FileVersion,
		GitCommit:       gitCommit,
		GitTreeState:    gitTreeState,
		GoVersion:       runtime.Version(),
		Platform:        runtime.GOOS + "/" + runtime.GOARCH,
	}
	if flag.Lookup("test.v") != nil {
		v.GoVersion = ""
		v.Platform = ""
	}
	return v
}

// Short returns the release followed by an abbreviated commit when known.
func (b BuildInfo) Short() string {
	if len(b.GitCommit) < 7 {
		return b.Version
	}
	return b.Version + "+g" + b.GitCommit[:7]
}

// String is a one line summary, e.g.
// "yoo v1.5 (manifest 1.5.0, commit 1a2b3c4-dirty, go1.24.0 linux/amd64)".
func (b BuildInfo) String() string {
	details := []string{"manifest " + b.ManifestVersion}
	if b.GitCommit != "" {
		commit := b.GitCommit
		if len(commit) > 7 {
			commit = commit[:7]
		}
		if b.GitTreeState == "dirty" {
			commit += "-dirty"
		}
		details = append(details, "commit "+commit)
	}
	if runtimeInfo := strings.TrimSpace(b.GoVersion + " " + b.Platform); runtimeInfo != "" {
		details = append(details, runtimeInfo)
	}
	return "yoo " + b.Version + " (" + strings.Join(details, ", ") + ")"
}
