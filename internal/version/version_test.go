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

package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sunny352/YooAsset/pkg/manifest"
)

func TestBuildInfoString(t *testing.T) {
	tests := []struct {
		name  string
		info  BuildInfo
		short string
		long  string
	}{
		{
			name:  "release",
			info:  BuildInfo{Version: "v1.5", ManifestVersion: "1.5.0"},
			short: "v1.5",
			long:  "yoo v1.5 (manifest 1.5.0)",
		},
		{
			name: "dirty tree",
			info: BuildInfo{
				Version:         "v1.5",
				ManifestVersion: "1.5.0",
				GitCommit:       "fe51cd1e31e6a202cba7dead9552a6d418ded79a",
				GitTreeState:    "dirty",
				GoVersion:       "go1.24.0",
				Platform:        "linux/amd64",
			},
			short: "v1.5+gfe51cd1",
			long:  "yoo v1.5 (manifest 1.5.0, commit fe51cd1-dirty, go1.24.0 linux/amd64)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.short, tt.info.Short())
			assert.Equal(t, tt.long, tt.info.String())
		})
	}
}

func TestGet(t *testing.T) {
	v := Get()
	assert.Equal(t, manifest.FileVersion, v.ManifestVersion)
	assert.Empty(t, v.GoVersion)
	assert.Empty(t, v.Platform)
	assert.True(t, strings.HasSuffix(GetUserAgent(), " manifest/"+manifest.FileVersion), GetUserAgent())
}
