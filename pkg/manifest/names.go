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

package manifest

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// VersionFileName is the file holding the latest version string of a package.
func VersionFileName(packageName string) string {
	return fmt.Sprintf("PackageManifest_%s.version", packageName)
}

// FileName is the manifest file of one package version.
func FileName(packageName, packageVersion string) string {
	return fmt.Sprintf("PackageManifest_%s_%s.json", packageName, packageVersion)
}

// HashFileName is the file holding the SHA-256 of the manifest file.
func HashFileName(packageName, packageVersion string) string {
	return fmt.Sprintf("PackageManifest_%s_%s.hash", packageName, packageVersion)
}

// CompareVersions compares two package versions as semantic versions.
// It returns -1, 0 or 1.
func CompareVersions(a, b string) (int, error) {
	va, err := semver.NewVersion(a)
	if err != nil {
		return 0, fmt.Errorf("invalid package version %q: %w", a, err)
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return 0, fmt.Errorf("invalid package version %q: %w", b, err)
	}
	return va.Compare(vb), nil
}
