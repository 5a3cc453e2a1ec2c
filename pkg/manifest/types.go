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

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrAssetNotFound indicates an asset path is not part of the manifest.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrBundleNotFound indicates a bundle id or name is not part of the manifest.
	ErrBundleNotFound = errors.New("bundle not found")
	// ErrInvalidManifest indicates the manifest data is structurally wrong.
	ErrInvalidManifest = errors.New("invalid manifest")
)

// Manifest is an immutable snapshot of one version of a package.
//
// A Manifest must not be modified after Parse returns it. Activating a new
// version replaces the whole value.
type Manifest struct {
	FileVersion       string    `json:"fileVersion"`
	EnableAddressable bool      `json:"enableAddressable"`
	LocationToLower   bool      `json:"locationToLower"`
	IncludeAssetGUID  bool      `json:"includeAssetGUID"`
	OutputNameStyle   int       `json:"outputNameStyle"`
	PackageName       string    `json:"packageName"`
	PackageVersion    string    `json:"packageVersion"`
	AssetList         []*Asset  `json:"assetList"`
	BundleList        []*Bundle `json:"bundleList"`

	locations  map[string]string
	guids      map[string]string
	assets     map[string]*Asset
	bundles    map[string]*Bundle
	cacheGUIDs map[string]*Bundle
}

var lower = cases.Lower(language.Und)

func (m *Manifest) foldLocation(location string) string {
	if m.LocationToLower {
		return lower.String(location)
	}
	return location
}

// MappingToAssetPath maps a location to an asset path.
func (m *Manifest) MappingToAssetPath(location string) (string, error) {
	if location == "" {
		return "", errors.New("the location is empty")
	}
	if p, ok := m.locations[m.foldLocation(location)]; ok {
		return p, nil
	}
	return "", errors.Wrapf(ErrAssetNotFound, "failed to map location %q to an asset path", location)
}

// TryMappingToAssetPath is MappingToAssetPath without the error.
func (m *Manifest) TryMappingToAssetPath(location string) string {
	p, _ := m.MappingToAssetPath(location)
	return p
}

// Asset returns the asset for an asset path.
func (m *Manifest) Asset(assetPath string) (*Asset, error) {
	if a, ok := m.assets[assetPath]; ok {
		return a, nil
	}
	return nil, errors.Wrapf(ErrAssetNotFound, "asset path %q", assetPath)
}

// MainBundle returns the bundle that contains the asset at assetPath.
func (m *Manifest) MainBundle(assetPath string) (*Bundle, error) {
	a, err := m.Asset(assetPath)
	if err != nil {
		return nil, err
	}
	return m.bundleAt(a.BundleID)
}

// Dependencies returns the bundles the asset at assetPath depends on. The
// result holds each bundle identity once and never contains the main bundle.
func (m *Manifest) Dependencies(assetPath string) ([]*Bundle, error) {
	a, err := m.Asset(assetPath)
	if err != nil {
		return nil, err
	}
	main, err := m.bundleAt(a.BundleID)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{main.CacheGUID(): true}
	deps := make([]*Bundle, 0, len(a.DependIDs))
	for _, id := range a.DependIDs {
		b, err := m.bundleAt(id)
		if err != nil {
			return nil, err
		}
		if seen[b.CacheGUID()] {
			continue
		}
		seen[b.CacheGUID()] = true
		deps = append(deps, b)
	}
	return deps, nil
}

// BundleName returns the name of the bundle at index id.
func (m *Manifest) BundleName(id int) (string, error) {
	b, err := m.bundleAt(id)
	if err != nil {
		return "", err
	}
	return b.BundleName, nil
}

// Bundle looks a bundle up by name.
func (m *Manifest) Bundle(name string) (*Bundle, error) {
	if b, ok := m.bundles[name]; ok {
		return b, nil
	}
	return nil, errors.Wrapf(ErrBundleNotFound, "bundle name %q", name)
}

func (m *Manifest) bundleAt(id int) (*Bundle, error) {
	if id < 0 || id >= len(m.BundleList) {
		return nil, errors.Wrapf(ErrBundleNotFound, "bundle id %d", id)
	}
	return m.BundleList[id], nil
}

// IsIncludeBundleFile reports whether a bundle with the cache GUID belongs
// to this manifest.
func (m *Manifest) IsIncludeBundleFile(cacheGUID string) bool {
	_, ok := m.cacheGUIDs[cacheGUID]
	return ok
}

// ConvertLocationToAssetInfo maps a location to an AssetInfo. Failures are
// reported through the returned info, never as a nil value.
func (m *Manifest) ConvertLocationToAssetInfo(location, assetType string) *AssetInfo {
	if location == "" {
		return invalidAssetInfo(m.PackageName, "The location is null or empty.")
	}
	assetPath, err := m.MappingToAssetPath(location)
	if err != nil {
		return invalidAssetInfo(m.PackageName, fmt.Sprintf("The location is invalid : %s", location))
	}
	a, err := m.Asset(assetPath)
	if err != nil {
		return invalidAssetInfo(m.PackageName, fmt.Sprintf("The location is invalid : %s", location))
	}
	return newAssetInfo(m.PackageName, a, assetType)
}

// ConvertAssetGUIDToAssetInfo maps an asset GUID to an AssetInfo.
func (m *Manifest) ConvertAssetGUIDToAssetInfo(assetGUID, assetType string) *AssetInfo {
	if assetGUID == "" {
		return invalidAssetInfo(m.PackageName, "The asset GUID is null or empty.")
	}
	if !m.IncludeAssetGUID {
		return invalidAssetInfo(m.PackageName, "The manifest does not include asset GUIDs.")
	}
	assetPath, ok := m.guids[assetGUID]
	if !ok {
		return invalidAssetInfo(m.PackageName, fmt.Sprintf("The asset GUID is invalid : %s", assetGUID))
	}
	return newAssetInfo(m.PackageName, m.assets[assetPath], assetType)
}

// AssetsInfoByTags returns the assets that carry any of tags, in manifest order.
func (m *Manifest) AssetsInfoByTags(tags []string) []*AssetInfo {
	var result []*AssetInfo
	for _, a := range m.AssetList {
		if a.HasTag(tags) {
			result = append(result, newAssetInfo(m.PackageName, a, ""))
		}
	}
	return result
}

// AssetsMatching returns the assets whose path matches the glob pattern.
func (m *Manifest) AssetsMatching(pattern string) ([]*AssetInfo, error) {
	g, err := glob.Compile(m.foldLocation(pattern), '/')
	if err != nil {
		return nil, errors.Wrapf(err, "invalid pattern %q", pattern)
	}
	var result []*AssetInfo
	for _, a := range m.AssetList {
		if g.Match(m.foldLocation(a.AssetPath)) {
			result = append(result, newAssetInfo(m.PackageName, a, ""))
		}
	}
	return result, nil
}
