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

// AssetInfo is a resolved asset request. An invalid AssetInfo carries the
// reason in Error and has no Asset.
type AssetInfo struct {
	PackageName string
	Asset       *Asset
	AssetType   string
	Error       string
}

func newAssetInfo(pkg string, a *Asset, assetType string) *AssetInfo {
	return &AssetInfo{PackageName: pkg, Asset: a, AssetType: assetType}
}

func invalidAssetInfo(pkg, reason string) *AssetInfo {
	return &AssetInfo{PackageName: pkg, Error: reason}
}

// IsInvalid reports whether the request could not be mapped.
func (i *AssetInfo) IsInvalid() bool {
	return i == nil || i.Asset == nil
}

// AssetPath returns the mapped asset path, or "" when invalid.
func (i *AssetInfo) AssetPath() string {
	if i.IsInvalid() {
		return ""
	}
	return i.Asset.AssetPath
}

// Address returns the asset address, or "" when invalid.
func (i *AssetInfo) Address() string {
	if i.IsInvalid() {
		return ""
	}
	return i.Asset.Address
}
