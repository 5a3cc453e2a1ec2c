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
	"path"
	"strings"
)

// Bundle describes one physical content file of a package.
type Bundle struct {
	BundleName string   `json:"bundleName"`
	FileHash   string   `json:"fileHash"`
	FileCRC    string   `json:"fileCRC,omitempty"`
	FileSize   int64    `json:"fileSize"`
	IsRawFile  bool     `json:"isRawFile,omitempty"`
	Tags       []string `json:"tags,omitempty"`

	// PackageName is the name of the owning package.
	PackageName string `json:"-"`
	// FileName is the on-server file name, derived from the output name style.
	FileName string `json:"-"`
	// FileExtension includes the leading dot, or is empty.
	FileExtension string `json:"-"`
}

// CacheGUID is the content address of the bundle. It is stable across
// package versions as long as the bytes do not change.
func (b *Bundle) CacheGUID() string {
	return b.FileHash
}

// HasAnyTags reports whether the bundle carries at least one tag.
func (b *Bundle) HasAnyTags() bool {
	return len(b.Tags) > 0
}

// HasTag reports whether the bundle shares at least one tag with tags.
func (b *Bundle) HasTag(tags []string) bool {
	return intersects(b.Tags, tags)
}

// Equal compares bundles by identity.
func (b *Bundle) Equal(other *Bundle) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.CacheGUID() == other.CacheGUID()
}

func (b *Bundle) init(pkg string, style int) {
	b.PackageName = pkg
	b.FileExtension = path.Ext(b.BundleName)
	b.FileName = outputFileName(style, b.BundleName, b.FileHash, b.FileExtension)
}

// Output name styles.
const (
	StyleHashName           = 1
	StyleBundleNameHashName = 2
)

func outputFileName(style int, bundleName, fileHash, ext string) string {
	switch style {
	case StyleHashName:
		return fileHash + ext
	case StyleBundleNameHashName:
		return strings.TrimSuffix(bundleName, ext) + "_" + fileHash + ext
	default:
		return bundleName
	}
}

// Asset is a logical asset and the bundles it needs.
type Asset struct {
	Address   string   `json:"address,omitempty"`
	AssetPath string   `json:"assetPath"`
	AssetGUID string   `json:"assetGUID,omitempty"`
	AssetTags []string `json:"assetTags,omitempty"`
	BundleID  int      `json:"bundleID"`
	DependIDs []int    `json:"dependIDs,omitempty"`
}

// HasTag reports whether the asset shares at least one tag with tags.
func (a *Asset) HasTag(tags []string) bool {
	return intersects(a.AssetTags, tags)
}

func intersects(have, want []string) bool {
	if len(have) == 0 || len(want) == 0 {
		return false
	}
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
