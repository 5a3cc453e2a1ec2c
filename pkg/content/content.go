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

package content

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sunny352/YooAsset/internal/logging"
	"github.com/sunny352/YooAsset/pkg/cacheindex"
	"github.com/sunny352/YooAsset/pkg/getter"
	"github.com/sunny352/YooAsset/pkg/manifest"
	"github.com/sunny352/YooAsset/pkg/persistent"
	"github.com/sunny352/YooAsset/pkg/query"
	"github.com/sunny352/YooAsset/pkg/remote"
)

// LoadMode tells where a resolved bundle is read from.
type LoadMode int

const (
	LoadNone LoadMode = iota
	LoadFromDelivery
	LoadFromCache
	LoadFromStreaming
	LoadFromRemote
)

var loadModeNames = [...]string{"none", "delivery", "cache", "streaming", "remote"}

func (m LoadMode) String() string {
	if int(m) < len(loadModeNames) {
		return loadModeNames[m]
	}
	return fmt.Sprintf("LoadMode(%d)", int(m))
}

// BundleInfo is a bundle together with the place it is read from. It is
// built per resolution and never stored.
type BundleInfo struct {
	Bundle   *manifest.Bundle
	LoadMode LoadMode

	// MainURL and FallbackURL are set for remote bundles and for unpack
	// sources.
	MainURL     string
	FallbackURL string

	// DeliveryPath and DeliveryOffset are set for delivered bundles.
	DeliveryPath   string
	DeliveryOffset int64
}

func (b *BundleInfo) String() string {
	return fmt.Sprintf("%s (%s)", b.Bundle.BundleName, b.LoadMode)
}

// Resolver maps bundles of one package to their tier.
//
// A nil Cache disables the cache tier. A nil Remote makes every bundle that
// is neither delivered nor cached resolve to the built-in tier.
type Resolver struct {
	PackageName string
	Cache       *cacheindex.Cache
	Builtin     query.BuiltinQuery
	Delivery    query.DeliveryQuery
	Remote      remote.Services
	// Layout locates built-in files for unpack sources.
	Layout *persistent.Persistent
	Log    logrus.FieldLogger
}

func (r *Resolver) log() logrus.FieldLogger {
	if r.Log == nil {
		return logging.Discard()
	}
	return r.Log
}

// delivered returns where the delivery channel keeps b. A file the channel
// claims but cannot locate does not count as delivered.
func (r *Resolver) delivered(b *manifest.Bundle) (query.DeliveryFileInfo, bool) {
	if r.Delivery == nil || !r.Delivery.HasFile(r.PackageName, b.FileName) {
		return query.DeliveryFileInfo{}, false
	}
	return r.Delivery.FileInfo(r.PackageName, b.FileName)
}

func (r *Resolver) isDelivery(b *manifest.Bundle) bool {
	_, ok := r.delivered(b)
	return ok
}

func (r *Resolver) isCached(b *manifest.Bundle) bool {
	return r.Cache != nil && r.Cache.IsCached(b.PackageName, b.CacheGUID())
}

func (r *Resolver) isBuiltin(b *manifest.Bundle) bool {
	return r.Builtin != nil && r.Builtin.HasFile(r.PackageName, b.FileName)
}

// IsRemoteOnly reports whether b can only be obtained from the server.
func (r *Resolver) IsRemoteOnly(b *manifest.Bundle) bool {
	return r.Remote != nil && !r.isDelivery(b) && !r.isCached(b) && !r.isBuiltin(b)
}

// Resolve returns the current location of b. Passing a nil bundle is a
// programming error and panics.
func (r *Resolver) Resolve(b *manifest.Bundle) *BundleInfo {
	if b == nil {
		panic("Should never get here !")
	}

	if info, ok := r.delivered(b); ok {
		return &BundleInfo{
			Bundle:         b,
			LoadMode:       LoadFromDelivery,
			DeliveryPath:   info.Path,
			DeliveryOffset: info.Offset,
		}
	}
	if r.isCached(b) {
		return &BundleInfo{Bundle: b, LoadMode: LoadFromCache}
	}
	if r.isBuiltin(b) || r.Remote == nil {
		return &BundleInfo{Bundle: b, LoadMode: LoadFromStreaming}
	}
	return r.remoteInfo(b)
}

func (r *Resolver) remoteInfo(b *manifest.Bundle) *BundleInfo {
	return &BundleInfo{
		Bundle:      b,
		LoadMode:    LoadFromRemote,
		MainURL:     r.Remote.MainURL(b.FileName),
		FallbackURL: r.Remote.FallbackURL(b.FileName),
	}
}

func mustBeValid(info *manifest.AssetInfo) {
	if info.IsInvalid() {
		panic("Should never get here !")
	}
}

// ResolveAsset resolves the main bundle of a valid asset.
func (r *Resolver) ResolveAsset(m *manifest.Manifest, info *manifest.AssetInfo) (*BundleInfo, error) {
	mustBeValid(info)
	b, err := m.MainBundle(info.AssetPath())
	if err != nil {
		return nil, err
	}
	return r.Resolve(b), nil
}

// ResolveDependencies resolves every dependency bundle of a valid asset.
func (r *Resolver) ResolveDependencies(m *manifest.Manifest, info *manifest.AssetInfo) ([]*BundleInfo, error) {
	mustBeValid(info)
	deps, err := m.Dependencies(info.AssetPath())
	if err != nil {
		return nil, err
	}
	out := make([]*BundleInfo, 0, len(deps))
	for _, b := range deps {
		out = append(out, r.Resolve(b))
	}
	return out, nil
}

// DownloadListByAll returns every bundle of m that must come from the server.
func (r *Resolver) DownloadListByAll(m *manifest.Manifest) []*BundleInfo {
	var out []*BundleInfo
	for _, b := range m.BundleList {
		if r.IsRemoteOnly(b) {
			out = append(out, r.remoteInfo(b))
		}
	}
	return out
}

// DownloadListByTags returns the remote-only bundles that are untagged or
// share a tag with tags.
func (r *Resolver) DownloadListByTags(m *manifest.Manifest, tags []string) []*BundleInfo {
	var out []*BundleInfo
	for _, b := range m.BundleList {
		if !r.IsRemoteOnly(b) {
			continue
		}
		if !b.HasAnyTags() || b.HasTag(tags) {
			out = append(out, r.remoteInfo(b))
		}
	}
	return out
}

// DownloadListByPaths returns the remote-only bundles needed by assets,
// main bundles and dependencies alike, each at most once. Invalid assets are
// skipped with a warning.
func (r *Resolver) DownloadListByPaths(m *manifest.Manifest, assets []*manifest.AssetInfo) ([]*BundleInfo, error) {
	seen := map[string]bool{}
	var check []*manifest.Bundle
	add := func(b *manifest.Bundle) {
		if seen[b.CacheGUID()] {
			return
		}
		seen[b.CacheGUID()] = true
		check = append(check, b)
	}

	for _, info := range assets {
		if info.IsInvalid() {
			reason := "nil asset info"
			if info != nil {
				reason = info.Error
			}
			r.log().Warn(reason)
			continue
		}
		main, err := m.MainBundle(info.AssetPath())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to collect bundles of %s", info.AssetPath())
		}
		add(main)
		deps, err := m.Dependencies(info.AssetPath())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to collect bundles of %s", info.AssetPath())
		}
		for _, b := range deps {
			add(b)
		}
	}

	var out []*BundleInfo
	for _, b := range check {
		if r.IsRemoteOnly(b) {
			out = append(out, r.remoteInfo(b))
		}
	}
	return out, nil
}

// UnpackListByAll returns every built-in bundle of m that is not cached yet.
func (r *Resolver) UnpackListByAll(m *manifest.Manifest) ([]*BundleInfo, error) {
	return r.unpackList(m, func(*manifest.Bundle) bool { return true })
}

// UnpackListByTags returns the uncached built-in bundles that share a tag
// with tags. Untagged bundles are not included.
func (r *Resolver) UnpackListByTags(m *manifest.Manifest, tags []string) ([]*BundleInfo, error) {
	return r.unpackList(m, func(b *manifest.Bundle) bool { return b.HasTag(tags) })
}

func (r *Resolver) unpackList(m *manifest.Manifest, match func(*manifest.Bundle) bool) ([]*BundleInfo, error) {
	var out []*BundleInfo
	for _, b := range m.BundleList {
		if r.isCached(b) || !r.isBuiltin(b) || !match(b) {
			continue
		}
		info, err := r.unpackInfo(b)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

func (r *Resolver) unpackInfo(b *manifest.Bundle) (*BundleInfo, error) {
	if r.Layout == nil {
		return nil, errors.Errorf("no built-in layout for package %s", r.PackageName)
	}
	path, err := r.Layout.BuiltinFilePath(b.FileName)
	if err != nil {
		return nil, err
	}
	u := getter.FileURL(path)
	return &BundleInfo{Bundle: b, LoadMode: LoadFromStreaming, MainURL: u, FallbackURL: u}, nil
}
