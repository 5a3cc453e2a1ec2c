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

package resource

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sunny352/YooAsset/internal/monitoring"
	"github.com/sunny352/YooAsset/pkg/cacheindex"
	"github.com/sunny352/YooAsset/pkg/cacheindex/driver"
	"github.com/sunny352/YooAsset/pkg/content"
	"github.com/sunny352/YooAsset/pkg/download"
	"github.com/sunny352/YooAsset/pkg/getter"
	"github.com/sunny352/YooAsset/pkg/manifest"
	"github.com/sunny352/YooAsset/pkg/operation"
	"github.com/sunny352/YooAsset/pkg/persistent"
	"github.com/sunny352/YooAsset/pkg/playmode"
	"github.com/sunny352/YooAsset/pkg/query"
	"github.com/sunny352/YooAsset/pkg/remote"
)

// ErrNotInitialized is returned before the initialization of a package
// completed.
var ErrNotInitialized = errors.New("Package initialize not completed !")

// Parameters configure the initialization of a package.
type Parameters struct {
	Mode playmode.Mode

	// BuiltinRoot and SandboxRoot default to the per-user directories.
	BuiltinRoot string
	SandboxRoot string

	Builtin   query.BuiltinQuery
	Delivery  query.DeliveryQuery
	Remote    remote.Services
	Driver    driver.Driver
	Providers getter.Providers
	Metrics   *monitoring.Metrics

	VerifyLevel cacheindex.VerifyLevel

	SimulateManifestPath string
	SimulateManifest     *manifest.Manifest

	// DownloadFailedTryAgain is the retry budget of batches created without
	// one. The minimum is 1.
	DownloadFailedTryAgain int
}

// DefaultParameters returns the parameters of a mode with default limits.
func DefaultParameters(mode playmode.Mode) Parameters {
	return Parameters{
		Mode:                   mode,
		VerifyLevel:            cacheindex.VerifyMiddle,
		DownloadFailedTryAgain: download.DefaultMaxRetryPerItem,
	}
}

// Package is one named content package.
type Package struct {
	engine *Engine
	name   string
	log    logrus.FieldLogger

	mu          sync.Mutex
	initialized bool
	initStatus  operation.Status
	initError   string
	params      Parameters
	layout      *persistent.Persistent
	services    playmode.Services
	retained    map[string]int
}

func newPackage(e *Engine, name string) *Package {
	return &Package{
		engine:   e,
		name:     name,
		log:      e.log.WithField("package", name),
		retained: map[string]int{},
	}
}

// Name returns the package name.
func (p *Package) Name() string { return p.name }

// InitializeStatus returns the status of the last initialization.
func (p *Package) InitializeStatus() operation.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initStatus
}

// InitializeAsync starts the initialization of the package. A package
// whose initialization failed may be initialized again.
func (p *Package) InitializeAsync(params Parameters) (*playmode.InitializationOperation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized && p.initStatus == operation.StatusFailed {
		p.reset()
	}
	if p.initialized {
		return nil, errors.New("ResourcePackage is initialized yet.")
	}
	if params.DownloadFailedTryAgain < 1 {
		params.DownloadFailedTryAgain = 1
		p.log.Warn("DownloadFailedTryAgain minimum value is 1")
	}

	layout, err := persistent.New(p.name, params.BuiltinRoot, params.SandboxRoot)
	if err != nil {
		return nil, err
	}
	services, err := playmode.New(params.Mode, playmode.Config{
		PackageName:          p.name,
		Ctx:                  p.engine.ctx,
		Scheduler:            p.engine.sched,
		Cache:                p.engine.cache,
		Layout:               layout,
		Driver:               params.Driver,
		Builtin:              params.Builtin,
		Delivery:             params.Delivery,
		Remote:               params.Remote,
		Providers:            params.Providers,
		Metrics:              params.Metrics,
		VerifyLevel:          params.VerifyLevel,
		SimulateManifestPath: params.SimulateManifestPath,
		SimulateManifest:     params.SimulateManifest,
		Log:                  p.log,
	})
	if err != nil {
		return nil, err
	}

	p.params = params
	p.layout = layout
	p.services = services
	p.initialized = true
	p.initStatus = operation.StatusProcessing

	op := services.Initialize()
	op.OnCompleted(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.initStatus = op.Status()
		p.initError = op.Error()
	})
	return op, nil
}

// reset drops a failed initialization. Callers hold mu.
func (p *Package) reset() {
	p.initialized = false
	p.initStatus = operation.StatusNone
	p.initError = ""
	p.services = nil
	p.layout = nil
	p.retained = map[string]int{}
}

// checked returns the services once the initialization succeeded. With
// needManifest it also requires an active manifest.
func (p *Package) checked(needManifest bool) (playmode.Services, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.initStatus {
	case operation.StatusNone, operation.StatusProcessing:
		return nil, ErrNotInitialized
	case operation.StatusFailed:
		return nil, errors.Errorf("Package initialize failed ! %s", p.initError)
	}
	if needManifest && p.services.ActiveManifest() == nil {
		return nil, playmode.ErrNoActiveManifest
	}
	return p.services, nil
}

func (p *Package) activeManifest() (*manifest.Manifest, error) {
	s, err := p.checked(true)
	if err != nil {
		return nil, err
	}
	return s.ActiveManifest(), nil
}

// ActiveManifest returns the manifest assets are resolved against.
func (p *Package) ActiveManifest() (*manifest.Manifest, error) {
	return p.activeManifest()
}

// ResolveBundle returns where a bundle of the active manifest is read
// from.
func (p *Package) ResolveBundle(b *manifest.Bundle) (*content.BundleInfo, error) {
	s, err := p.checked(true)
	if err != nil {
		return nil, err
	}
	return s.Resolver().Resolve(b), nil
}

// Mode returns the play mode of an initialized package.
func (p *Package) Mode() (playmode.Mode, error) {
	s, err := p.checked(false)
	if err != nil {
		return 0, err
	}
	return s.Mode(), nil
}

// UpdatePackageVersionAsync asks the server for the newest version.
func (p *Package) UpdatePackageVersionAsync(opts playmode.UpdateOptions) (*playmode.VersionOperation, error) {
	s, err := p.checked(false)
	if err != nil {
		return nil, err
	}
	return s.UpdatePackageVersion(opts), nil
}

// UpdatePackageManifestAsync activates the manifest of version. With
// autoSaveVersion the version is loaded at the next start.
func (p *Package) UpdatePackageManifestAsync(version string, autoSaveVersion bool, opts playmode.UpdateOptions) (*playmode.ManifestOperation, error) {
	s, err := p.checked(false)
	if err != nil {
		return nil, err
	}
	if n := p.RetainedCount(); n > 0 {
		p.log.Warnf("Found %d loaded bundle before update manifest ! Recommended to call the Release method to release loaded bundle !", n)
	}
	return s.UpdatePackageManifest(version, autoSaveVersion, opts), nil
}

// PreDownloadContentAsync loads the manifest of version without activating
// it, so its content can be downloaded ahead of time.
func (p *Package) PreDownloadContentAsync(version string, opts playmode.UpdateOptions) (*playmode.PreDownloadOperation, error) {
	s, err := p.checked(false)
	if err != nil {
		return nil, err
	}
	return s.PreDownloadContent(version, opts), nil
}

// GetPackageVersion returns the version of the active manifest.
func (p *Package) GetPackageVersion() (string, error) {
	m, err := p.activeManifest()
	if err != nil {
		return "", err
	}
	return m.PackageVersion, nil
}

// GetPackageBuiltinRootDirectory returns the built-in root of the package.
func (p *Package) GetPackageBuiltinRootDirectory() (string, error) {
	if _, err := p.checked(true); err != nil {
		return "", err
	}
	return p.layout.BuiltinRoot(), nil
}

// GetPackageSandboxRootDirectory returns the sandbox root of the package.
func (p *Package) GetPackageSandboxRootDirectory() (string, error) {
	if _, err := p.checked(true); err != nil {
		return "", err
	}
	return p.layout.SandboxRoot(), nil
}

// ClearPackageSandbox deletes everything the package wrote, cached bundles
// included.
func (p *Package) ClearPackageSandbox(ctx context.Context) error {
	s, err := p.checked(true)
	if err != nil {
		return err
	}
	if hasCache(s.Mode()) {
		if err := p.engine.cache.ClearAll(ctx, p.name); err != nil {
			return err
		}
	}
	return p.layout.DeleteSandbox()
}

func hasCache(m playmode.Mode) bool {
	return m == playmode.ModeHost || m == playmode.ModeOffline
}

// IsNeedDownloadFromRemote reports whether the main bundle of location
// is only available on the server.
func (p *Package) IsNeedDownloadFromRemote(location string) (bool, error) {
	m, err := p.activeManifest()
	if err != nil {
		return false, err
	}
	return p.IsAssetNeedDownloadFromRemote(m.ConvertLocationToAssetInfo(location, ""))
}

// IsAssetNeedDownloadFromRemote is IsNeedDownloadFromRemote for an
// already mapped asset. Invalid assets are logged and reported as local.
func (p *Package) IsAssetNeedDownloadFromRemote(info *manifest.AssetInfo) (bool, error) {
	s, err := p.checked(true)
	if err != nil {
		return false, err
	}
	if info.IsInvalid() {
		p.log.Warn(info.Error)
		return false, nil
	}
	b, err := s.BundleInfo(info)
	if err != nil {
		return false, err
	}
	return b.LoadMode == content.LoadFromRemote, nil
}

// GetAssetInfos returns the assets carrying any of tags.
func (p *Package) GetAssetInfos(tags ...string) ([]*manifest.AssetInfo, error) {
	m, err := p.activeManifest()
	if err != nil {
		return nil, err
	}
	return m.AssetsInfoByTags(tags), nil
}

// GetAssetInfo maps a location to an asset. The result may be invalid.
func (p *Package) GetAssetInfo(location string) (*manifest.AssetInfo, error) {
	m, err := p.activeManifest()
	if err != nil {
		return nil, err
	}
	return m.ConvertLocationToAssetInfo(location, ""), nil
}

// GetAssetInfoByGUID maps an asset GUID to an asset. The result may be
// invalid.
func (p *Package) GetAssetInfoByGUID(assetGUID string) (*manifest.AssetInfo, error) {
	m, err := p.activeManifest()
	if err != nil {
		return nil, err
	}
	return m.ConvertAssetGUIDToAssetInfo(assetGUID, ""), nil
}

// CheckLocationValid reports whether location maps to an asset.
func (p *Package) CheckLocationValid(location string) (bool, error) {
	m, err := p.activeManifest()
	if err != nil {
		return false, err
	}
	return m.TryMappingToAssetPath(location) != "", nil
}

// Resolve returns where the main bundle of an asset is read from.
func (p *Package) Resolve(info *manifest.AssetInfo) (*content.BundleInfo, error) {
	s, err := p.checked(true)
	if err != nil {
		return nil, err
	}
	return s.BundleInfo(info)
}

// ResolveDependencies returns where the dependency bundles of an asset are
// read from.
func (p *Package) ResolveDependencies(info *manifest.AssetInfo) ([]*content.BundleInfo, error) {
	s, err := p.checked(true)
	if err != nil {
		return nil, err
	}
	return s.DependBundleInfos(info)
}

// BundleName returns the name of the bundle at index id.
func (p *Package) BundleName(id int) (string, error) {
	s, err := p.checked(true)
	if err != nil {
		return "", err
	}
	return s.BundleName(id)
}

// IsReady reports whether the package can resolve assets.
func (p *Package) IsReady() bool {
	_, err := p.checked(true)
	return err == nil
}

// IsIncludeBundleFile reports whether the active manifest refers to a
// cached bundle. Simulated packages include everything.
func (p *Package) IsIncludeBundleFile(cacheGUID string) bool {
	s, err := p.checked(true)
	if err != nil {
		return false
	}
	if s.Mode() == playmode.ModeSimulate {
		return true
	}
	return s.ActiveManifest().IsIncludeBundleFile(cacheGUID)
}

func (p *Package) batchOptions(opts download.Options) download.Options {
	if opts.MaxRetryPerItem == nil {
		p.mu.Lock()
		opts.MaxRetryPerItem = download.Retries(p.params.DownloadFailedTryAgain)
		p.mu.Unlock()
	}
	return opts
}

// CreateResourceDownloader downloads the remote bundles carrying any of
// tags plus the untagged ones. Without tags every remote bundle is
// downloaded. A nil MaxRetryPerItem uses DownloadFailedTryAgain.
func (p *Package) CreateResourceDownloader(tags []string, opts download.Options) (*download.Batch, error) {
	s, err := p.checked(true)
	if err != nil {
		return nil, err
	}
	opts = p.batchOptions(opts)
	if len(tags) == 0 {
		return s.CreateDownloaderByAll(opts), nil
	}
	return s.CreateDownloaderByTags(tags, opts), nil
}

// CreateBundleDownloader downloads the remote bundles needed by locations.
// Locations that do not map to an asset are logged and skipped.
func (p *Package) CreateBundleDownloader(locations []string, opts download.Options) (*download.Batch, error) {
	m, err := p.activeManifest()
	if err != nil {
		return nil, err
	}
	infos := make([]*manifest.AssetInfo, 0, len(locations))
	for _, location := range locations {
		infos = append(infos, m.ConvertLocationToAssetInfo(location, ""))
	}
	return p.CreateBundleDownloaderByAssets(infos, opts)
}

// CreateBundleDownloaderByAssets is CreateBundleDownloader for mapped
// assets.
func (p *Package) CreateBundleDownloaderByAssets(infos []*manifest.AssetInfo, opts download.Options) (*download.Batch, error) {
	s, err := p.checked(true)
	if err != nil {
		return nil, err
	}
	return s.CreateDownloaderByPaths(infos, p.batchOptions(opts))
}

// CreateResourceUnpacker copies built-in bundles carrying any of tags
// into the cache. Without tags every built-in bundle is copied.
func (p *Package) CreateResourceUnpacker(tags []string, opts download.Options) (*download.Batch, error) {
	s, err := p.checked(true)
	if err != nil {
		return nil, err
	}
	opts = p.batchOptions(opts)
	if len(tags) == 0 {
		return s.CreateUnpackerByAll(opts)
	}
	return s.CreateUnpackerByTags(tags, opts)
}

// Retain marks a bundle as loaded. Retained bundles are never removed by
// ClearUnusedCacheFilesAsync.
func (p *Package) Retain(b *manifest.Bundle) {
	p.mu.Lock()
	p.retained[b.CacheGUID()]++
	p.mu.Unlock()
}

// Release undoes one Retain.
func (p *Package) Release(b *manifest.Bundle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	guid := b.CacheGUID()
	switch n := p.retained[guid]; {
	case n == 0:
		p.log.Warnf("bundle %s released more often than retained", b.BundleName)
	case n == 1:
		delete(p.retained, guid)
	default:
		p.retained[guid] = n - 1
	}
}

// RetainedCount returns the number of distinct retained bundles.
func (p *Package) RetainedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.retained)
}

func (p *Package) retainedSet() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]bool, len(p.retained))
	for guid := range p.retained {
		out[guid] = true
	}
	return out
}

// Destroy releases the package. It must be initialized again before use.
func (p *Package) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return
	}
	if p.services != nil && hasCache(p.services.Mode()) {
		p.engine.cache.Unmount(p.name)
	}
	p.reset()
	p.log.Debug("package destroyed")
}
