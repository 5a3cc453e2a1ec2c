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

package playmode

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sunny352/YooAsset/pkg/download"
	"github.com/sunny352/YooAsset/pkg/manifest"
	"github.com/sunny352/YooAsset/pkg/operation"
)

// VersionOperation asks the content server for the newest package version.
type VersionOperation struct {
	operation.Base

	c       *core
	query   func(context.Context) (string, error)
	step    versionStep
	queryOp *operation.Async[string]
	version string
}

type versionStep int

const (
	versionStepNone versionStep = iota
	versionStepQueryRemotePackageVersion
	versionStepDone
)

// newVersionOperation returns an operation running query. A nil query
// succeeds at once with the version of the active manifest.
func newVersionOperation(c *core, query func(context.Context) (string, error)) *VersionOperation {
	return &VersionOperation{c: c, query: query}
}

// PackageVersion returns the version found by a successful query.
func (op *VersionOperation) PackageVersion() string { return op.version }

func (op *VersionOperation) Start() {
	if op.query == nil {
		if m := op.c.ActiveManifest(); m != nil {
			op.version = m.PackageVersion
		}
		op.step = versionStepDone
		op.Succeed()
		return
	}
	op.step = versionStepQueryRemotePackageVersion
}

func (op *VersionOperation) Update() {
	if op.step == versionStepNone || op.step == versionStepDone {
		return
	}

	if op.step == versionStepQueryRemotePackageVersion {
		if op.queryOp == nil {
			op.queryOp = startAsync(op.c, op.query)
		}
		if !op.queryOp.IsDone() {
			return
		}
		op.step = versionStepDone
		if op.queryOp.Status() == operation.StatusSucceed {
			op.version = op.queryOp.Value()
			op.Succeed()
		} else {
			op.Fail(op.queryOp.Error())
		}
	}
}

type manifestStep int

const (
	manifestStepNone manifestStep = iota
	manifestStepCheckParams
	manifestStepCheckActiveManifest
	manifestStepTryLoadCacheManifest
	manifestStepDownloadManifest
	manifestStepLoadCacheManifest
	manifestStepLoadRemoteManifest
	manifestStepDone
)

// manifestFetch drives the steps that bring the manifest of a version into
// the sandbox and load it from there. Web mode loads it from the server
// without caching instead.
type manifestFetch struct {
	c       *core
	version string
	opts    UpdateOptions

	tryLoadOp  *operation.Async[*manifest.Manifest]
	downloadOp *operation.Async[struct{}]
	loadOp     *operation.Async[*manifest.Manifest]
	remoteOp   *operation.Async[*manifest.Manifest]
}

func (f *manifestFetch) loadCached(context.Context) (*manifest.Manifest, error) {
	m, err := f.c.cfg.Layout.LoadManifest(f.version)
	if err != nil {
		return nil, err
	}
	return f.check(m)
}

// check rejects a manifest that does not describe the requested package
// version.
func (f *manifestFetch) check(m *manifest.Manifest) (*manifest.Manifest, error) {
	if m.PackageName != f.c.cfg.PackageName {
		return nil, errors.Errorf("Package manifest belongs to package %s, not %s", m.PackageName, f.c.cfg.PackageName)
	}
	if m.PackageVersion != f.version {
		return nil, errors.Errorf("Package manifest version %s does not match the requested version %s", m.PackageVersion, f.version)
	}
	return m, nil
}

func (f *manifestFetch) download(ctx context.Context) (struct{}, error) {
	return f.c.downloadManifest(ctx, f.version, f.opts)
}

func (f *manifestFetch) loadRemote(ctx context.Context) (*manifest.Manifest, error) {
	data, err := f.c.fetchManifest(ctx, f.version, f.opts)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return nil, err
	}
	return f.check(m)
}

// advance runs the fetch steps starting at *step. It returns the loaded
// manifest, or an error message once a step failed. Both are zero while a
// sub-operation is in flight.
func (f *manifestFetch) advance(step *manifestStep) (*manifest.Manifest, string) {
	if *step == manifestStepTryLoadCacheManifest {
		if f.tryLoadOp == nil {
			f.tryLoadOp = startAsync(f.c, f.loadCached)
		}
		if !f.tryLoadOp.IsDone() {
			return nil, ""
		}
		if f.tryLoadOp.Status() == operation.StatusSucceed {
			*step = manifestStepDone
			return f.tryLoadOp.Value(), ""
		}
		*step = manifestStepDownloadManifest
	}

	if *step == manifestStepDownloadManifest {
		if f.downloadOp == nil {
			f.downloadOp = startAsync(f.c, f.download)
		}
		if !f.downloadOp.IsDone() {
			return nil, ""
		}
		if f.downloadOp.Status() != operation.StatusSucceed {
			*step = manifestStepDone
			return nil, f.downloadOp.Error()
		}
		*step = manifestStepLoadCacheManifest
	}

	if *step == manifestStepLoadCacheManifest {
		if f.loadOp == nil {
			f.loadOp = startAsync(f.c, f.loadCached)
		}
		if !f.loadOp.IsDone() {
			return nil, ""
		}
		*step = manifestStepDone
		if f.loadOp.Status() == operation.StatusSucceed {
			return f.loadOp.Value(), ""
		}
		return nil, f.loadOp.Error()
	}

	if *step == manifestStepLoadRemoteManifest {
		if f.remoteOp == nil {
			f.remoteOp = startAsync(f.c, f.loadRemote)
		}
		if !f.remoteOp.IsDone() {
			return nil, ""
		}
		*step = manifestStepDone
		if f.remoteOp.Status() == operation.StatusSucceed {
			return f.remoteOp.Value(), ""
		}
		return nil, f.remoteOp.Error()
	}
	return nil, ""
}

func checkParams(packageName, version string) string {
	if packageName == "" {
		return "Package name is null or empty."
	}
	if version == "" {
		return "Package version is null or empty."
	}
	return ""
}

// ManifestOperation activates the manifest of a version.
type ManifestOperation struct {
	operation.Base

	c        *core
	autoSave bool
	static   bool
	remote   bool
	step     manifestStep
	fetch    manifestFetch
}

func newManifestOperation(c *core, version string, autoSave bool, opts UpdateOptions) *ManifestOperation {
	return &ManifestOperation{
		c:        c,
		autoSave: autoSave,
		fetch:    manifestFetch{c: c, version: version, opts: opts},
	}
}

// newStaticManifestOperation returns an operation that succeeds at once,
// for modes whose manifest never changes.
func newStaticManifestOperation(c *core) *ManifestOperation {
	return &ManifestOperation{c: c, static: true}
}

// SavePackageVersion records the active version as the one to load at the
// next start.
func (op *ManifestOperation) SavePackageVersion() {
	if err := op.c.FlushManifestVersionFile(); err != nil {
		op.c.log.WithError(err).Warn("failed to save package version")
	}
}

func (op *ManifestOperation) Start() {
	if op.static {
		op.step = manifestStepDone
		op.Succeed()
		return
	}
	op.step = manifestStepCheckParams
}

func (op *ManifestOperation) Update() {
	if op.step == manifestStepNone || op.step == manifestStepDone {
		return
	}

	if op.step == manifestStepCheckParams {
		if msg := checkParams(op.c.cfg.PackageName, op.fetch.version); msg != "" {
			op.step = manifestStepDone
			op.Fail(msg)
			return
		}
		op.step = manifestStepCheckActiveManifest
	}

	if op.step == manifestStepCheckActiveManifest {
		if m := op.c.ActiveManifest(); m != nil && m.PackageVersion == op.fetch.version {
			op.step = manifestStepDone
			op.Succeed()
			return
		}
		if op.remote {
			op.step = manifestStepLoadRemoteManifest
		} else {
			op.step = manifestStepTryLoadCacheManifest
		}
	}

	m, msg := op.fetch.advance(&op.step)
	if msg != "" {
		op.Fail(msg)
		return
	}
	if m != nil {
		op.c.activate(m)
		if op.autoSave {
			op.SavePackageVersion()
		}
		op.Succeed()
	}
}

// PreDownloadOperation loads the manifest of a version without activating
// it, so that its content can be downloaded ahead of an update.
type PreDownloadOperation struct {
	operation.Base

	c        *core
	static   bool
	step     manifestStep
	fetch    manifestFetch
	manifest *manifest.Manifest
}

func newPreDownloadOperation(c *core, version string, opts UpdateOptions) *PreDownloadOperation {
	return &PreDownloadOperation{c: c, fetch: manifestFetch{c: c, version: version, opts: opts}}
}

func newStaticPreDownloadOperation(c *core) *PreDownloadOperation {
	return &PreDownloadOperation{c: c, static: true}
}

// Manifest returns the loaded manifest, or nil.
func (op *PreDownloadOperation) Manifest() *manifest.Manifest { return op.manifest }

func (op *PreDownloadOperation) Start() {
	if op.static {
		op.step = manifestStepDone
		op.Succeed()
		return
	}
	op.step = manifestStepCheckParams
}

func (op *PreDownloadOperation) Update() {
	if op.step == manifestStepNone || op.step == manifestStepDone {
		return
	}

	if op.step == manifestStepCheckParams {
		if msg := checkParams(op.c.cfg.PackageName, op.fetch.version); msg != "" {
			op.step = manifestStepDone
			op.Fail(msg)
			return
		}
		op.step = manifestStepCheckActiveManifest
	}

	if op.step == manifestStepCheckActiveManifest {
		if m := op.c.ActiveManifest(); m != nil && m.PackageVersion == op.fetch.version {
			op.manifest = m
			op.step = manifestStepDone
			op.Succeed()
			return
		}
		op.step = manifestStepTryLoadCacheManifest
	}

	m, msg := op.fetch.advance(&op.step)
	if msg != "" {
		op.Fail(msg)
		return
	}
	if m != nil {
		op.manifest = m
		op.Succeed()
	}
}

func (op *PreDownloadOperation) ready() bool {
	if op.Status() != operation.StatusSucceed || op.manifest == nil {
		op.c.log.Warn("PreDownloadContentOperation status is not succeed !")
		return false
	}
	return true
}

// CreateDownloaderByAll downloads every remote bundle of the loaded manifest.
func (op *PreDownloadOperation) CreateDownloaderByAll(opts download.Options) *download.Batch {
	if !op.ready() {
		return op.c.emptyDownloader(opts)
	}
	return op.c.newBatch(download.KindDownload, op.c.resolver.DownloadListByAll(op.manifest), opts)
}

// CreateDownloaderByTags downloads the untagged remote bundles and those
// sharing a tag with tags.
func (op *PreDownloadOperation) CreateDownloaderByTags(tags []string, opts download.Options) *download.Batch {
	if !op.ready() {
		return op.c.emptyDownloader(opts)
	}
	return op.c.newBatch(download.KindDownload, op.c.resolver.DownloadListByTags(op.manifest, tags), opts)
}

// CreateDownloaderByPaths downloads the bundles needed by locations.
func (op *PreDownloadOperation) CreateDownloaderByPaths(locations []string, opts download.Options) (*download.Batch, error) {
	if !op.ready() {
		return op.c.emptyDownloader(opts), nil
	}
	assets := make([]*manifest.AssetInfo, 0, len(locations))
	for _, location := range locations {
		assets = append(assets, op.manifest.ConvertLocationToAssetInfo(location, ""))
	}
	list, err := op.c.resolver.DownloadListByPaths(op.manifest, assets)
	if err != nil {
		return nil, err
	}
	return op.c.newBatch(download.KindDownload, list, opts), nil
}
