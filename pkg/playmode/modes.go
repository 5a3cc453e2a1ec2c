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

	"github.com/sunny352/YooAsset/pkg/download"
	"github.com/sunny352/YooAsset/pkg/manifest"
)

func (c *core) initialize(mode Mode) *InitializationOperation {
	op := newInitializationOperation(c, mode)
	c.start(op)
	return op
}

func (c *core) staticVersion() *VersionOperation {
	op := newVersionOperation(c, nil)
	c.start(op)
	return op
}

func (c *core) remoteVersion(opts UpdateOptions) *VersionOperation {
	op := newVersionOperation(c, func(ctx context.Context) (string, error) {
		return c.cfg.Remote.QueryLatestVersion(ctx, c.cfg.PackageName, opts.AppendTimestamp, opts.Timeout, opts.Retries)
	})
	c.start(op)
	return op
}

func (c *core) staticManifest() *ManifestOperation {
	op := newStaticManifestOperation(c)
	c.start(op)
	return op
}

func (c *core) staticPreDownload() *PreDownloadOperation {
	op := newStaticPreDownloadOperation(c)
	c.start(op)
	return op
}

// activeOrWarn returns the active manifest, logging when there is none.
func (c *core) activeOrWarn() *manifest.Manifest {
	m := c.active.Load()
	if m == nil {
		c.log.Warn(ErrNoActiveManifest.Error())
	}
	return m
}

func (c *core) unpackerByAll(opts download.Options) (*download.Batch, error) {
	m := c.activeOrWarn()
	if m == nil {
		return c.emptyUnpacker(opts), nil
	}
	list, err := c.resolver.UnpackListByAll(m)
	if err != nil {
		return nil, err
	}
	return c.newBatch(download.KindUnpack, list, opts), nil
}

func (c *core) unpackerByTags(tags []string, opts download.Options) (*download.Batch, error) {
	m := c.activeOrWarn()
	if m == nil {
		return c.emptyUnpacker(opts), nil
	}
	list, err := c.resolver.UnpackListByTags(m, tags)
	if err != nil {
		return nil, err
	}
	return c.newBatch(download.KindUnpack, list, opts), nil
}

// simulateMode serves a manifest built by tooling. Nothing is downloaded
// or unpacked.
type simulateMode struct {
	*core
}

func (s *simulateMode) Mode() Mode { return ModeSimulate }

func (s *simulateMode) Initialize() *InitializationOperation { return s.initialize(ModeSimulate) }

func (s *simulateMode) UpdatePackageVersion(UpdateOptions) *VersionOperation {
	return s.staticVersion()
}

func (s *simulateMode) UpdatePackageManifest(string, bool, UpdateOptions) *ManifestOperation {
	return s.staticManifest()
}

func (s *simulateMode) PreDownloadContent(string, UpdateOptions) *PreDownloadOperation {
	return s.staticPreDownload()
}

func (s *simulateMode) CreateDownloaderByAll(opts download.Options) *download.Batch {
	return s.emptyDownloader(opts)
}

func (s *simulateMode) CreateDownloaderByTags(_ []string, opts download.Options) *download.Batch {
	return s.emptyDownloader(opts)
}

func (s *simulateMode) CreateDownloaderByPaths(_ []*manifest.AssetInfo, opts download.Options) (*download.Batch, error) {
	return s.emptyDownloader(opts), nil
}

func (s *simulateMode) CreateUnpackerByAll(opts download.Options) (*download.Batch, error) {
	return s.emptyUnpacker(opts), nil
}

func (s *simulateMode) CreateUnpackerByTags(_ []string, opts download.Options) (*download.Batch, error) {
	return s.emptyUnpacker(opts), nil
}

// offlineMode serves the manifest shipped with the application. Built-in
// bundles may be unpacked into the cache.
type offlineMode struct {
	*core
}

func (o *offlineMode) Mode() Mode { return ModeOffline }

func (o *offlineMode) Initialize() *InitializationOperation { return o.initialize(ModeOffline) }

func (o *offlineMode) UpdatePackageVersion(UpdateOptions) *VersionOperation {
	return o.staticVersion()
}

func (o *offlineMode) UpdatePackageManifest(string, bool, UpdateOptions) *ManifestOperation {
	return o.staticManifest()
}

func (o *offlineMode) PreDownloadContent(string, UpdateOptions) *PreDownloadOperation {
	return o.staticPreDownload()
}

func (o *offlineMode) CreateDownloaderByAll(opts download.Options) *download.Batch {
	return o.emptyDownloader(opts)
}

func (o *offlineMode) CreateDownloaderByTags(_ []string, opts download.Options) *download.Batch {
	return o.emptyDownloader(opts)
}

func (o *offlineMode) CreateDownloaderByPaths(_ []*manifest.AssetInfo, opts download.Options) (*download.Batch, error) {
	return o.emptyDownloader(opts), nil
}

func (o *offlineMode) CreateUnpackerByAll(opts download.Options) (*download.Batch, error) {
	return o.unpackerByAll(opts)
}

func (o *offlineMode) CreateUnpackerByTags(tags []string, opts download.Options) (*download.Batch, error) {
	return o.unpackerByTags(tags, opts)
}

// hostMode keeps the package in sync with a content server.
type hostMode struct {
	*core
}

func (h *hostMode) Mode() Mode { return ModeHost }

func (h *hostMode) Initialize() *InitializationOperation { return h.initialize(ModeHost) }

func (h *hostMode) UpdatePackageVersion(opts UpdateOptions) *VersionOperation {
	return h.remoteVersion(opts)
}

func (h *hostMode) UpdatePackageManifest(version string, autoSaveVersion bool, opts UpdateOptions) *ManifestOperation {
	op := newManifestOperation(h.core, version, autoSaveVersion, opts)
	h.start(op)
	return op
}

func (h *hostMode) PreDownloadContent(version string, opts UpdateOptions) *PreDownloadOperation {
	op := newPreDownloadOperation(h.core, version, opts)
	h.start(op)
	return op
}

func (h *hostMode) CreateDownloaderByAll(opts download.Options) *download.Batch {
	m := h.activeOrWarn()
	if m == nil {
		return h.emptyDownloader(opts)
	}
	return h.newBatch(download.KindDownload, h.resolver.DownloadListByAll(m), opts)
}

func (h *hostMode) CreateDownloaderByTags(tags []string, opts download.Options) *download.Batch {
	m := h.activeOrWarn()
	if m == nil {
		return h.emptyDownloader(opts)
	}
	return h.newBatch(download.KindDownload, h.resolver.DownloadListByTags(m, tags), opts)
}

func (h *hostMode) CreateDownloaderByPaths(assets []*manifest.AssetInfo, opts download.Options) (*download.Batch, error) {
	m := h.activeOrWarn()
	if m == nil {
		return h.emptyDownloader(opts), nil
	}
	list, err := h.resolver.DownloadListByPaths(m, assets)
	if err != nil {
		return nil, err
	}
	return h.newBatch(download.KindDownload, list, opts), nil
}

func (h *hostMode) CreateUnpackerByAll(opts download.Options) (*download.Batch, error) {
	return h.unpackerByAll(opts)
}

func (h *hostMode) CreateUnpackerByTags(tags []string, opts download.Options) (*download.Batch, error) {
	return h.unpackerByTags(tags, opts)
}

// webMode reads from the application and the server. It keeps no cache, so
// there is nothing to download or unpack ahead of time.
type webMode struct {
	*core
}

func (w *webMode) Mode() Mode { return ModeWeb }

func (w *webMode) Initialize() *InitializationOperation { return w.initialize(ModeWeb) }

func (w *webMode) UpdatePackageVersion(opts UpdateOptions) *VersionOperation {
	return w.remoteVersion(opts)
}

func (w *webMode) UpdatePackageManifest(version string, _ bool, opts UpdateOptions) *ManifestOperation {
	op := newManifestOperation(w.core, version, false, opts)
	op.remote = true
	w.start(op)
	return op
}

func (w *webMode) PreDownloadContent(string, UpdateOptions) *PreDownloadOperation {
	return w.staticPreDownload()
}

func (w *webMode) CreateDownloaderByAll(opts download.Options) *download.Batch {
	return w.emptyDownloader(opts)
}

func (w *webMode) CreateDownloaderByTags(_ []string, opts download.Options) *download.Batch {
	return w.emptyDownloader(opts)
}

func (w *webMode) CreateDownloaderByPaths(_ []*manifest.AssetInfo, opts download.Options) (*download.Batch, error) {
	return w.emptyDownloader(opts), nil
}

func (w *webMode) CreateUnpackerByAll(opts download.Options) (*download.Batch, error) {
	return w.emptyUnpacker(opts), nil
}

func (w *webMode) CreateUnpackerByTags(_ []string, opts download.Options) (*download.Batch, error) {
	return w.emptyUnpacker(opts), nil
}
