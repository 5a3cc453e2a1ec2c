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
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sunny352/YooAsset/internal/fileutil"
	"github.com/sunny352/YooAsset/internal/logging"
	"github.com/sunny352/YooAsset/internal/monitoring"
	"github.com/sunny352/YooAsset/pkg/cacheindex"
	"github.com/sunny352/YooAsset/pkg/cacheindex/driver"
	"github.com/sunny352/YooAsset/pkg/content"
	"github.com/sunny352/YooAsset/pkg/download"
	"github.com/sunny352/YooAsset/pkg/getter"
	"github.com/sunny352/YooAsset/pkg/manifest"
	"github.com/sunny352/YooAsset/pkg/operation"
	"github.com/sunny352/YooAsset/pkg/persistent"
	"github.com/sunny352/YooAsset/pkg/query"
	"github.com/sunny352/YooAsset/pkg/remote"
)

// Mode selects a play mode.
type Mode int

const (
	ModeSimulate Mode = iota
	ModeOffline
	ModeHost
	ModeWeb
)

var modeNames = map[Mode]string{
	ModeSimulate: "simulate",
	ModeOffline:  "offline",
	ModeHost:     "host",
	ModeWeb:      "web",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, errors.Errorf("unknown play mode %q", s)
}

// ErrNoActiveManifest is returned by lookups before a manifest is active.
var ErrNoActiveManifest = errors.New("Not found active manifest !")

// UpdateOptions tune the network steps of update operations.
type UpdateOptions struct {
	// AppendTimestamp adds a cache-busting query to every URL.
	AppendTimestamp bool
	// Timeout bounds each attempt.
	Timeout time.Duration
	// Retries is the number of attempts after the first one.
	Retries int
}

func (o UpdateOptions) fetchOptions() remote.FetchOptions {
	return remote.FetchOptions{Timeout: o.Timeout, Retries: o.Retries, AppendTimestamp: o.AppendTimestamp}
}

// Config carries the collaborators of a play mode.
type Config struct {
	PackageName string
	// Ctx bounds every I/O call started by the mode. Defaults to Background.
	Ctx       context.Context
	Scheduler *operation.Scheduler
	Cache     *cacheindex.Cache
	Layout    *persistent.Persistent
	// Driver stores cache records. Defaults to records on disk.
	Driver    driver.Driver
	Builtin   query.BuiltinQuery
	Delivery  query.DeliveryQuery
	Remote    remote.Services
	Providers getter.Providers
	Metrics   *monitoring.Metrics
	// VerifyLevel is used when the cache is scanned at initialization.
	VerifyLevel cacheindex.VerifyLevel

	// SimulateManifestPath is the manifest served by simulate mode.
	SimulateManifestPath string
	// SimulateManifest, when set, is served by simulate mode instead of
	// SimulateManifestPath. A private copy is taken.
	SimulateManifest *manifest.Manifest

	Log logrus.FieldLogger
}

// Services is implemented by every play mode.
type Services interface {
	Mode() Mode
	PackageName() string
	ActiveManifest() *manifest.Manifest
	FlushManifestVersionFile() error
	Resolver() *content.Resolver

	Initialize() *InitializationOperation
	UpdatePackageVersion(opts UpdateOptions) *VersionOperation
	UpdatePackageManifest(version string, autoSaveVersion bool, opts UpdateOptions) *ManifestOperation
	PreDownloadContent(version string, opts UpdateOptions) *PreDownloadOperation

	CreateDownloaderByAll(opts download.Options) *download.Batch
	CreateDownloaderByTags(tags []string, opts download.Options) *download.Batch
	CreateDownloaderByPaths(assets []*manifest.AssetInfo, opts download.Options) (*download.Batch, error)
	CreateUnpackerByAll(opts download.Options) (*download.Batch, error)
	CreateUnpackerByTags(tags []string, opts download.Options) (*download.Batch, error)

	BundleInfo(asset *manifest.AssetInfo) (*content.BundleInfo, error)
	DependBundleInfos(asset *manifest.AssetInfo) ([]*content.BundleInfo, error)
	BundleName(id int) (string, error)
	IsServicesValid() bool
}

// New returns the services of mode.
func New(mode Mode, cfg Config) (Services, error) {
	if cfg.PackageName == "" {
		return nil, errors.New("Package name is null or empty.")
	}
	if cfg.Scheduler == nil {
		return nil, errors.New("scheduler is nil")
	}
	if cfg.Ctx == nil {
		cfg.Ctx = context.Background()
	}
	if cfg.Log == nil {
		cfg.Log = logging.Discard()
	}
	if cfg.Providers == nil {
		cfg.Providers = getter.All()
	}
	if cfg.Delivery == nil {
		cfg.Delivery = query.NoDelivery{}
	}
	if cfg.Layout == nil && mode != ModeSimulate {
		return nil, errors.Errorf("%s mode needs a storage layout", mode)
	}
	if cfg.Builtin == nil && cfg.Layout != nil {
		cfg.Builtin = query.DirBuiltin{Root: cfg.Layout.BuiltinRoot()}
	}
	if (mode == ModeHost || mode == ModeWeb) && cfg.Remote == nil {
		return nil, errors.New("IRemoteServices is null.")
	}
	if (mode == ModeHost || mode == ModeOffline) && cfg.Cache == nil {
		return nil, errors.Errorf("%s mode needs a cache index", mode)
	}

	c := &core{cfg: cfg}
	c.log = cfg.Log.WithFields(logrus.Fields{"package": cfg.PackageName, "mode": mode.String()})
	c.resolver = &content.Resolver{
		PackageName: cfg.PackageName,
		Layout:      cfg.Layout,
		Log:         c.log,
	}

	switch mode {
	case ModeSimulate:
		if cfg.SimulateManifestPath == "" && cfg.SimulateManifest == nil {
			return nil, errors.New("SimulateManifestFilePath is null or empty.")
		}
		c.resolver.Builtin = query.AllBuiltin{}
		return &simulateMode{core: c}, nil
	case ModeOffline:
		c.mount()
		c.resolver.Cache = cfg.Cache
		c.resolver.Builtin = query.AllBuiltin{}
		return &offlineMode{core: c}, nil
	case ModeHost:
		c.mount()
		c.resolver.Cache = cfg.Cache
		c.resolver.Builtin = cfg.Builtin
		c.resolver.Delivery = cfg.Delivery
		c.resolver.Remote = cfg.Remote
		c.saveVersion = true
		return &hostMode{core: c}, nil
	case ModeWeb:
		c.resolver.Builtin = cfg.Builtin
		c.resolver.Remote = cfg.Remote
		return &webMode{core: c}, nil
	}
	return nil, errors.Errorf("unknown play mode %d", int(mode))
}

// core holds what all modes share.
type core struct {
	cfg Config
	log logrus.FieldLogger
	// saveVersion enables the last-known-good version record.
	saveVersion bool

	active   atomic.Pointer[manifest.Manifest]
	resolver *content.Resolver
}

func (c *core) mount() {
	d := c.cfg.Driver
	if d == nil {
		d = driver.NewDisk(c.cfg.Layout, c.log)
	}
	c.cfg.Cache.Mount(c.cfg.Layout, d)
}

func (c *core) PackageName() string { return c.cfg.PackageName }

func (c *core) ActiveManifest() *manifest.Manifest { return c.active.Load() }

func (c *core) activate(m *manifest.Manifest) {
	c.active.Store(m)
	c.log.Debugf("manifest %s activated", m.PackageVersion)
}

func (c *core) Resolver() *content.Resolver { return c.resolver }

// FlushManifestVersionFile records the active version as the one to load
// at the next start. Only host mode keeps such a record.
func (c *core) FlushManifestVersionFile() error {
	m := c.active.Load()
	if !c.saveVersion || m == nil {
		return nil
	}
	return c.cfg.Layout.SaveVersionRecord(m.PackageVersion)
}

func (c *core) IsServicesValid() bool { return c.active.Load() != nil }

func (c *core) manifestOrErr() (*manifest.Manifest, error) {
	m := c.active.Load()
	if m == nil {
		return nil, ErrNoActiveManifest
	}
	return m, nil
}

func (c *core) BundleInfo(asset *manifest.AssetInfo) (*content.BundleInfo, error) {
	m, err := c.manifestOrErr()
	if err != nil {
		return nil, err
	}
	return c.resolver.ResolveAsset(m, asset)
}

func (c *core) DependBundleInfos(asset *manifest.AssetInfo) ([]*content.BundleInfo, error) {
	m, err := c.manifestOrErr()
	if err != nil {
		return nil, err
	}
	return c.resolver.ResolveDependencies(m, asset)
}

func (c *core) BundleName(id int) (string, error) {
	m, err := c.manifestOrErr()
	if err != nil {
		return "", err
	}
	return m.BundleName(id)
}

func (c *core) newBatch(kind string, list []*content.BundleInfo, opts download.Options) *download.Batch {
	return download.NewBatch(download.Config{
		PackageName: c.cfg.PackageName,
		Kind:        kind,
		Scheduler:   c.cfg.Scheduler,
		Cache:       c.cfg.Cache,
		Providers:   c.cfg.Providers,
		Metrics:     c.cfg.Metrics,
		Log:         c.log,
	}, list, opts)
}

func (c *core) emptyDownloader(opts download.Options) *download.Batch {
	return c.newBatch(download.KindDownload, nil, opts)
}

func (c *core) emptyUnpacker(opts download.Options) *download.Batch {
	return c.newBatch(download.KindUnpack, nil, opts)
}

func (c *core) start(op operation.Operation) {
	c.cfg.Scheduler.Start(op)
}

func startAsync[T any](c *core, fn func(context.Context) (T, error)) *operation.Async[T] {
	op := operation.NewAsync(c.cfg.Ctx, fn)
	c.start(op)
	return op
}

// readBuiltinVersion reads the version file shipped with the application.
func (c *core) readBuiltinVersion(context.Context) (string, error) {
	path := c.cfg.Layout.BuiltinVersionFilePath()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", errors.Errorf("Buildin package version file is empty : %s", path)
	}
	return v, nil
}

// readBuiltinManifest reads the manifest shipped with the application and
// checks it against its hash file when one is shipped too.
func (c *core) readBuiltinManifest(version string) ([]byte, error) {
	path, err := c.cfg.Layout.BuiltinManifestFilePath(version)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	hashPath, err := c.cfg.Layout.BuiltinHashFilePath(version)
	if err != nil {
		return nil, err
	}
	expect, err := os.ReadFile(hashPath)
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(expect)) != fileutil.HashBytes(data) {
		return nil, errors.Errorf("Failed to verify buildin package manifest file : %s", path)
	}
	return data, nil
}

func (c *core) loadBuiltinManifest(version string) (*manifest.Manifest, error) {
	data, err := c.readBuiltinManifest(version)
	if err != nil {
		return nil, err
	}
	return manifest.Parse(data)
}

// unpackBuiltinManifest copies the built-in manifest into the sandbox.
func (c *core) unpackBuiltinManifest(version string) error {
	data, err := c.readBuiltinManifest(version)
	if err != nil {
		return err
	}
	return c.cfg.Layout.SaveManifest(version, data)
}

// fetchManifest downloads and verifies the manifest of a version.
func (c *core) fetchManifest(ctx context.Context, version string, opts UpdateOptions) ([]byte, error) {
	hashName := manifest.HashFileName(c.cfg.PackageName, version)
	hash, err := remote.Fetch(ctx, c.cfg.Providers, c.cfg.Remote, hashName, opts.fetchOptions())
	if err != nil {
		return nil, err
	}
	fileName := manifest.FileName(c.cfg.PackageName, version)
	buf, err := remote.Fetch(ctx, c.cfg.Providers, c.cfg.Remote, fileName, opts.fetchOptions())
	if err != nil {
		return nil, err
	}
	data := buf.Bytes()
	if strings.TrimSpace(hash.String()) != fileutil.HashBytes(data) {
		return nil, errors.Errorf("Failed to verify package manifest file : %s", fileName)
	}
	return data, nil
}

// downloadManifest downloads the manifest of a version into the sandbox.
func (c *core) downloadManifest(ctx context.Context, version string, opts UpdateOptions) (struct{}, error) {
	data, err := c.fetchManifest(ctx, version, opts)
	if err != nil {
		return struct{}{}, err
	}
	return struct{}{}, c.cfg.Layout.SaveManifest(version, data)
}
