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
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunny352/YooAsset/internal/fileutil"
	"github.com/sunny352/YooAsset/pkg/content"
	"github.com/sunny352/YooAsset/pkg/download"
	"github.com/sunny352/YooAsset/pkg/manifest"
	"github.com/sunny352/YooAsset/pkg/operation"
	"github.com/sunny352/YooAsset/pkg/playmode"
	"github.com/sunny352/YooAsset/pkg/remote"
)

// contents maps bundle names to their bytes in one version.
type contents map[string]string

var v1 = contents{"core.bundle": "core", "dlc1.bundle": "dlc1-v1", "dlc2.bundle": "dlc2-v1"}
var v2 = contents{"core.bundle": "core", "dlc1.bundle": "dlc1-v2", "dlc2.bundle": "dlc2-v2"}

func buildManifest(t *testing.T, version string, c contents) ([]byte, map[string][]byte) {
	t.Helper()
	bundle := func(name string, tags ...string) *manifest.Bundle {
		return &manifest.Bundle{
			BundleName: name,
			FileHash:   fileutil.HashBytes([]byte(c[name])),
			FileSize:   int64(len(c[name])),
			Tags:       tags,
		}
	}
	m := &manifest.Manifest{
		FileVersion:      manifest.FileVersion,
		IncludeAssetGUID: true,
		OutputNameStyle:  manifest.StyleBundleNameHashName,
		PackageName:      "Demo",
		PackageVersion:   version,
		AssetList: []*manifest.Asset{
			{AssetPath: "Assets/UI/main.prefab", AssetGUID: "a1", BundleID: 0, DependIDs: []int{1}},
			{AssetPath: "Assets/DLC1/boss.prefab", AssetTags: []string{"dlc1"}, BundleID: 1, DependIDs: []int{0}},
			{AssetPath: "Assets/DLC2/map.asset", AssetTags: []string{"dlc2"}, BundleID: 2},
		},
		BundleList: []*manifest.Bundle{
			bundle("core.bundle"),
			bundle("dlc1.bundle", "dlc1"),
			bundle("dlc2.bundle", "dlc2"),
		},
	}
	data, err := m.Marshal()
	require.NoError(t, err)
	parsed, err := manifest.Parse(data)
	require.NoError(t, err)
	files := map[string][]byte{}
	for _, b := range parsed.BundleList {
		files[b.FileName] = []byte(c[b.BundleName])
	}
	return data, files
}

type server struct {
	*httptest.Server
	mu       sync.Mutex
	files    map[string][]byte
	requests map[string]int
}

func newServer(t *testing.T) *server {
	s := &server{files: map[string][]byte{}, requests: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Base(r.URL.Path)
		s.mu.Lock()
		s.requests[name]++
		data, ok := s.files[name]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *server) publish(t *testing.T, version string, c contents) {
	data, files := buildManifest(t, version, c)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[manifest.VersionFileName("Demo")] = []byte(version)
	s.files[manifest.FileName("Demo", version)] = data
	s.files[manifest.HashFileName("Demo", version)] = []byte(fileutil.HashBytes(data))
	for name, body := range files {
		s.files[name] = body
	}
}

type fixture struct {
	t      *testing.T
	engine *Engine
	hook   *logtest.Hook
	srv    *server
	dir    string
}

func newFixture(t *testing.T) *fixture {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	e := NewEngine(logger)
	t.Cleanup(e.Destroy)
	return &fixture{t: t, engine: e, hook: hook, srv: newServer(t), dir: t.TempDir()}
}

func (f *fixture) params(mode playmode.Mode) Parameters {
	p := DefaultParameters(mode)
	p.BuiltinRoot = filepath.Join(f.dir, "builtin")
	p.SandboxRoot = filepath.Join(f.dir, "sandbox")
	p.Remote = remote.NewHostServices(f.srv.URL, "", nil)
	return p
}

func (f *fixture) run(op operation.Operation) {
	f.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(f.t, f.engine.Run(ctx, op))
	require.Equal(f.t, operation.StatusSucceed, op.Status(), op.Error())
}

// hostPackage returns an initialized host package with version 1.2.0 active.
func (f *fixture) hostPackage() *Package {
	f.srv.publish(f.t, "1.2.0", v1)
	pkg, err := f.engine.CreatePackage("Demo")
	require.NoError(f.t, err)
	initOp, err := pkg.InitializeAsync(f.params(playmode.ModeHost))
	require.NoError(f.t, err)
	f.run(initOp)

	manifestOp, err := pkg.UpdatePackageManifestAsync("1.2.0", true, playmode.UpdateOptions{})
	require.NoError(f.t, err)
	f.run(manifestOp)
	return pkg
}

func (f *fixture) warnings() []string {
	var out []string
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			out = append(out, e.Message)
		}
	}
	return out
}

func TestEnginePackages(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreatePackage("")
	assert.Error(t, err)

	pkg, err := f.engine.CreatePackage("Demo")
	require.NoError(t, err)
	assert.Equal(t, "Demo", pkg.Name())
	_, err = f.engine.CreatePackage("Demo")
	assert.EqualError(t, err, "Package Demo already existed !")

	got, err := f.engine.GetPackage("Demo")
	require.NoError(t, err)
	assert.Same(t, pkg, got)
	assert.True(t, f.engine.ContainsPackage("Demo"))

	_, err = f.engine.GetPackage("Other")
	assert.EqualError(t, err, "Not found assets package : Other")
	assert.Nil(t, f.engine.TryGetPackage("Other"))

	require.NoError(t, f.engine.DestroyPackage("Demo"))
	assert.False(t, f.engine.ContainsPackage("Demo"))
	assert.Error(t, f.engine.DestroyPackage("Demo"))
}

func TestNotInitialized(t *testing.T) {
	f := newFixture(t)
	pkg, err := f.engine.CreatePackage("Demo")
	require.NoError(t, err)

	_, err = pkg.GetPackageVersion()
	assert.Equal(t, ErrNotInitialized, err)
	_, err = pkg.UpdatePackageVersionAsync(playmode.UpdateOptions{})
	assert.Equal(t, ErrNotInitialized, err)
	_, err = pkg.ClearAllCacheFilesAsync()
	assert.Equal(t, ErrNotInitialized, err)
	assert.False(t, pkg.IsReady())
	assert.Equal(t, operation.StatusNone, pkg.InitializeStatus())
}

func TestInitializeOnce(t *testing.T) {
	f := newFixture(t)
	pkg, err := f.engine.CreatePackage("Demo")
	require.NoError(t, err)

	params := f.params(playmode.ModeHost)
	params.DownloadFailedTryAgain = 0
	op, err := pkg.InitializeAsync(params)
	require.NoError(t, err)
	assert.Contains(t, f.warnings(), "DownloadFailedTryAgain minimum value is 1")

	_, err = pkg.InitializeAsync(params)
	assert.EqualError(t, err, "ResourcePackage is initialized yet.")

	f.run(op)
	assert.Equal(t, operation.StatusSucceed, pkg.InitializeStatus())
	// host mode starts without a manifest when the application ships none
	assert.False(t, pkg.IsReady())
	_, err = pkg.GetPackageVersion()
	assert.Equal(t, playmode.ErrNoActiveManifest, err)
}

func TestInitializeAgainAfterFailure(t *testing.T) {
	f := newFixture(t)
	pkg, err := f.engine.CreatePackage("Demo")
	require.NoError(t, err)

	op, err := pkg.InitializeAsync(f.params(playmode.ModeOffline))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, f.engine.Run(ctx, op))
	require.Equal(t, operation.StatusFailed, pkg.InitializeStatus())

	_, err = pkg.GetPackageVersion()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Package initialize failed ! ")

	// ship a built-in copy and try again
	data, _ := buildManifest(t, "1.0.0", v1)
	root := filepath.Join(f.dir, "builtin", "Demo")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, manifest.VersionFileName("Demo")), []byte("1.0.0"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, manifest.FileName("Demo", "1.0.0")), data, 0644))

	op, err = pkg.InitializeAsync(f.params(playmode.ModeOffline))
	require.NoError(t, err)
	f.run(op)
	version, err := pkg.GetPackageVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version)
}

func TestHostPackage(t *testing.T) {
	f := newFixture(t)
	pkg := f.hostPackage()
	require.True(t, pkg.IsReady())

	version, err := pkg.GetPackageVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", version)

	sandbox, err := pkg.GetPackageSandboxRootDirectory()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "sandbox"), sandbox)
	builtin, err := pkg.GetPackageBuiltinRootDirectory()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "builtin"), builtin)

	valid, err := pkg.CheckLocationValid("Assets/UI/main")
	require.NoError(t, err)
	assert.True(t, valid)
	valid, err = pkg.CheckLocationValid("Assets/UI/missing")
	require.NoError(t, err)
	assert.False(t, valid)

	infos, err := pkg.GetAssetInfos("dlc1")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "Assets/DLC1/boss.prefab", infos[0].AssetPath())

	byGUID, err := pkg.GetAssetInfoByGUID("a1")
	require.NoError(t, err)
	assert.Equal(t, "Assets/UI/main.prefab", byGUID.AssetPath())

	need, err := pkg.IsNeedDownloadFromRemote("Assets/UI/main.prefab")
	require.NoError(t, err)
	assert.True(t, need)

	need, err = pkg.IsNeedDownloadFromRemote("nowhere")
	require.NoError(t, err)
	assert.False(t, need)
	assert.Contains(t, f.warnings(), "The location is invalid : nowhere")

	batch, err := pkg.CreateBundleDownloader([]string{"Assets/UI/main.prefab"}, download.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.TotalCount())
	batch.Begin()
	f.run(batch)

	info, err := pkg.GetAssetInfo("Assets/UI/main.prefab")
	require.NoError(t, err)
	need, err = pkg.IsAssetNeedDownloadFromRemote(info)
	require.NoError(t, err)
	assert.False(t, need)

	main, err := pkg.Resolve(info)
	require.NoError(t, err)
	assert.Equal(t, content.LoadFromCache, main.LoadMode)
	assert.Equal(t, "core.bundle", main.Bundle.BundleName)

	deps, err := pkg.ResolveDependencies(info)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "dlc1.bundle", deps[0].Bundle.BundleName)

	name, err := pkg.BundleName(2)
	require.NoError(t, err)
	assert.Equal(t, "dlc2.bundle", name)

	m, err := pkg.ActiveManifest()
	require.NoError(t, err)
	dlc2, err := pkg.ResolveBundle(m.BundleList[2])
	require.NoError(t, err)
	assert.Equal(t, content.LoadFromRemote, dlc2.LoadMode)

	rest, err := pkg.CreateResourceDownloader(nil, download.Options{})
	require.NoError(t, err)
	require.Equal(t, 1, rest.TotalCount())
	assert.Equal(t, "dlc2.bundle", rest.List()[0].Bundle.BundleName)

	unpacker, err := pkg.CreateResourceUnpacker(nil, download.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, unpacker.TotalCount())
}

func TestVersionQuery(t *testing.T) {
	f := newFixture(t)
	pkg := f.hostPackage()
	f.srv.publish(t, "1.3.0", v2)

	op, err := pkg.UpdatePackageVersionAsync(playmode.UpdateOptions{AppendTimestamp: true})
	require.NoError(t, err)
	f.run(op)
	assert.Equal(t, "1.3.0", op.PackageVersion())
}

func TestClearUnusedKeepsRetainedBundles(t *testing.T) {
	f := newFixture(t)
	pkg := f.hostPackage()

	all, err := pkg.CreateResourceDownloader(nil, download.Options{})
	require.NoError(t, err)
	all.Begin()
	f.run(all)

	old, err := pkg.GetAssetInfo("Assets/DLC2/map.asset")
	require.NoError(t, err)
	oldMap, err := pkg.Resolve(old)
	require.NoError(t, err)
	pkg.Retain(oldMap.Bundle)
	pkg.Retain(oldMap.Bundle)
	assert.Equal(t, 1, pkg.RetainedCount())

	f.srv.publish(t, "1.3.0", v2)
	update, err := pkg.UpdatePackageManifestAsync("1.3.0", true, playmode.UpdateOptions{})
	require.NoError(t, err)
	f.run(update)
	assert.Contains(t, f.warnings(), "Found 1 loaded bundle before update manifest ! Recommended to call the Release method to release loaded bundle !")

	// the old dlc1 bundle is gone, the retained old dlc2 bundle stays
	clear, err := pkg.ClearUnusedCacheFilesAsync()
	require.NoError(t, err)
	f.run(clear)
	assert.Equal(t, 1, clear.Removed())
	assert.True(t, f.engine.Cache().IsCached("Demo", oldMap.Bundle.CacheGUID()))

	pkg.Release(oldMap.Bundle)
	pkg.Release(oldMap.Bundle)
	assert.Zero(t, pkg.RetainedCount())

	clear, err = pkg.ClearUnusedCacheFilesAsync()
	require.NoError(t, err)
	f.run(clear)
	assert.Equal(t, 1, clear.Removed())
	assert.False(t, f.engine.Cache().IsCached("Demo", oldMap.Bundle.CacheGUID()))
	assert.Equal(t, 1, f.engine.Cache().Count("Demo"), "core is shared by both versions")
}

func TestClearAllCacheFiles(t *testing.T) {
	f := newFixture(t)
	pkg := f.hostPackage()

	all, err := pkg.CreateResourceDownloader(nil, download.Options{})
	require.NoError(t, err)
	all.Begin()
	f.run(all)

	clear, err := pkg.ClearAllCacheFilesAsync()
	require.NoError(t, err)
	f.run(clear)
	assert.Equal(t, 3, clear.Removed())
	assert.Zero(t, f.engine.Cache().Count("Demo"))

	again, err := pkg.CreateResourceDownloader([]string{"dlc1"}, download.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, again.TotalCount())
}

func TestClearPackageSandbox(t *testing.T) {
	f := newFixture(t)
	pkg := f.hostPackage()

	require.NoError(t, pkg.ClearPackageSandbox(context.Background()))
	_, err := os.Stat(filepath.Join(f.dir, "sandbox", "Demo"))
	assert.True(t, os.IsNotExist(err))
}

func TestSimulatePackage(t *testing.T) {
	f := newFixture(t)
	data, _ := buildManifest(t, "sim", v1)
	m, err := manifest.Parse(data)
	require.NoError(t, err)

	pkg, err := f.engine.CreatePackage("Demo")
	require.NoError(t, err)
	params := f.params(playmode.ModeSimulate)
	params.SimulateManifest = m
	op, err := pkg.InitializeAsync(params)
	require.NoError(t, err)
	f.run(op)

	mode, err := pkg.Mode()
	require.NoError(t, err)
	assert.Equal(t, playmode.ModeSimulate, mode)
	assert.True(t, pkg.IsIncludeBundleFile("anything"))

	clear, err := pkg.ClearUnusedCacheFilesAsync()
	require.NoError(t, err)
	f.run(clear)
	assert.Zero(t, clear.Removed())
}

func TestDestroy(t *testing.T) {
	f := newFixture(t)
	pkg := f.hostPackage()
	require.True(t, pkg.IsReady())

	pkg.Destroy()
	assert.False(t, pkg.IsReady())
	_, err := pkg.GetPackageVersion()
	assert.Equal(t, ErrNotInitialized, err)

	// the sandbox survives, so a new initialization picks up the saved version
	op, err := pkg.InitializeAsync(f.params(playmode.ModeHost))
	require.NoError(t, err)
	f.run(op)
	version, err := pkg.GetPackageVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", version)
}

func TestBundleDownloaderRetryBudget(t *testing.T) {
	f := newFixture(t)
	pkg := f.hostPackage()
	m, err := pkg.ActiveManifest()
	require.NoError(t, err)
	dlc2, err := m.Bundle("dlc2.bundle")
	require.NoError(t, err)
	f.srv.mu.Lock()
	delete(f.srv.files, dlc2.FileName)
	f.srv.mu.Unlock()

	requests := func() int {
		f.srv.mu.Lock()
		defer f.srv.mu.Unlock()
		return f.srv.requests[dlc2.FileName]
	}
	fetch := func(opts download.Options) {
		batch, err := pkg.CreateBundleDownloader([]string{"Assets/DLC2/map.asset"}, opts)
		require.NoError(t, err)
		require.Equal(t, 1, batch.TotalCount())
		batch.Begin()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, f.engine.Run(ctx, batch))
		assert.Equal(t, operation.StatusFailed, batch.Status())
	}

	fetch(download.Options{MaxRetryPerItem: download.Retries(0)})
	assert.Equal(t, 1, requests(), "a zero budget is honoured")

	fetch(download.Options{})
	assert.Equal(t, 1+1+download.DefaultMaxRetryPerItem, requests(), "no budget uses DownloadFailedTryAgain")
}
