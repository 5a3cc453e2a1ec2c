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

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"sync"
	"testing"

	shellwords "github.com/mattn/go-shellwords"
	"github.com/stretchr/testify/require"

	"github.com/sunny352/YooAsset/internal/fileutil"
	"github.com/sunny352/YooAsset/internal/logging"
	"github.com/sunny352/YooAsset/pkg/cli"
	"github.com/sunny352/YooAsset/pkg/manifest"
)

// contents maps bundle names to their bytes in one version.
type contents map[string]string

var (
	v1 = contents{"core.bundle": "core", "dlc1.bundle": "dlc1-v1", "dlc2.bundle": "dlc2-v1"}
	v2 = contents{"core.bundle": "core", "dlc1.bundle": "dlc1-v2", "dlc2.bundle": "dlc2-v2"}
)

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
		FileVersion:     manifest.FileVersion,
		OutputNameStyle: manifest.StyleBundleNameHashName,
		PackageName:     "Demo",
		PackageVersion:  version,
		AssetList: []*manifest.Asset{
			{AssetPath: "Assets/UI/main.prefab", BundleID: 0, DependIDs: []int{1}},
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

// manifestFiles returns the version, manifest and hash files of a version.
func manifestFiles(t *testing.T, version string, c contents) (map[string][]byte, map[string][]byte) {
	data, bundles := buildManifest(t, version, c)
	return map[string][]byte{
		manifest.VersionFileName("Demo"):       []byte(version),
		manifest.FileName("Demo", version):     data,
		manifest.HashFileName("Demo", version): []byte(fileutil.HashBytes(data)),
	}, bundles
}

type contentServer struct {
	*httptest.Server
	mu    sync.Mutex
	files map[string][]byte
}

func newContentServer(t *testing.T) *contentServer {
	s := &contentServer{files: map[string][]byte{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		data, ok := s.files[path.Base(r.URL.Path)]
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

func (s *contentServer) publish(t *testing.T, version string, c contents) {
	meta, bundles := manifestFiles(t, version, c)
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, body := range meta {
		s.files[name] = body
	}
	for name, body := range bundles {
		s.files[name] = body
	}
}

type fixture struct {
	t   *testing.T
	dir string
	srv *contentServer

	// configure adjusts the settings of every command.
	configure func(*cli.EnvSettings)
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, dir: t.TempDir(), srv: newContentServer(t)}
}

func (f *fixture) settings() *cli.EnvSettings {
	s := cli.Defaults()
	s.Package = "Demo"
	s.HostServer = f.srv.URL + "/cdn"
	s.BuiltinRoot = filepath.Join(f.dir, "builtin")
	s.SandboxRoot = filepath.Join(f.dir, "sandbox")
	if f.configure != nil {
		f.configure(s)
	}
	return s
}

// shipBuiltin places a version of the package in the built-in root.
func (f *fixture) shipBuiltin(version string, c contents) {
	meta, bundles := manifestFiles(f.t, version, c)
	root := filepath.Join(f.dir, "builtin", "Demo")
	require.NoError(f.t, os.MkdirAll(root, 0755))
	for _, files := range []map[string][]byte{meta, bundles} {
		for name, body := range files {
			require.NoError(f.t, os.WriteFile(filepath.Join(root, name), body, 0644))
		}
	}
}

// exec runs one command line against a fresh engine. State carries over
// between calls through the sandbox only.
func (f *fixture) exec(cmd string) (string, error) {
	f.t.Helper()
	f.t.Logf("running cmd: %s", cmd)
	return executeCommand(f.settings(), cmd)
}

// mustExec is exec for commands expected to succeed.
func (f *fixture) mustExec(cmd string) string {
	f.t.Helper()
	out, err := f.exec(cmd)
	require.NoError(f.t, err, out)
	return out
}

func executeCommand(settings *cli.EnvSettings, cmd string) (string, error) {
	args, err := shellwords.Parse(cmd)
	if err != nil {
		return "", err
	}

	buf := new(bytes.Buffer)
	root := newRootCmdWithSettings(settings, logging.Discard(), buf, args)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err = root.Execute()
	return buf.String(), err
}
