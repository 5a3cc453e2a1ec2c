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

package persistent

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/sunny352/YooAsset/internal/fileutil"
	"github.com/sunny352/YooAsset/pkg/manifest"
	"github.com/sunny352/YooAsset/pkg/yoopath"
)

const (
	cacheFilesFolder    = "CacheFiles"
	manifestFilesFolder = "ManifestFiles"
	dataFileName        = "__data"
	infoFileName        = "__info"
	lockFileName        = ".lock"
)

// Persistent is the storage layout of a single package.
type Persistent struct {
	packageName string
	builtinRoot string
	sandboxRoot string
}

// New returns the layout of packageName. Empty roots fall back to the
// per-user defaults.
func New(packageName, builtinRoot, sandboxRoot string) (*Persistent, error) {
	if packageName == "" {
		return nil, errors.New("package name is empty")
	}
	if strings.ContainsAny(packageName, `/\`) || packageName == "." || packageName == ".." {
		return nil, errors.Errorf("invalid package name %q", packageName)
	}
	if builtinRoot == "" {
		builtinRoot = yoopath.BuiltinRoot()
	}
	if sandboxRoot == "" {
		sandboxRoot = yoopath.SandboxRoot()
	}
	return &Persistent{
		packageName: packageName,
		builtinRoot: filepath.Clean(builtinRoot),
		sandboxRoot: filepath.Clean(sandboxRoot),
	}, nil
}

// PackageName returns the package this layout belongs to.
func (p *Persistent) PackageName() string { return p.packageName }

// BuiltinRoot returns the root of all built-in packages.
func (p *Persistent) BuiltinRoot() string { return p.builtinRoot }

// SandboxRoot returns the root of all package sandboxes.
func (p *Persistent) SandboxRoot() string { return p.sandboxRoot }

// BuiltinPackageRoot returns the built-in directory of the package.
func (p *Persistent) BuiltinPackageRoot() string {
	return filepath.Join(p.builtinRoot, p.packageName)
}

// SandboxPackageRoot returns the sandbox directory of the package.
func (p *Persistent) SandboxPackageRoot() string {
	return filepath.Join(p.sandboxRoot, p.packageName)
}

// CacheFilesRoot returns the directory holding cached bundles.
func (p *Persistent) CacheFilesRoot() string {
	return filepath.Join(p.SandboxPackageRoot(), cacheFilesFolder)
}

// ManifestFilesRoot returns the directory holding cached manifests.
func (p *Persistent) ManifestFilesRoot() string {
	return filepath.Join(p.SandboxPackageRoot(), manifestFilesFolder)
}

// BuiltinFilePath returns the path of a built-in file. fileName comes from
// a manifest and may not escape the package root.
func (p *Persistent) BuiltinFilePath(fileName string) (string, error) {
	return securejoin.SecureJoin(p.BuiltinPackageRoot(), fileName)
}

// BuiltinManifestFilePath returns the built-in manifest of a version.
func (p *Persistent) BuiltinManifestFilePath(version string) (string, error) {
	return p.BuiltinFilePath(manifest.FileName(p.packageName, version))
}

// BuiltinHashFilePath returns the built-in manifest hash of a version.
func (p *Persistent) BuiltinHashFilePath(version string) (string, error) {
	return p.BuiltinFilePath(manifest.HashFileName(p.packageName, version))
}

// BuiltinVersionFilePath returns the version file shipped with the application.
func (p *Persistent) BuiltinVersionFilePath() string {
	return filepath.Join(p.BuiltinPackageRoot(), manifest.VersionFileName(p.packageName))
}

// CacheFolder returns the directory of one cached bundle.
func (p *Persistent) CacheFolder(cacheGUID string) (string, error) {
	if len(cacheGUID) < 2 {
		return "", errors.Errorf("invalid cache GUID %q", cacheGUID)
	}
	return securejoin.SecureJoin(p.CacheFilesRoot(), filepath.Join(cacheGUID[:2], cacheGUID))
}

// CachedDataFilePath returns the data file of one cached bundle.
func (p *Persistent) CachedDataFilePath(cacheGUID string) (string, error) {
	dir, err := p.CacheFolder(cacheGUID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dataFileName), nil
}

// CachedInfoFilePath returns the verification record of one cached bundle.
func (p *Persistent) CachedInfoFilePath(cacheGUID string) (string, error) {
	dir, err := p.CacheFolder(cacheGUID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, infoFileName), nil
}

// SandboxManifestFilePath returns the cached manifest of a version.
func (p *Persistent) SandboxManifestFilePath(version string) (string, error) {
	return securejoin.SecureJoin(p.ManifestFilesRoot(), manifest.FileName(p.packageName, version))
}

// SandboxHashFilePath returns the cached manifest hash of a version.
func (p *Persistent) SandboxHashFilePath(version string) (string, error) {
	return securejoin.SecureJoin(p.ManifestFilesRoot(), manifest.HashFileName(p.packageName, version))
}

// VersionRecordPath returns the last-known-good version record.
func (p *Persistent) VersionRecordPath() string {
	return filepath.Join(p.ManifestFilesRoot(), manifest.VersionFileName(p.packageName))
}

// SaveVersionRecord durably records version as the last known good version.
func (p *Persistent) SaveVersionRecord(version string) error {
	return fileutil.AtomicWriteFile(p.VersionRecordPath(), strings.NewReader(version), 0644)
}

// ReadVersionRecord returns the recorded version, or "" when there is none.
func (p *Persistent) ReadVersionRecord() (string, error) {
	b, err := os.ReadFile(p.VersionRecordPath())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// SaveManifest writes manifest bytes and their hash file for a version.
func (p *Persistent) SaveManifest(version string, data []byte) error {
	path, err := p.SandboxManifestFilePath(version)
	if err != nil {
		return err
	}
	hashPath, err := p.SandboxHashFilePath(version)
	if err != nil {
		return err
	}
	if err := fileutil.AtomicWriteFile(path, bytes.NewReader(data), 0644); err != nil {
		return err
	}
	return fileutil.AtomicWriteFile(hashPath, strings.NewReader(fileutil.HashBytes(data)), 0644)
}

// LoadManifest loads the cached manifest of a version after checking it
// against its hash file. A manifest that fails the check is deleted.
func (p *Persistent) LoadManifest(version string) (*manifest.Manifest, error) {
	path, err := p.SandboxManifestFilePath(version)
	if err != nil {
		return nil, err
	}
	hashPath, err := p.SandboxHashFilePath(version)
	if err != nil {
		return nil, err
	}
	expect, err := os.ReadFile(hashPath)
	if err != nil {
		return nil, err
	}
	got, _, err := fileutil.HashFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(expect)) != got {
		os.Remove(path)
		os.Remove(hashPath)
		return nil, errors.Errorf("failed to verify cached manifest %s", filepath.Base(path))
	}
	return manifest.Load(path)
}

// HasCachedManifest reports whether a manifest and its hash are cached.
func (p *Persistent) HasCachedManifest(version string) bool {
	path, err := p.SandboxManifestFilePath(version)
	if err != nil {
		return false
	}
	hashPath, err := p.SandboxHashFilePath(version)
	if err != nil {
		return false
	}
	return fileutil.Exists(path) && fileutil.Exists(hashPath)
}

// DeleteSandbox removes everything the engine wrote for the package.
func (p *Persistent) DeleteSandbox() error {
	return os.RemoveAll(p.SandboxPackageRoot())
}

// DeleteCacheFiles removes every cached bundle of the package.
func (p *Persistent) DeleteCacheFiles() error {
	return os.RemoveAll(p.CacheFilesRoot())
}

// DeleteManifestFiles removes cached manifests except the version record.
func (p *Persistent) DeleteManifestFiles() error {
	entries, err := os.ReadDir(p.ManifestFilesRoot())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	record := manifest.VersionFileName(p.packageName)
	for _, e := range entries {
		if e.Name() == record {
			continue
		}
		if err := os.RemoveAll(filepath.Join(p.ManifestFilesRoot(), e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Lock takes the sandbox lock of the package, waiting until ctx is done.
// The returned function releases it.
func (p *Persistent) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(p.SandboxPackageRoot(), 0755); err != nil {
		return nil, err
	}
	fileLock := flock.New(filepath.Join(p.SandboxPackageRoot(), lockFileName))
	locked, err := fileLock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, errors.Errorf("unable to lock sandbox of %s", p.packageName)
	}
	return func() { fileLock.Unlock() }, nil
}
