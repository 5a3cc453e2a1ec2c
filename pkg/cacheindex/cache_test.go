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

package cacheindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunny352/YooAsset/internal/fileutil"
	"github.com/sunny352/YooAsset/pkg/cacheindex/driver"
	"github.com/sunny352/YooAsset/pkg/manifest"
	"github.com/sunny352/YooAsset/pkg/persistent"
)

func newLayout(t *testing.T) *persistent.Persistent {
	t.Helper()
	dir := t.TempDir()
	p, err := persistent.New("Demo", filepath.Join(dir, "builtin"), filepath.Join(dir, "sandbox"))
	require.NoError(t, err)
	return p
}

func bundleOf(name, content string) (*manifest.Bundle, []byte) {
	data := []byte(content)
	return &manifest.Bundle{
		BundleName:  name,
		FileHash:    fileutil.HashBytes(data),
		FileSize:    int64(len(data)),
		PackageName: "Demo",
		FileName:    name,
	}, data
}

func TestParseVerifyLevel(t *testing.T) {
	l, err := ParseVerifyLevel("HIGH")
	require.NoError(t, err)
	assert.Equal(t, VerifyHigh, l)
	assert.Equal(t, "high", l.String())

	_, err = ParseVerifyLevel("paranoid")
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	b, data := bundleOf("core.bundle", "core")
	assert.NoError(t, Verify(b, data))
	assert.Error(t, Verify(b, []byte("cor")))
	assert.Error(t, Verify(b, []byte("CORE")))
}

func TestPersistAndCommit(t *testing.T) {
	layout := newLayout(t)
	c := New(nil)
	c.Mount(layout, driver.NewDisk(layout, nil))

	b, data := bundleOf("core.bundle", "core bytes")
	rec, err := c.Persist(b, data)
	require.NoError(t, err)
	assert.False(t, c.IsCached("Demo", b.CacheGUID()), "persisted bundles stay invisible until committed")

	c.Commit(rec)
	assert.True(t, c.IsCached("Demo", b.CacheGUID()))
	assert.Equal(t, 1, c.Count("Demo"))

	got, ok := c.Record("Demo", b.CacheGUID())
	require.True(t, ok)
	assert.Equal(t, int64(len(data)), got.FileSize)

	path, err := c.DataFilePath("Demo", b.CacheGUID())
	require.NoError(t, err)
	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)

	// a second download of the same bundle overwrites the record
	_, err = c.Persist(b, data)
	require.NoError(t, err)
}

func TestNotMounted(t *testing.T) {
	c := New(nil)
	b, data := bundleOf("core.bundle", "core")
	_, err := c.Persist(b, data)
	assert.Error(t, err)
	assert.False(t, c.IsCached("Demo", b.CacheGUID()))
	assert.Nil(t, c.Records("Demo"))
	_, err = c.Scan(context.Background(), "Demo", VerifyLow)
	assert.Error(t, err)

	// commits for unknown packages are ignored
	assert.False(t, c.Commit(&driver.Record{PackageName: "Demo", CacheGUID: b.CacheGUID()}))
	assert.Equal(t, 0, c.Count("Demo"))
}

func TestScan(t *testing.T) {
	layout := newLayout(t)
	writer := New(nil)
	writer.Mount(layout, driver.NewDisk(layout, nil))

	good, goodData := bundleOf("good.bundle", "good")
	short, shortData := bundleOf("short.bundle", "short")
	gone, goneData := bundleOf("gone.bundle", "gone")
	swapped, swappedData := bundleOf("swapped.bundle", "swapped")
	for _, tc := range []struct {
		b    *manifest.Bundle
		data []byte
	}{{good, goodData}, {short, shortData}, {gone, goneData}, {swapped, swappedData}} {
		_, err := writer.Persist(tc.b, tc.data)
		require.NoError(t, err)
	}

	path, err := layout.CachedDataFilePath(short.CacheGUID())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("sh"), 0644))

	path, err = layout.CachedDataFilePath(gone.CacheGUID())
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	// same size, different bytes
	path, err = layout.CachedDataFilePath(swapped.CacheGUID())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("SWAPPED"), 0644))

	orphan, err := layout.CacheFolder("0000orphan")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(orphan, 0755))

	c := New(nil)
	c.Mount(layout, driver.NewDisk(layout, nil))
	res, err := c.Scan(context.Background(), "Demo", VerifyMiddle)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Valid)
	assert.Equal(t, 3, res.Removed)
	assert.True(t, c.IsCached("Demo", good.CacheGUID()))
	assert.True(t, c.IsCached("Demo", swapped.CacheGUID()))
	assert.False(t, c.IsCached("Demo", short.CacheGUID()))
	assert.False(t, c.IsCached("Demo", gone.CacheGUID()))

	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))

	c = New(nil)
	c.Mount(layout, driver.NewDisk(layout, nil))
	res, err = c.Scan(context.Background(), "Demo", VerifyHigh)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Valid)
	assert.Equal(t, 1, res.Removed)
	assert.False(t, c.IsCached("Demo", swapped.CacheGUID()))
}

func TestScanMemoryDriverDropsFiles(t *testing.T) {
	layout := newLayout(t)
	writer := New(nil)
	writer.Mount(layout, driver.NewMemory("Demo"))
	b, data := bundleOf("core.bundle", "core")
	_, err := writer.Persist(b, data)
	require.NoError(t, err)

	// a fresh memory driver knows no records, so the file is an orphan
	c := New(nil)
	c.Mount(layout, driver.NewMemory("Demo"))
	res, err := c.Scan(context.Background(), "Demo", VerifyLow)
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Valid: 0, Removed: 1}, res)
}

func TestClearUnused(t *testing.T) {
	layout := newLayout(t)
	c := New(nil)
	c.Mount(layout, driver.NewMemory("Demo"))

	keep, keepData := bundleOf("keep.bundle", "keep")
	drop, dropData := bundleOf("drop.bundle", "drop")
	for _, tc := range []struct {
		b    *manifest.Bundle
		data []byte
	}{{keep, keepData}, {drop, dropData}} {
		rec, err := c.Persist(tc.b, tc.data)
		require.NoError(t, err)
		c.Commit(rec)
	}

	removed, err := c.ClearUnused(context.Background(), "Demo", func(guid string) bool {
		return guid == keep.CacheGUID()
	})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.True(t, c.IsCached("Demo", keep.CacheGUID()))
	assert.False(t, c.IsCached("Demo", drop.CacheGUID()))

	dir, err := layout.CacheFolder(drop.CacheGUID())
	require.NoError(t, err)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestClearAll(t *testing.T) {
	layout := newLayout(t)
	c := New(nil)
	c.Mount(layout, driver.NewDisk(layout, nil))

	b, data := bundleOf("core.bundle", "core")
	rec, err := c.Persist(b, data)
	require.NoError(t, err)
	c.Commit(rec)

	require.NoError(t, c.ClearAll(context.Background(), "Demo"))
	assert.Equal(t, 0, c.Count("Demo"))
	_, err = os.Stat(layout.CacheFilesRoot())
	assert.True(t, os.IsNotExist(err))
}

func TestCommitDropsRecordsClearedBeforeCommit(t *testing.T) {
	layout := newLayout(t)
	c := New(nil)
	c.Mount(layout, driver.NewDisk(layout, nil))

	b, data := bundleOf("core.bundle", "core")
	rec, err := c.Persist(b, data)
	require.NoError(t, err)
	require.NoError(t, c.ClearAll(context.Background(), "Demo"))

	assert.False(t, c.Commit(rec))
	assert.False(t, c.IsCached("Demo", b.CacheGUID()))

	rec, err = c.Persist(b, data)
	require.NoError(t, err)
	assert.True(t, c.Commit(rec))
	assert.True(t, c.IsCached("Demo", b.CacheGUID()))
	assert.False(t, c.Commit(rec), "a record is committed once")

	// records that never went through Persist are not trusted
	other, _ := bundleOf("other.bundle", "other")
	assert.False(t, c.Commit(&driver.Record{PackageName: "Demo", CacheGUID: other.CacheGUID()}))
}
