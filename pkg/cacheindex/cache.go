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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sunny352/YooAsset/internal/fileutil"
	"github.com/sunny352/YooAsset/internal/logging"
	"github.com/sunny352/YooAsset/pkg/cacheindex/driver"
	"github.com/sunny352/YooAsset/pkg/manifest"
	"github.com/sunny352/YooAsset/pkg/persistent"
)

// VerifyLevel selects how much checking a scan does before trusting a
// cached bundle.
type VerifyLevel int

const (
	// VerifyLow only checks that the data file exists.
	VerifyLow VerifyLevel = iota
	// VerifyMiddle also compares the file size.
	VerifyMiddle
	// VerifyHigh also compares the SHA-256 of the file.
	VerifyHigh
)

var verifyLevelNames = map[string]VerifyLevel{
	"low":    VerifyLow,
	"middle": VerifyMiddle,
	"high":   VerifyHigh,
}

func (l VerifyLevel) String() string {
	for name, v := range verifyLevelNames {
		if v == l {
			return name
		}
	}
	return "unknown"
}

// ParseVerifyLevel converts "low", "middle" or "high".
func ParseVerifyLevel(s string) (VerifyLevel, error) {
	if l, ok := verifyLevelNames[strings.ToLower(s)]; ok {
		return l, nil
	}
	return VerifyMiddle, errors.Errorf("unknown verify level %q", s)
}

type mount struct {
	layout  *persistent.Persistent
	driver  driver.Driver
	records map[string]*driver.Record

	// generation is bumped by ClearAll. pending maps a persisted but
	// uncommitted cache GUID to the generation its write started in.
	generation uint64
	pending    map[string]uint64
}

// Cache is the index of cached bundles of every mounted package.
type Cache struct {
	mu     sync.RWMutex
	mounts map[string]*mount
	log    logrus.FieldLogger
}

// New returns an empty index. A nil logger discards.
func New(log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logging.Discard()
	}
	return &Cache{mounts: map[string]*mount{}, log: log}
}

// Mount registers a package. Mounting an already mounted package replaces
// its storage and forgets its committed records.
func (c *Cache) Mount(layout *persistent.Persistent, d driver.Driver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounts[layout.PackageName()] = &mount{
		layout:  layout,
		driver:  d,
		records: map[string]*driver.Record{},
		pending: map[string]uint64{},
	}
}

// Unmount forgets a package. Files on disk are kept.
func (c *Cache) Unmount(packageName string) {
	c.mu.Lock()
	delete(c.mounts, packageName)
	c.mu.Unlock()
}

func (c *Cache) get(packageName string) (*mount, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.mounts[packageName]
	if !ok {
		return nil, errors.Errorf("package %s is not mounted in the cache", packageName)
	}
	return m, nil
}

// Layout returns the storage layout of a mounted package.
func (c *Cache) Layout(packageName string) (*persistent.Persistent, error) {
	m, err := c.get(packageName)
	if err != nil {
		return nil, err
	}
	return m.layout, nil
}

// IsCached reports whether the bundle is committed to the index.
func (c *Cache) IsCached(packageName, cacheGUID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.mounts[packageName]
	if !ok {
		return false
	}
	_, ok = m.records[cacheGUID]
	return ok
}

// Record returns the committed record of a bundle.
func (c *Cache) Record(packageName, cacheGUID string) (*driver.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.mounts[packageName]
	if !ok {
		return nil, false
	}
	rec, ok := m.records[cacheGUID]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// Records returns the committed records of a package sorted by cache GUID.
func (c *Cache) Records(packageName string) []*driver.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.mounts[packageName]
	if !ok {
		return nil
	}
	ls := make([]*driver.Record, 0, len(m.records))
	for _, rec := range m.records {
		cp := *rec
		ls = append(ls, &cp)
	}
	sort.Slice(ls, func(i, j int) bool { return ls[i].CacheGUID < ls[j].CacheGUID })
	return ls
}

// Count returns the number of committed bundles of a package.
func (c *Cache) Count(packageName string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.mounts[packageName]; ok {
		return len(m.records)
	}
	return 0
}

// DataFilePath returns where the bytes of a cached bundle live.
func (c *Cache) DataFilePath(packageName, cacheGUID string) (string, error) {
	m, err := c.get(packageName)
	if err != nil {
		return "", err
	}
	return m.layout.CachedDataFilePath(cacheGUID)
}

// Verify checks downloaded bytes against the bundle description.
func Verify(b *manifest.Bundle, data []byte) error {
	if int64(len(data)) != b.FileSize {
		return errors.Errorf("file size mismatch for %s: expected %d, got %d", b.BundleName, b.FileSize, len(data))
	}
	if got := fileutil.HashBytes(data); got != b.FileHash {
		return errors.Errorf("file hash mismatch for %s: expected %s, got %s", b.BundleName, b.FileHash, got)
	}
	return nil
}

// Persist durably writes a bundle and its record. The bundle is not visible
// in the index until the returned record is committed. Persist is safe to
// call from I/O goroutines.
func (c *Cache) Persist(b *manifest.Bundle, data []byte) (*driver.Record, error) {
	m, err := c.get(b.PackageName)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	generation := m.generation
	c.mu.RUnlock()

	path, err := m.layout.CachedDataFilePath(b.CacheGUID())
	if err != nil {
		return nil, err
	}
	if err := fileutil.AtomicWriteFile(path, bytes.NewReader(data), 0644); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", b.BundleName)
	}

	rec := &driver.Record{
		PackageName: b.PackageName,
		CacheGUID:   b.CacheGUID(),
		FileName:    b.FileName,
		FileHash:    b.FileHash,
		FileSize:    int64(len(data)),
		CreatedAt:   time.Now().Unix(),
	}
	err = m.driver.Create(rec)
	if errors.Is(err, driver.ErrRecordExists) {
		err = m.driver.Update(rec)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to record %s", b.BundleName)
	}

	c.mu.Lock()
	m.pending[rec.CacheGUID] = generation
	c.mu.Unlock()
	return rec, nil
}

// Commit makes a persisted bundle visible and reports whether it did. A
// record is dropped when its package was remounted or cleared after Persist
// started writing it. It must be called from the scheduler tick.
func (c *Cache) Commit(rec *driver.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.mounts[rec.PackageName]
	if !ok {
		return false
	}
	generation, ok := m.pending[rec.CacheGUID]
	if !ok || generation != m.generation {
		c.log.WithField("package", rec.PackageName).Debugf("dropping stale cache record %s", rec.CacheGUID)
		return false
	}
	delete(m.pending, rec.CacheGUID)
	cp := *rec
	m.records[rec.CacheGUID] = &cp
	return true
}

// Discard removes one bundle from the index, its record and its files.
func (c *Cache) Discard(packageName, cacheGUID string) error {
	m, err := c.get(packageName)
	if err != nil {
		return err
	}
	c.mu.Lock()
	delete(m.records, cacheGUID)
	delete(m.pending, cacheGUID)
	c.mu.Unlock()

	var result error
	if _, err := m.driver.Delete(cacheGUID); err != nil && !errors.Is(err, driver.ErrRecordNotFound) {
		result = multierror.Append(result, err)
	}
	dir, err := m.layout.CacheFolder(cacheGUID)
	if err != nil {
		return multierror.Append(result, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

// ClearAll removes every cached bundle of a package.
func (c *Cache) ClearAll(ctx context.Context, packageName string) error {
	m, err := c.get(packageName)
	if err != nil {
		return err
	}
	unlock, err := m.layout.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	recs, err := m.driver.List()
	if err != nil {
		return err
	}
	var result error
	for _, rec := range recs {
		if _, err := m.driver.Delete(rec.CacheGUID); err != nil && !errors.Is(err, driver.ErrRecordNotFound) {
			result = multierror.Append(result, err)
		}
	}
	c.mu.Lock()
	m.records = map[string]*driver.Record{}
	m.pending = map[string]uint64{}
	m.generation++
	c.mu.Unlock()
	if err := m.layout.DeleteCacheFiles(); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

// ClearUnused removes every committed bundle for which keep returns false
// and reports how many were removed.
func (c *Cache) ClearUnused(ctx context.Context, packageName string, keep func(cacheGUID string) bool) (int, error) {
	m, err := c.get(packageName)
	if err != nil {
		return 0, err
	}
	unlock, err := m.layout.Lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	var result error
	removed := 0
	for _, rec := range c.Records(packageName) {
		if keep(rec.CacheGUID) {
			continue
		}
		if err := c.Discard(packageName, rec.CacheGUID); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		removed++
	}
	return removed, result
}

// ScanResult summarizes a Scan.
type ScanResult struct {
	Valid   int
	Removed int
}

func (r ScanResult) String() string {
	return fmt.Sprintf("%d valid, %d removed", r.Valid, r.Removed)
}

// Scan loads the records of a package from its driver, checks each data
// file at the given level and commits the valid ones. Invalid records and
// folders without a valid record are deleted.
func (c *Cache) Scan(ctx context.Context, packageName string, level VerifyLevel) (ScanResult, error) {
	var res ScanResult
	m, err := c.get(packageName)
	if err != nil {
		return res, err
	}
	recs, err := m.driver.List()
	if err != nil {
		return res, errors.Wrapf(err, "failed to list cache records of %s", packageName)
	}

	var result error
	valid := map[string]*driver.Record{}
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := verifyRecord(m.layout, rec, level); err != nil {
			c.log.WithError(err).Debugf("dropping cached bundle %s", rec.CacheGUID)
			if err := c.Discard(packageName, rec.CacheGUID); err != nil {
				result = multierror.Append(result, err)
			}
			res.Removed++
			continue
		}
		rec.PackageName = packageName
		valid[rec.CacheGUID] = rec
	}

	removed, err := removeOrphans(m.layout, valid)
	res.Removed += removed
	if err != nil {
		result = multierror.Append(result, err)
	}

	c.mu.Lock()
	for guid, rec := range valid {
		m.records[guid] = rec
	}
	c.mu.Unlock()
	res.Valid = len(valid)
	return res, result
}

func verifyRecord(layout *persistent.Persistent, rec *driver.Record, level VerifyLevel) error {
	path, err := layout.CachedDataFilePath(rec.CacheGUID)
	if err != nil {
		return err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if level >= VerifyMiddle && fi.Size() != rec.FileSize {
		return errors.Errorf("size mismatch: expected %d, got %d", rec.FileSize, fi.Size())
	}
	if level >= VerifyHigh {
		hash, _, err := fileutil.HashFile(path)
		if err != nil {
			return err
		}
		if hash != rec.FileHash {
			return errors.Errorf("hash mismatch: expected %s, got %s", rec.FileHash, hash)
		}
	}
	return nil
}

func removeOrphans(layout *persistent.Persistent, valid map[string]*driver.Record) (int, error) {
	root := layout.CacheFilesRoot()
	prefixes, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var result error
	removed := 0
	for _, prefix := range prefixes {
		if !prefix.IsDir() {
			continue
		}
		dir := filepath.Join(root, prefix.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		for _, e := range entries {
			if _, ok := valid[e.Name()]; ok {
				continue
			}
			if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				result = multierror.Append(result, err)
				continue
			}
			removed++
		}
	}
	return removed, result
}
