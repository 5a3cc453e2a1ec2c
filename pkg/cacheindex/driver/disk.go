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

package driver

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/sunny352/YooAsset/internal/fileutil"
	"github.com/sunny352/YooAsset/internal/logging"
	"github.com/sunny352/YooAsset/pkg/persistent"
)

var _ Driver = (*Disk)(nil)

// DiskDriverName is the string name of this driver.
const DiskDriverName = "Disk"

// Disk keeps each record in the __info file next to the bundle data.
type Disk struct {
	layout *persistent.Persistent
	Log    logrus.FieldLogger
}

// NewDisk initializes a new Disk driver for the package laid out by p.
func NewDisk(p *persistent.Persistent, log logrus.FieldLogger) *Disk {
	if log == nil {
		log = logging.Discard()
	}
	return &Disk{layout: p, Log: log}
}

// Name returns the name of the driver.
func (disk *Disk) Name() string {
	return DiskDriverName
}

// Get returns the record for cacheGUID or returns ErrRecordNotFound.
func (disk *Disk) Get(cacheGUID string) (*Record, error) {
	path, err := disk.layout.CachedInfoFilePath(cacheGUID)
	if err != nil {
		return nil, err
	}
	rec, err := disk.read(path)
	if os.IsNotExist(err) {
		return nil, notFound(cacheGUID)
	}
	if err != nil {
		return nil, err
	}
	rec.CacheGUID = cacheGUID
	return rec, nil
}

// List walks the cache folders and returns every readable record. Folders
// with a missing or corrupt record are skipped.
func (disk *Disk) List() ([]*Record, error) {
	root := disk.layout.CacheFilesRoot()
	prefixes, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ls []*Record
	for _, prefix := range prefixes {
		if !prefix.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(root, prefix.Name()))
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			rec, err := disk.Get(e.Name())
			if err != nil {
				disk.Log.WithError(err).Debugf("skipping cache folder %s", e.Name())
				continue
			}
			ls = append(ls, rec)
		}
	}
	sort.Slice(ls, func(i, j int) bool { return ls[i].CacheGUID < ls[j].CacheGUID })
	return ls, nil
}

// Create writes a new record.
func (disk *Disk) Create(rec *Record) error {
	if _, err := disk.Get(rec.CacheGUID); err == nil {
		return exists(rec.CacheGUID)
	}
	return disk.write(rec)
}

// Update replaces an existing record.
func (disk *Disk) Update(rec *Record) error {
	if _, err := disk.Get(rec.CacheGUID); err != nil {
		return err
	}
	return disk.write(rec)
}

// Delete removes the record file and returns the record. The data file is
// left to the caller.
func (disk *Disk) Delete(cacheGUID string) (*Record, error) {
	rec, err := disk.Get(cacheGUID)
	if err != nil {
		return nil, err
	}
	path, err := disk.layout.CachedInfoFilePath(cacheGUID)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return rec, nil
}

func (disk *Disk) read(path string) (*Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	rec.PackageName = disk.layout.PackageName()
	return &rec, nil
}

func (disk *Disk) write(rec *Record) error {
	path, err := disk.layout.CachedInfoFilePath(rec.CacheGUID)
	if err != nil {
		return err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return fileutil.AtomicWriteFile(path, bytes.NewReader(b), 0644)
}
