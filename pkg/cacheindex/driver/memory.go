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
	"sort"
	"sync"
)

var _ Driver = (*Memory)(nil)

// MemoryDriverName is the string name of this driver.
const MemoryDriverName = "Memory"

// Memory is the in-memory storage driver implementation. Records do not
// survive a restart, so every start re-downloads.
type Memory struct {
	sync.RWMutex
	packageName string
	records     map[string]*Record
}

// NewMemory initializes a new memory driver.
func NewMemory(packageName string) *Memory {
	return &Memory{packageName: packageName, records: map[string]*Record{}}
}

// Name returns the name of the driver.
func (mem *Memory) Name() string {
	return MemoryDriverName
}

// Get returns the record for cacheGUID or returns ErrRecordNotFound.
func (mem *Memory) Get(cacheGUID string) (*Record, error) {
	mem.RLock()
	defer mem.RUnlock()
	if rec, ok := mem.records[cacheGUID]; ok {
		return copyRecord(rec), nil
	}
	return nil, notFound(cacheGUID)
}

// List returns every record sorted by cache GUID.
func (mem *Memory) List() ([]*Record, error) {
	mem.RLock()
	defer mem.RUnlock()
	ls := make([]*Record, 0, len(mem.records))
	for _, rec := range mem.records {
		ls = append(ls, copyRecord(rec))
	}
	sort.Slice(ls, func(i, j int) bool { return ls[i].CacheGUID < ls[j].CacheGUID })
	return ls, nil
}

// Create stores a new record.
func (mem *Memory) Create(rec *Record) error {
	mem.Lock()
	defer mem.Unlock()
	if _, ok := mem.records[rec.CacheGUID]; ok {
		return exists(rec.CacheGUID)
	}
	mem.records[rec.CacheGUID] = mem.own(rec)
	return nil
}

// Update replaces an existing record.
func (mem *Memory) Update(rec *Record) error {
	mem.Lock()
	defer mem.Unlock()
	if _, ok := mem.records[rec.CacheGUID]; !ok {
		return notFound(rec.CacheGUID)
	}
	mem.records[rec.CacheGUID] = mem.own(rec)
	return nil
}

// Delete removes a record and returns it.
func (mem *Memory) Delete(cacheGUID string) (*Record, error) {
	mem.Lock()
	defer mem.Unlock()
	rec, ok := mem.records[cacheGUID]
	if !ok {
		return nil, notFound(cacheGUID)
	}
	delete(mem.records, cacheGUID)
	return rec, nil
}

func (mem *Memory) own(rec *Record) *Record {
	c := copyRecord(rec)
	c.PackageName = mem.packageName
	return c
}

func copyRecord(rec *Record) *Record {
	c := *rec
	return &c
}
