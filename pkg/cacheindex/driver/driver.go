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

package driver // import "github.com/sunny352/YooAsset/pkg/cacheindex/driver"

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrRecordNotFound indicates that a cache record is not found.
	ErrRecordNotFound = errors.New("cache record: not found")
	// ErrRecordExists indicates that a cache record already exists.
	ErrRecordExists = errors.New("cache record: already exists")
)

// Record is the verification record written next to every cached bundle.
// A cache hit is only trusted when the data file matches it.
type Record struct {
	PackageName string `json:"-" db:"package_name"`
	CacheGUID   string `json:"-" db:"cache_guid"`
	FileName    string `json:"fileName,omitempty" db:"file_name"`
	FileHash    string `json:"fileHash" db:"file_hash"`
	FileSize    int64  `json:"fileSize" db:"file_size"`
	CreatedAt   int64  `json:"createdAt,omitempty" db:"created_at"`
}

// RecordError records an error and the cache GUID that caused it
type RecordError struct {
	CacheGUID string
	Err       error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%q %s", e.CacheGUID, e.Err.Error())
}

func (e *RecordError) Unwrap() error { return e.Err }

func notFound(guid string) error {
	return &RecordError{CacheGUID: guid, Err: ErrRecordNotFound}
}

func exists(guid string) error {
	return &RecordError{CacheGUID: guid, Err: ErrRecordExists}
}

// Creator is the interface that wraps the Create method.
//
// Create stores the record or returns ErrRecordExists
// if a record with the same cache GUID already exists.
type Creator interface {
	Create(rec *Record) error
}

// Updator is the interface that wraps the Update method.
//
// Update replaces an existing record or returns
// ErrRecordNotFound if the record does not exist.
type Updator interface {
	Update(rec *Record) error
}

// Deletor is the interface that wraps the Delete method.
//
// Delete deletes the record named by cacheGUID or returns
// ErrRecordNotFound if the record does not exist.
type Deletor interface {
	Delete(cacheGUID string) (*Record, error)
}

// Queryor is the interface that wraps the Get and List methods.
//
// Get returns the record named by cacheGUID or returns ErrRecordNotFound
// if the record does not exist.
//
// List returns every record of the package.
type Queryor interface {
	Get(cacheGUID string) (*Record, error)
	List() ([]*Record, error)
}

// Driver is the interface composed of Creator, Updator, Deletor, and Queryor
// interfaces. It stores the cache records of one package in some underlying
// storage mechanism, e.g. memory, files next to the data, SQL.
type Driver interface {
	Creator
	Updator
	Deletor
	Queryor
	Name() string
}
