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

package query

import (
	"os"
	"path/filepath"
	"sync"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// BuiltinQuery reports which files ship inside the application.
type BuiltinQuery interface {
	HasFile(packageName, fileName string) bool
}

// DeliveryFileInfo locates a file inside an externally delivered archive.
type DeliveryFileInfo struct {
	Path   string
	Offset int64
}

// DeliveryQuery reports which files arrive through an out-of-band channel.
type DeliveryQuery interface {
	HasFile(packageName, fileName string) bool
	FileInfo(packageName, fileName string) (DeliveryFileInfo, bool)
}

// DirBuiltin answers from files present under Root/<package>/.
type DirBuiltin struct {
	Root string
}

func (d DirBuiltin) HasFile(packageName, fileName string) bool {
	path, err := securejoin.SecureJoin(filepath.Join(d.Root, packageName), fileName)
	if err != nil {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// AllBuiltin claims every file is built in.
type AllBuiltin struct{}

func (AllBuiltin) HasFile(string, string) bool { return true }

// NoBuiltin claims nothing is built in.
type NoBuiltin struct{}

func (NoBuiltin) HasFile(string, string) bool { return false }

// NoDelivery has no delivered files.
type NoDelivery struct{}

func (NoDelivery) HasFile(string, string) bool { return false }

func (NoDelivery) FileInfo(string, string) (DeliveryFileInfo, bool) {
	return DeliveryFileInfo{}, false
}

// StaticDelivery is a delivery table filled by the host application.
type StaticDelivery struct {
	mu    sync.RWMutex
	files map[string]DeliveryFileInfo
}

// NewStaticDelivery returns an empty delivery table.
func NewStaticDelivery() *StaticDelivery {
	return &StaticDelivery{files: map[string]DeliveryFileInfo{}}
}

// Add registers a delivered file.
func (s *StaticDelivery) Add(packageName, fileName string, info DeliveryFileInfo) {
	s.mu.Lock()
	s.files[packageName+"/"+fileName] = info
	s.mu.Unlock()
}

func (s *StaticDelivery) HasFile(packageName, fileName string) bool {
	_, ok := s.FileInfo(packageName, fileName)
	return ok
}

func (s *StaticDelivery) FileInfo(packageName, fileName string) (DeliveryFileInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.files[packageName+"/"+fileName]
	return info, ok
}
