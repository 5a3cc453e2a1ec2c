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

package yoopath

import (
	"os"
	"path/filepath"
)

const (
	// CacheHomeEnvVar overrides the base directory for sandbox storage.
	CacheHomeEnvVar = "YOO_CACHE_HOME"
	// ConfigHomeEnvVar overrides the base directory for configuration.
	ConfigHomeEnvVar = "YOO_CONFIG_HOME"
	// DataHomeEnvVar overrides the base directory for built-in content.
	DataHomeEnvVar = "YOO_DATA_HOME"

	xdgCacheHomeEnvVar  = "XDG_CACHE_HOME"
	xdgConfigHomeEnvVar = "XDG_CONFIG_HOME"
	xdgDataHomeEnvVar   = "XDG_DATA_HOME"
)

// lazypath is a lazy-loaded path buffer for the XDG base directory specification.
type lazypath string

func (l lazypath) path(yooEnvVar, xdgEnvVar string, defaultFn func() string, elem ...string) string {
	// 1. a YOO_* variable names the directory itself
	// 2. an XDG_* variable names the parent
	// 3. the platform default names the parent
	base := os.Getenv(yooEnvVar)
	if base != "" {
		return filepath.Join(base, filepath.Join(elem...))
	}
	base = os.Getenv(xdgEnvVar)
	if base == "" {
		base = defaultFn()
	}
	return filepath.Join(base, string(l), filepath.Join(elem...))
}

func (l lazypath) cachePath(elem ...string) string {
	return l.path(CacheHomeEnvVar, xdgCacheHomeEnvVar, cacheHome, filepath.Join(elem...))
}

func (l lazypath) configPath(elem ...string) string {
	return l.path(ConfigHomeEnvVar, xdgConfigHomeEnvVar, configHome, filepath.Join(elem...))
}

func (l lazypath) dataPath(elem ...string) string {
	return l.path(DataHomeEnvVar, xdgDataHomeEnvVar, dataHome, filepath.Join(elem...))
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return os.TempDir()
}
