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

// This helper builds paths to the configuration, sandbox and built-in roots.
const lp = lazypath("yoo")

// ConfigPath returns the path where configuration is stored.
func ConfigPath(elem ...string) string {
	return lp.configPath(elem...)
}

// CachePath returns the path where downloaded content is stored.
func CachePath(elem ...string) string {
	return lp.cachePath(elem...)
}

// DataPath returns the path where content shipped with the application is
// looked up.
func DataPath(elem ...string) string {
	return lp.dataPath(elem...)
}

// ConfigFile is the default settings file.
func ConfigFile() string { return ConfigPath("config.toml") }

// SandboxRoot is the default root of the writable package sandboxes.
func SandboxRoot() string { return CachePath("sandbox") }

// BuiltinRoot is the default root of the read-only built-in content.
func BuiltinRoot() string { return DataPath("builtin") }
