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

/*
Package cacheindex tracks which bundles are fully materialized in the
sandbox of each package.

A bundle becomes visible in the index only through Commit, after its data
file and its record were both written by Persist. Persist runs on I/O
goroutines; Commit runs on the scheduler tick.
*/
package cacheindex
