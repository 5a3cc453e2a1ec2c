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
Package download fetches lists of bundles into the local cache.

A Batch runs a precomputed list with bounded concurrency and a per-item
retry budget. Transfers run on goroutines; all bookkeeping happens in
Update on the scheduler tick, which is also the only place a finished
bundle is committed to the cache index.
*/
package download
