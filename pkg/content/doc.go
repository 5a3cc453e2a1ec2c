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
Package content decides where the bundles of a package currently live.

A bundle is looked up in four tiers, first match wins: files delivered
out of band, the local cache, files built into the application and finally
the remote content server. The same tiers drive the computation of
download and unpack lists.
*/
package content
