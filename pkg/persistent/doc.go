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
Package persistent lays out the on-disk storage of one package.

The built-in root holds read-only content shipped with the application. The
sandbox root holds everything the engine writes: cached bundle files, cached
manifests and the version record.

	<sandbox>/<package>/CacheFiles/<guid[:2]>/<guid>/__data
	<sandbox>/<package>/CacheFiles/<guid[:2]>/<guid>/__info
	<sandbox>/<package>/ManifestFiles/PackageManifest_<package>_<version>.json
	<sandbox>/<package>/ManifestFiles/PackageManifest_<package>_<version>.hash
	<sandbox>/<package>/ManifestFiles/PackageManifest_<package>.version
*/
package persistent
