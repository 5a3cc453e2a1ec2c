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
Package playmode implements the four ways a package can be run.

Simulate mode serves a manifest produced by tooling and never touches the
network. Offline mode serves everything from the application and the local
cache. Host mode adds a content server and keeps the sandbox up to date.
Web mode reads from the application and the server without a local cache.

Every mode implements Services, which builds the update operations and
download batches of a package. Operations are started on the scheduler of
the package and report their outcome through Status and Error.
*/
package playmode
