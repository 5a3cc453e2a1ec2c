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
Package operation provides the cooperative scheduler that drives every
asynchronous operation of a package.

Operations are step-state machines. The scheduler calls Update on each
registered operation once per Tick, in registration order. An operation never
blocks inside Update: blocking I/O is delegated to an Async operation whose
goroutine result is picked up on a later tick.
*/
package operation
