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
Package resource is the entry point of the engine.

An Engine owns the scheduler and the cache index shared by every package.
Each Package is initialized once with a play mode and then exposes the
update operations, the download and unpack batches and the bundle lookups
of that mode.

	e := resource.NewEngine(log)
	pkg, _ := e.CreatePackage("Demo")
	op, _ := pkg.InitializeAsync(params)
	_ = e.Run(ctx, op)
*/
package resource
