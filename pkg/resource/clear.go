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

package resource

import (
	"context"

	"github.com/sunny352/YooAsset/pkg/operation"
)

type clearStep int

const (
	clearStepNone clearStep = iota
	clearStepClearCacheFiles
	clearStepDone
)

// ClearCacheOperation deletes cached bundles of a package.
type ClearCacheOperation struct {
	operation.Base

	p       *Package
	clear   func(context.Context) (int, error)
	step    clearStep
	clearOp *operation.Async[int]
	removed int
}

// Removed returns the number of bundles deleted.
func (op *ClearCacheOperation) Removed() int { return op.removed }

func (op *ClearCacheOperation) Start() {
	if op.clear == nil {
		op.step = clearStepDone
		op.Succeed()
		return
	}
	op.step = clearStepClearCacheFiles
}

func (op *ClearCacheOperation) Update() {
	if op.step == clearStepNone || op.step == clearStepDone {
		return
	}

	if op.step == clearStepClearCacheFiles {
		if op.clearOp == nil {
			op.clearOp = operation.NewAsync(op.p.engine.ctx, op.clear)
			op.p.engine.sched.Start(op.clearOp)
		}
		if !op.clearOp.IsDone() {
			return
		}
		op.step = clearStepDone
		if op.clearOp.Status() != operation.StatusSucceed {
			op.Fail(op.clearOp.Error())
			return
		}
		op.removed = op.clearOp.Value()
		op.Succeed()
	}
}

func (p *Package) startClear(clear func(context.Context) (int, error)) *ClearCacheOperation {
	op := &ClearCacheOperation{p: p, clear: clear}
	p.engine.sched.Start(op)
	return op
}

// ClearUnusedCacheFilesAsync deletes the cached bundles that the active
// manifest does not refer to and that are not retained.
func (p *Package) ClearUnusedCacheFilesAsync() (*ClearCacheOperation, error) {
	s, err := p.checked(true)
	if err != nil {
		return nil, err
	}
	if !hasCache(s.Mode()) {
		return p.startClear(nil), nil
	}
	m := s.ActiveManifest()
	retained := p.retainedSet()
	keep := func(guid string) bool {
		return retained[guid] || m.IsIncludeBundleFile(guid)
	}
	return p.startClear(func(ctx context.Context) (int, error) {
		return p.engine.cache.ClearUnused(ctx, p.name, keep)
	}), nil
}

// ClearAllCacheFilesAsync deletes every cached bundle of the package.
func (p *Package) ClearAllCacheFilesAsync() (*ClearCacheOperation, error) {
	s, err := p.checked(true)
	if err != nil {
		return nil, err
	}
	if !hasCache(s.Mode()) {
		return p.startClear(nil), nil
	}
	return p.startClear(func(ctx context.Context) (int, error) {
		n := p.engine.cache.Count(p.name)
		return n, p.engine.cache.ClearAll(ctx, p.name)
	}), nil
}
