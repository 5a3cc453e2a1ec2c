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
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sunny352/YooAsset/internal/logging"
	"github.com/sunny352/YooAsset/pkg/cacheindex"
	"github.com/sunny352/YooAsset/pkg/operation"
)

// Engine owns what all packages share: the scheduler driving their
// operations and the index of cached bundles.
type Engine struct {
	log   logrus.FieldLogger
	sched *operation.Scheduler
	cache *cacheindex.Cache

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	packages map[string]*Package
}

// NewEngine returns an engine without packages. A nil logger discards.
func NewEngine(log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		log:      log,
		sched:    operation.NewScheduler(log),
		cache:    cacheindex.New(log),
		ctx:      ctx,
		cancel:   cancel,
		packages: map[string]*Package{},
	}
}

// Scheduler returns the scheduler that drives every package operation.
func (e *Engine) Scheduler() *operation.Scheduler { return e.sched }

// Cache returns the shared cache index.
func (e *Engine) Cache() *cacheindex.Cache { return e.cache }

// CreatePackage registers a new package.
func (e *Engine) CreatePackage(name string) (*Package, error) {
	if name == "" {
		return nil, errors.New("Package name is null or empty.")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.packages[name]; ok {
		return nil, errors.Errorf("Package %s already existed !", name)
	}
	p := newPackage(e, name)
	e.packages[name] = p
	e.log.Debugf("package %s created", name)
	return p, nil
}

// GetPackage returns a registered package.
func (e *Engine) GetPackage(name string) (*Package, error) {
	if p := e.TryGetPackage(name); p != nil {
		return p, nil
	}
	return nil, errors.Errorf("Not found assets package : %s", name)
}

// TryGetPackage returns a registered package, or nil.
func (e *Engine) TryGetPackage(name string) *Package {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.packages[name]
}

// ContainsPackage reports whether a package is registered.
func (e *Engine) ContainsPackage(name string) bool {
	return e.TryGetPackage(name) != nil
}

// DestroyPackage releases a package and forgets it.
func (e *Engine) DestroyPackage(name string) error {
	e.mu.Lock()
	p, ok := e.packages[name]
	delete(e.packages, name)
	e.mu.Unlock()
	if !ok {
		return errors.Errorf("Not found assets package : %s", name)
	}
	p.Destroy()
	return nil
}

// Update advances every in-flight operation once.
func (e *Engine) Update() {
	e.sched.Tick()
}

// Run ticks the scheduler until op is done or ctx is canceled.
func (e *Engine) Run(ctx context.Context, op operation.Operation) error {
	return e.sched.Run(ctx, op, 0)
}

// Destroy aborts every operation and releases every package.
func (e *Engine) Destroy() {
	e.cancel()
	e.sched.Clear()

	e.mu.Lock()
	packages := e.packages
	e.packages = map[string]*Package{}
	e.mu.Unlock()
	for _, p := range packages {
		p.Destroy()
	}
}
