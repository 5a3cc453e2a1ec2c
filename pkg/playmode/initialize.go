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

package playmode

import (
	"context"
	"fmt"
	"os"

	"github.com/sunny352/YooAsset/pkg/cacheindex"
	"github.com/sunny352/YooAsset/pkg/manifest"
	"github.com/sunny352/YooAsset/pkg/operation"
)

type initStep int

const (
	initStepNone initStep = iota
	initStepLoadSimulateManifest
	initStepScanCache
	initStepQueryCachePackageVersion
	initStepTryLoadCacheManifest
	initStepQueryBuiltinPackageVersion
	initStepUnpackBuiltinManifest
	initStepLoadBuiltinManifest
	initStepDone
)

// InitializationOperation prepares a play mode: it scans the cache and
// activates the manifest the package starts with.
//
// Host mode prefers the version recorded by the last successful update and
// falls back to the manifest shipped with the application, which it copies
// into the sandbox first. Host and web mode succeed without an active
// manifest when the application ships none.
type InitializationOperation struct {
	operation.Base

	c    *core
	mode Mode
	step initStep

	version string
	scan    cacheindex.ScanResult

	simulateOp       *operation.Async[*manifest.Manifest]
	scanOp           *operation.Async[cacheindex.ScanResult]
	cacheVersionOp   *operation.Async[string]
	tryLoadOp        *operation.Async[*manifest.Manifest]
	builtinVersionOp *operation.Async[string]
	unpackOp         *operation.Async[struct{}]
	loadOp           *operation.Async[*manifest.Manifest]
}

func newInitializationOperation(c *core, mode Mode) *InitializationOperation {
	return &InitializationOperation{c: c, mode: mode}
}

// PackageVersion returns the version of the activated manifest, or "".
func (op *InitializationOperation) PackageVersion() string { return op.version }

// ScanResult returns the outcome of the cache scan.
func (op *InitializationOperation) ScanResult() cacheindex.ScanResult { return op.scan }

func (op *InitializationOperation) Start() {
	switch op.mode {
	case ModeSimulate:
		op.step = initStepLoadSimulateManifest
	case ModeOffline, ModeHost:
		op.step = initStepScanCache
	default:
		op.step = initStepQueryBuiltinPackageVersion
	}
}

func (op *InitializationOperation) Update() {
	if op.step == initStepNone || op.step == initStepDone {
		return
	}

	if op.step == initStepLoadSimulateManifest {
		if op.simulateOp == nil {
			op.simulateOp = startAsync(op.c, op.loadSimulateManifest)
		}
		if !op.simulateOp.IsDone() {
			return
		}
		if op.simulateOp.Status() != operation.StatusSucceed {
			op.fail(op.simulateOp.Error())
			return
		}
		op.activate(op.simulateOp.Value())
		return
	}

	if op.step == initStepScanCache {
		if op.scanOp == nil {
			op.scanOp = startAsync(op.c, op.scanCache)
		}
		if !op.scanOp.IsDone() {
			return
		}
		if op.scanOp.Status() != operation.StatusSucceed {
			op.fail(op.scanOp.Error())
			return
		}
		op.scan = op.scanOp.Value()
		if op.mode == ModeHost {
			op.step = initStepQueryCachePackageVersion
		} else {
			op.step = initStepQueryBuiltinPackageVersion
		}
	}

	if op.step == initStepQueryCachePackageVersion {
		if op.cacheVersionOp == nil {
			op.cacheVersionOp = startAsync(op.c, func(context.Context) (string, error) {
				return op.c.cfg.Layout.ReadVersionRecord()
			})
		}
		if !op.cacheVersionOp.IsDone() {
			return
		}
		if op.cacheVersionOp.Status() == operation.StatusSucceed && op.cacheVersionOp.Value() != "" {
			op.version = op.cacheVersionOp.Value()
			op.step = initStepTryLoadCacheManifest
		} else {
			op.step = initStepQueryBuiltinPackageVersion
		}
	}

	if op.step == initStepTryLoadCacheManifest {
		if op.tryLoadOp == nil {
			version := op.version
			op.tryLoadOp = startAsync(op.c, func(context.Context) (*manifest.Manifest, error) {
				return op.c.cfg.Layout.LoadManifest(version)
			})
		}
		if !op.tryLoadOp.IsDone() {
			return
		}
		if op.tryLoadOp.Status() == operation.StatusSucceed {
			op.activate(op.tryLoadOp.Value())
			return
		}
		op.c.log.Warnf("failed to load cached manifest %s: %s", op.version, op.tryLoadOp.Error())
		op.version = ""
		op.step = initStepQueryBuiltinPackageVersion
	}

	if op.step == initStepQueryBuiltinPackageVersion {
		if op.builtinVersionOp == nil {
			op.builtinVersionOp = startAsync(op.c, op.c.readBuiltinVersion)
		}
		if !op.builtinVersionOp.IsDone() {
			return
		}
		if op.builtinVersionOp.Status() != operation.StatusSucceed {
			if op.mode != ModeOffline && !op.hasBuiltinVersionFile() {
				op.c.log.Debug("no built-in manifest, starting without an active manifest")
				op.step = initStepDone
				op.Succeed()
				return
			}
			op.fail(op.builtinVersionOp.Error())
			return
		}
		op.version = op.builtinVersionOp.Value()
		if op.mode == ModeHost {
			op.step = initStepUnpackBuiltinManifest
		} else {
			op.step = initStepLoadBuiltinManifest
		}
	}

	if op.step == initStepUnpackBuiltinManifest {
		if op.unpackOp == nil {
			version := op.version
			op.unpackOp = startAsync(op.c, func(context.Context) (struct{}, error) {
				return struct{}{}, op.c.unpackBuiltinManifest(version)
			})
		}
		if !op.unpackOp.IsDone() {
			return
		}
		if op.unpackOp.Status() != operation.StatusSucceed {
			op.fail(op.unpackOp.Error())
			return
		}
		op.step = initStepLoadBuiltinManifest
	}

	if op.step == initStepLoadBuiltinManifest {
		if op.loadOp == nil {
			version := op.version
			load := func(context.Context) (*manifest.Manifest, error) {
				return op.c.loadBuiltinManifest(version)
			}
			if op.mode == ModeHost {
				load = func(context.Context) (*manifest.Manifest, error) {
					return op.c.cfg.Layout.LoadManifest(version)
				}
			}
			op.loadOp = startAsync(op.c, load)
		}
		if !op.loadOp.IsDone() {
			return
		}
		if op.loadOp.Status() != operation.StatusSucceed {
			op.fail(op.loadOp.Error())
			return
		}
		op.activate(op.loadOp.Value())
	}
}

func (op *InitializationOperation) hasBuiltinVersionFile() bool {
	_, err := os.Stat(op.c.cfg.Layout.BuiltinVersionFilePath())
	return err == nil
}

func (op *InitializationOperation) loadSimulateManifest(context.Context) (*manifest.Manifest, error) {
	if m := op.c.cfg.SimulateManifest; m != nil {
		return m.Clone()
	}
	return manifest.Load(op.c.cfg.SimulateManifestPath)
}

func (op *InitializationOperation) scanCache(ctx context.Context) (cacheindex.ScanResult, error) {
	res, err := op.c.cfg.Cache.Scan(ctx, op.c.cfg.PackageName, op.c.cfg.VerifyLevel)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		// records that could not be checked are dropped, the package still starts
		op.c.log.WithError(err).Warn("cache scan finished with errors")
	}
	op.c.log.Debugf("cache scan: %s", res)
	return res, nil
}

func (op *InitializationOperation) activate(m *manifest.Manifest) {
	if m.PackageName != op.c.cfg.PackageName {
		op.fail(fmt.Sprintf("manifest belongs to package %s, not %s", m.PackageName, op.c.cfg.PackageName))
		return
	}
	op.c.activate(m)
	op.version = m.PackageVersion
	op.step = initStepDone
	op.Succeed()
}

func (op *InitializationOperation) fail(msg string) {
	op.step = initStepDone
	op.Fail(msg)
}
