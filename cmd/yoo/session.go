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

package main

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/sunny352/YooAsset/internal/monitoring"
	"github.com/sunny352/YooAsset/internal/version"
	"github.com/sunny352/YooAsset/pkg/cacheindex"
	"github.com/sunny352/YooAsset/pkg/cacheindex/driver"
	"github.com/sunny352/YooAsset/pkg/cli"
	"github.com/sunny352/YooAsset/pkg/download"
	"github.com/sunny352/YooAsset/pkg/getter"
	"github.com/sunny352/YooAsset/pkg/operation"
	"github.com/sunny352/YooAsset/pkg/playmode"
	"github.com/sunny352/YooAsset/pkg/remote"
	"github.com/sunny352/YooAsset/pkg/resource"
)

// commandConfig is shared by the commands that work on a package.
type commandConfig struct {
	settings *cli.EnvSettings
	log      logrus.FieldLogger
}

// session is one initialized package.
type session struct {
	cfg      *commandConfig
	engine   *resource.Engine
	pkg      *resource.Package
	registry *prometheus.Registry
}

// open validates the settings and initializes the configured package.
func (c *commandConfig) open(ctx context.Context) (*session, error) {
	if errs := c.settings.Validate(); len(errs) > 0 {
		return nil, multierror.Append(nil, errs...)
	}

	s := &session{
		cfg:      c,
		engine:   resource.NewEngine(c.log),
		registry: prometheus.NewRegistry(),
	}
	params, err := c.parameters(s.registry)
	if err != nil {
		return nil, err
	}
	s.pkg, err = s.engine.CreatePackage(c.settings.Package)
	if err != nil {
		s.close()
		return nil, err
	}
	op, err := s.pkg.InitializeAsync(params)
	if err != nil {
		s.close()
		return nil, err
	}
	if err := s.run(ctx, op); err != nil {
		s.close()
		return nil, errors.Wrapf(err, "failed to initialize package %s", c.settings.Package)
	}
	c.log.WithField("mode", params.Mode).Debugf("package %s initialized", c.settings.Package)
	return s, nil
}

func (c *commandConfig) parameters(reg prometheus.Registerer) (resource.Parameters, error) {
	s := c.settings
	mode, err := playmode.ParseMode(s.Mode)
	if err != nil {
		return resource.Parameters{}, err
	}
	level, err := cacheindex.ParseVerifyLevel(s.VerifyLevel)
	if err != nil {
		return resource.Parameters{}, err
	}

	params := resource.DefaultParameters(mode)
	params.BuiltinRoot = s.BuiltinRoot
	params.SandboxRoot = s.SandboxRoot
	params.VerifyLevel = level
	params.DownloadFailedTryAgain = s.Retries
	params.Metrics = monitoring.NewMetrics(reg)
	params.Providers = getter.All(
		getter.WithTimeout(s.Timeout),
		getter.WithUserAgent(version.GetUserAgent()),
	)

	switch mode {
	case playmode.ModeHost, playmode.ModeWeb:
		params.Remote = remote.NewHostServices(s.HostServer, s.FallbackServer, params.Providers)
	case playmode.ModeSimulate:
		params.SimulateManifestPath = s.SimulateManifest
	}

	switch s.RecordDriver {
	case "memory":
		params.Driver = driver.NewMemory(s.Package)
	case "sql":
		d, err := driver.NewSQL(s.SQLConnectionString, s.Package, c.log)
		if err != nil {
			return resource.Parameters{}, errors.Wrap(err, "failed to open the sql record driver")
		}
		params.Driver = d
	}
	return params, nil
}

func (c *commandConfig) updateOptions() playmode.UpdateOptions {
	return playmode.UpdateOptions{
		AppendTimestamp: c.settings.AppendTimestamp,
		Timeout:         c.settings.Timeout,
		Retries:         c.settings.Retries,
	}
}

func (c *commandConfig) batchOptions() download.Options {
	return download.Options{
		MaxConcurrency:    c.settings.MaxConcurrency,
		MaxRetryPerItem:   download.Retries(c.settings.Retries),
		Timeout:           c.settings.Timeout,
		RequestsPerSecond: c.settings.RequestsPerSecond,
	}
}

// run drives op to completion and turns a failed operation into an error.
func (s *session) run(ctx context.Context, op operation.Operation) error {
	if err := s.engine.Run(ctx, op); err != nil {
		return err
	}
	if op.Status() != operation.StatusSucceed {
		return errors.New(op.Error())
	}
	return nil
}

// queryVersion asks the server for the newest package version.
func (s *session) queryVersion(ctx context.Context) (string, error) {
	op, err := s.pkg.UpdatePackageVersionAsync(s.cfg.updateOptions())
	if err != nil {
		return "", err
	}
	if err := s.run(ctx, op); err != nil {
		return "", err
	}
	return op.PackageVersion(), nil
}

// activeVersion returns the active version, or "" when no manifest is
// active yet.
func (s *session) activeVersion() (string, error) {
	v, err := s.pkg.GetPackageVersion()
	if errors.Is(err, playmode.ErrNoActiveManifest) {
		return "", nil
	}
	return v, err
}

func (s *session) writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, s.registry)
}

func (s *session) close() {
	s.engine.Destroy()
}
