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
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sunny352/YooAsset/pkg/cli/require"
	"github.com/sunny352/YooAsset/pkg/resource"
)

const cacheHelp = `
This command consists of multiple subcommands to inspect and clear the
bundle cache of the package.
`

const cacheClearDesc = `
Clear deletes cached bundles of the package.

By default every cached bundle is deleted. With --unused only the bundles
the active manifest no longer refers to are deleted. With --sandbox the
whole sandbox of the package is deleted, saved versions and manifests
included.
`

func newCacheCmd(cfg *commandConfig, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "inspect and clear the bundle cache",
		Long:  cacheHelp,
		Args:  require.NoArgs,
	}
	cmd.AddCommand(
		newCacheStatusCmd(cfg, out),
		newCacheClearCmd(cfg, out),
	)
	return cmd
}

func newCacheStatusCmd(cfg *commandConfig, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show the cached bundles of the package",
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := cfg.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			version, err := s.activeVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Package:  %s\n", s.pkg.Name())
			if version == "" {
				fmt.Fprintln(out, "Version:  none")
			} else {
				sandbox, err := s.pkg.GetPackageSandboxRootDirectory()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Version:  %s\n", version)
				fmt.Fprintf(out, "Sandbox:  %s\n", sandbox)
			}
			fmt.Fprintf(out, "Cached:   %d bundles\n", s.engine.Cache().Count(s.pkg.Name()))
			return nil
		},
	}
}

type cacheClearOptions struct {
	cfg     *commandConfig
	unused  bool
	sandbox bool
}

func newCacheClearCmd(cfg *commandConfig, out io.Writer) *cobra.Command {
	o := &cacheClearOptions{cfg: cfg}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "delete cached bundles",
		Long:  cacheClearDesc,
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.unused && o.sandbox {
				return errors.New("--unused and --sandbox cannot be used together")
			}
			return o.run(cmd.Context(), out)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&o.unused, "unused", false, "only delete bundles the active manifest does not refer to")
	f.BoolVar(&o.sandbox, "sandbox", false, "delete the whole sandbox of the package")
	return cmd
}

func (o *cacheClearOptions) run(ctx context.Context, out io.Writer) error {
	s, err := o.cfg.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if o.sandbox {
		if err := s.pkg.ClearPackageSandbox(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed the sandbox of package %s\n", s.pkg.Name())
		return nil
	}

	var op *resource.ClearCacheOperation
	if o.unused {
		op, err = s.pkg.ClearUnusedCacheFilesAsync()
	} else {
		op, err = s.pkg.ClearAllCacheFilesAsync()
	}
	if err != nil {
		return err
	}
	if err := s.run(ctx, op); err != nil {
		return err
	}
	fmt.Fprintf(out, "Removed %d cached bundles\n", op.Removed())
	return nil
}
