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

	"github.com/spf13/cobra"

	"github.com/sunny352/YooAsset/pkg/cli/require"
)

const updateDesc = `
Update activates a manifest version of the package.

Without VERSION the newest version is asked from the content server. The
manifest of the version is downloaded, verified against its hash and
activated. Unless --no-save is given the version is also the one loaded
at the next start.

Bundles are not fetched unless --download is given; 'yoo download' does
that later.

	$ yoo update
	$ yoo update 1.2.0 --download
`

type updateOptions struct {
	cfg      *commandConfig
	noSave   bool
	download bool
	tags     []string
}

func newUpdateCmd(cfg *commandConfig, out io.Writer) *cobra.Command {
	o := &updateOptions{cfg: cfg}

	cmd := &cobra.Command{
		Use:     "update [VERSION]",
		Aliases: []string{"up"},
		Short:   "activate a new manifest version of the package",
		Long:    updateDesc,
		Args:    require.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := ""
			if len(args) == 1 {
				version = args[0]
			}
			return o.run(cmd.Context(), out, version)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&o.noSave, "no-save", false, "do not load this version at the next start")
	f.BoolVar(&o.download, "download", false, "download the remote bundles of the version after activating it")
	f.StringSliceVar(&o.tags, "tag", nil, "with --download, only download untagged bundles and bundles carrying one of these tags")

	return cmd
}

func (o *updateOptions) run(ctx context.Context, out io.Writer, version string) error {
	s, err := o.cfg.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if version == "" {
		fmt.Fprintln(out, "Hang tight while we grab the latest version from the content server...")
		if version, err = s.queryVersion(ctx); err != nil {
			return err
		}
	}

	op, err := s.pkg.UpdatePackageManifestAsync(version, !o.noSave, o.cfg.updateOptions())
	if err != nil {
		return err
	}
	if err := s.run(ctx, op); err != nil {
		return err
	}
	fmt.Fprintf(out, "Package %s updated to version %s\n", s.pkg.Name(), version)

	if !o.download {
		return nil
	}
	batch, err := s.pkg.CreateResourceDownloader(o.tags, o.cfg.batchOptions())
	if err != nil {
		return err
	}
	return runBatch(ctx, s, batch, out, "Download")
}
