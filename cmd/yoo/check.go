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
	"github.com/sunny352/YooAsset/pkg/manifest"
	"github.com/sunny352/YooAsset/pkg/playmode"
)

const checkDesc = `
Check compares the active version of the package with the newest version
on the content server.

When the server has a newer version in host mode, its manifest is fetched
into the sandbox and the size of the content that an update would need is
reported. Nothing is activated.
`

type checkOptions struct {
	cfg *commandConfig
}

func newCheckCmd(cfg *commandConfig, out io.Writer) *cobra.Command {
	o := &checkOptions{cfg: cfg}
	return &cobra.Command{
		Use:   "check",
		Short: "check the content server for a newer package version",
		Long:  checkDesc,
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd.Context(), out)
		},
	}
}

func (o *checkOptions) run(ctx context.Context, out io.Writer) error {
	s, err := o.cfg.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	name := s.pkg.Name()
	current, err := s.activeVersion()
	if err != nil {
		return err
	}
	latest, err := s.queryVersion(ctx)
	if err != nil {
		return err
	}

	newer := current == ""
	switch {
	case current == "":
		fmt.Fprintf(out, "Package %s has no active version, the server has %s\n", name, latest)
	default:
		cmp, err := manifest.CompareVersions(current, latest)
		if err != nil {
			// Versions that are not semantic versions are only compared for
			// equality.
			o.cfg.log.Debug(err)
			cmp = 0
			if current != latest {
				cmp = -1
			}
		}
		switch {
		case cmp < 0:
			newer = true
			fmt.Fprintf(out, "Update available for package %s: %s -> %s\n", name, current, latest)
		case cmp == 0:
			fmt.Fprintf(out, "Package %s is up to date (%s)\n", name, current)
		default:
			fmt.Fprintf(out, "Package %s is newer than the server (%s > %s)\n", name, current, latest)
		}
	}

	if !newer {
		return nil
	}
	return s.summarizeUpdate(ctx, latest, out)
}

// summarizeUpdate reports what an update to version would download. Only
// host packages download content.
func (s *session) summarizeUpdate(ctx context.Context, version string, out io.Writer) error {
	mode, err := s.pkg.Mode()
	if err != nil {
		return err
	}
	if mode != playmode.ModeHost {
		return nil
	}
	pre, err := s.pkg.PreDownloadContentAsync(version, s.cfg.updateOptions())
	if err != nil {
		return err
	}
	if err := s.run(ctx, pre); err != nil {
		return err
	}
	batch := pre.CreateDownloaderByAll(s.cfg.batchOptions())
	fmt.Fprintf(out, "%d bundles (%s) to download for version %s\n", batch.TotalCount(), formatSize(batch.TotalBytes()), version)
	return nil
}
