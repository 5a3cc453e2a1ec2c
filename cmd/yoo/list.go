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
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/sunny352/YooAsset/pkg/cli/require"
	"github.com/sunny352/YooAsset/pkg/manifest"
)

var listHelp = `
This command lists the bundles of the active manifest and where each one
is read from: delivery, cache, streaming (built in) or remote.

With --tag only bundles carrying one of the tags are listed.

With --match the assets whose path matches a glob pattern are listed
instead, together with their main bundle:

    $ yoo list --match 'Assets/UI/**'
`

type listOptions struct {
	cfg   *commandConfig
	tags  []string
	match string
}

func newListCmd(cfg *commandConfig, out io.Writer) *cobra.Command {
	o := &listOptions{cfg: cfg}

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "list the bundles of the active manifest",
		Long:    listHelp,
		Aliases: []string{"ls"},
		Args:    require.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd.Context(), out)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&o.tags, "tag", nil, "only list bundles carrying one of these tags")
	f.StringVar(&o.match, "match", "", "list the assets matching this glob pattern")
	return cmd
}

func (o *listOptions) run(ctx context.Context, out io.Writer) error {
	s, err := o.cfg.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	m, err := s.pkg.ActiveManifest()
	if err != nil {
		return err
	}
	mode, err := s.pkg.Mode()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Package %s version %s (%s mode)\n", m.PackageName, m.PackageVersion, mode)

	table := uitable.New()
	table.MaxColWidth = 60
	if o.match != "" {
		err = o.assetTable(s, m, table)
	} else {
		err = o.bundleTable(s, m, table)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, table)
	return nil
}

func (o *listOptions) bundleTable(s *session, m *manifest.Manifest, table *uitable.Table) error {
	table.AddRow("BUNDLE", "SIZE", "TAGS", "SOURCE")
	for _, b := range m.BundleList {
		if len(o.tags) > 0 && !b.HasTag(o.tags) {
			continue
		}
		info, err := s.pkg.ResolveBundle(b)
		if err != nil {
			return err
		}
		table.AddRow(b.BundleName, formatSize(b.FileSize), strings.Join(b.Tags, ","), info.LoadMode)
	}
	return nil
}

func (o *listOptions) assetTable(s *session, m *manifest.Manifest, table *uitable.Table) error {
	assets, err := m.AssetsMatching(o.match)
	if err != nil {
		return err
	}
	table.AddRow("ASSET", "BUNDLE", "SOURCE")
	for _, a := range assets {
		info, err := s.pkg.Resolve(a)
		if err != nil {
			return err
		}
		table.AddRow(a.AssetPath(), info.Bundle.BundleName, info.LoadMode)
	}
	return nil
}
