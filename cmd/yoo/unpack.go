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
	"io"

	"github.com/spf13/cobra"

	"github.com/sunny352/YooAsset/pkg/cli/require"
)

const unpackDesc = `
Unpack copies bundles shipped with the application from the built-in root
into the cache. Bundles that are already cached are skipped.

With --tag only bundles carrying one of the tags are copied.
`

type unpackOptions struct {
	cfg  *commandConfig
	tags []string
}

func newUnpackCmd(cfg *commandConfig, out io.Writer) *cobra.Command {
	o := &unpackOptions{cfg: cfg}

	cmd := &cobra.Command{
		Use:   "unpack",
		Short: "copy built-in bundles into the cache",
		Long:  unpackDesc,
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd.Context(), out)
		},
	}
	cmd.Flags().StringSliceVar(&o.tags, "tag", nil, "only copy bundles carrying one of these tags")
	return cmd
}

func (o *unpackOptions) run(ctx context.Context, out io.Writer) error {
	s, err := o.cfg.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	batch, err := s.pkg.CreateResourceUnpacker(o.tags, o.cfg.batchOptions())
	if err != nil {
		return err
	}
	return runBatch(ctx, s, batch, out, "Unpack")
}
