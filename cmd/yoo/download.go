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
	"github.com/sunny352/YooAsset/pkg/download"
)

const downloadDesc = `
Download fetches bundles of the package from the content server into the
cache. Bundles that are delivered, built in or already cached are skipped.

With --tag only untagged bundles and bundles carrying one of the tags are
fetched. With --location only the bundles needed by those assets, their
dependencies included, are fetched.

With --version the bundles of a version that is not active yet are fetched,
so that a later 'yoo update VERSION' finds them cached.

	$ yoo download --tag dlc1
	$ yoo download --location Assets/UI/main.prefab
	$ yoo download --version 1.3.0
`

type downloadOptions struct {
	cfg         *commandConfig
	tags        []string
	locations   []string
	version     string
	metricsFile string
}

func newDownloadCmd(cfg *commandConfig, out io.Writer) *cobra.Command {
	o := &downloadOptions{cfg: cfg}

	cmd := &cobra.Command{
		Use:   "download",
		Short: "download bundles of the package into the cache",
		Long:  downloadDesc,
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(o.tags) > 0 && len(o.locations) > 0 {
				return errors.New("--tag and --location cannot be used together")
			}
			return o.run(cmd.Context(), out)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&o.tags, "tag", nil, "only download untagged bundles and bundles carrying one of these tags")
	f.StringSliceVar(&o.locations, "location", nil, "only download the bundles needed by these assets")
	f.StringVar(&o.version, "version", "", "download the bundles of this version without activating it")
	f.StringVar(&o.metricsFile, "metrics-file", "", "write transfer metrics in the Prometheus text format to this file")

	return cmd
}

func (o *downloadOptions) run(ctx context.Context, out io.Writer) error {
	s, err := o.cfg.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	batch, err := o.batch(ctx, s)
	if err != nil {
		return err
	}
	err = runBatch(ctx, s, batch, out, "Download")
	if merr := s.writeMetrics(o.metricsFile); merr != nil && err == nil {
		err = errors.Wrap(merr, "failed to write metrics")
	}
	return err
}

func (o *downloadOptions) batch(ctx context.Context, s *session) (*download.Batch, error) {
	opts := o.cfg.batchOptions()
	if o.version == "" {
		if len(o.locations) > 0 {
			return s.pkg.CreateBundleDownloader(o.locations, opts)
		}
		return s.pkg.CreateResourceDownloader(o.tags, opts)
	}

	pre, err := s.pkg.PreDownloadContentAsync(o.version, o.cfg.updateOptions())
	if err != nil {
		return nil, err
	}
	if err := s.run(ctx, pre); err != nil {
		return nil, err
	}
	switch {
	case len(o.locations) > 0:
		return pre.CreateDownloaderByPaths(o.locations, opts)
	case len(o.tags) > 0:
		return pre.CreateDownloaderByTags(o.tags, opts), nil
	}
	return pre.CreateDownloaderByAll(opts), nil
}

// runBatch runs a download or unpack batch and reports its outcome.
func runBatch(ctx context.Context, s *session, batch *download.Batch, out io.Writer, verb string) error {
	if batch.TotalCount() == 0 {
		fmt.Fprintf(out, "Nothing to %s\n", lowerVerb(verb))
		return nil
	}

	p := newProgress(out, verb)
	p.attach(batch)
	batch.Begin()
	err := s.run(ctx, batch)
	p.clear()
	if err != nil {
		batch.Cancel()
		return errors.Wrapf(err, "%s failed after %d of %d bundles", lowerVerb(verb), batch.CurrentCount(), batch.TotalCount())
	}
	fmt.Fprintf(out, "%sed %d bundles (%s)\n", verb, batch.CurrentCount(), formatSize(batch.CurrentBytes()))
	return nil
}
