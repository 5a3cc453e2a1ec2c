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
	"encoding/json"
	"fmt"
	"io"
	"text/template"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/sunny352/YooAsset/internal/version"
	"github.com/sunny352/YooAsset/pkg/cli/require"
)

const versionDesc = `
Show the version of yoo and the package manifest format it reads.

A manifest whose fileVersion differs from the manifest version printed here
is rejected when a package is initialized or updated.

    $ yoo version
    yoo v1.5 (manifest 1.5.0, commit fe51cd1, go1.24.0 linux/amd64)

--short prints the release only. --output json or --output yaml prints every
field, and --template renders a Go template with the fields .Version,
.ManifestVersion, .GitCommit, .GitTreeState, .GoVersion and .Platform:

    $ yoo version --template='{{.ManifestVersion}}'
    1.5.0
`

type versionOptions struct {
	short        bool
	template     string
	outputFormat string
}

func newVersionCmd(out io.Writer) *cobra.Command {
	o := &versionOptions{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "print the yoo version and the manifest version it reads",
		Long:  versionDesc,
		Args:  require.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return o.run(out)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&o.short, "short", false, "print the release only")
	f.StringVar(&o.template, "template", "", "template for version string format")
	f.StringVarP(&o.outputFormat, "output", "o", "", "prints the build info in the specified format (json|yaml)")

	return cmd
}

func (o *versionOptions) run(out io.Writer) error {
	info := version.Get()
	if o.template != "" {
		tt, err := template.New("version").Parse(o.template)
		if err != nil {
			return err
		}
		return tt.Execute(out, info)
	}

	var (
		data []byte
		err  error
	)
	switch o.outputFormat {
	case "":
		if o.short {
			fmt.Fprintln(out, info.Short())
		} else {
			fmt.Fprintln(out, info)
		}
		return nil
	case "json":
		data, err = json.Marshal(info)
	case "yaml":
		data, err = yaml.Marshal(info)
	default:
		return errors.Errorf("unknown output format %q", o.outputFormat)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	return nil
}
