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
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sunny352/YooAsset/pkg/cli"
	"github.com/sunny352/YooAsset/pkg/cli/require"
)

var envHelp = `
Env prints out all the environment information in use by yoo.

Secrets such as the sql connection string are redacted.
`

func newEnvCmd(out io.Writer, settings *cli.EnvSettings) *cobra.Command {
	return &cobra.Command{
		Use:   "env [NAME]",
		Short: "yoo client environment information",
		Long:  envHelp,
		Args:  require.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return sortedKeys(settings.EnvVars()), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		Run: func(_ *cobra.Command, args []string) {
			envVars := settings.EnvVars()
			if len(args) == 0 {
				for _, k := range sortedKeys(envVars) {
					fmt.Fprintf(out, "%s=\"%s\"\n", k, envVars[k])
				}
				return
			}
			fmt.Fprintf(out, "%s\n", envVars[args[0]])
		},
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
