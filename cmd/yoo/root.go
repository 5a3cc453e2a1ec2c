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
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sunny352/YooAsset/internal/logging"
	"github.com/sunny352/YooAsset/pkg/cli"
)

var globalUsage = `Manage versioned content packages.

A package is described by a manifest that lists its bundles and the assets
they hold. yoo keeps a local copy of a package up to date with a content
server: it asks the server for the newest version, activates its manifest
and downloads the bundles that are not already built in or cached.

Common actions for yoo:

- yoo check:     compare the local package version with the server
- yoo update:    activate a new manifest version
- yoo download:   fetch bundles from the server into the cache
- yoo list:       show the bundles of the active manifest and where they are read from

Settings are read from built-in defaults, then the TOML file named by
$YOO_CONFIG (default: $YOO_CONFIG_HOME/config.toml), then the environment,
then flags.

Environment variables:

| Name                      | Description                                                   |
|---------------------------|---------------------------------------------------------------|
| $YOO_CONFIG               | set the settings file.                                        |
| $YOO_CACHE_HOME           | set an alternative location for the default sandbox root.     |
| $YOO_CONFIG_HOME          | set an alternative location for the default settings file.    |
| $YOO_DATA_HOME            | set an alternative location for the default built-in root.    |
| $YOO_PACKAGE              | set the name of the content package.                          |
| $YOO_MODE                 | set the play mode: simulate, offline, host or web.            |
| $YOO_HOST_SERVER          | set the base URL of the content server.                       |
| $YOO_FALLBACK_SERVER      | set the base URL tried when the content server fails.         |
| $YOO_RECORD_DRIVER        | set where cache records are kept: disk, memory or sql.        |
| $YOO_SQL_CONNECTION_STRING| set the connection string the sql record driver should use.   |
| $YOO_DEBUG                | indicate whether or not yoo is running in debug mode.         |
`

func newRootCmd(out io.Writer, args []string) (*cobra.Command, error) {
	settings, err := cli.New()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(os.Stderr, func() bool { return settings.Debug })
	return newRootCmdWithSettings(settings, logger, out, args), nil
}

func newRootCmdWithSettings(settings *cli.EnvSettings, logger logrus.FieldLogger, out io.Writer, args []string) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "yoo",
		Short:        "The content package manager.",
		Long:         globalUsage,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	settings.AddFlags(flags)

	// Errors are ignored here; cobra reports them when the command runs.
	// Parsing early lets the logger see --debug.
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.Parse(args)

	cfg := &commandConfig{settings: settings, log: logger}
	cmd.AddCommand(
		newVersionCmd(out),
		newEnvCmd(out, settings),
		newCheckCmd(cfg, out),
		newUpdateCmd(cfg, out),
		newDownloadCmd(cfg, out),
		newUnpackCmd(cfg, out),
		newListCmd(cfg, out),
		newCacheCmd(cfg, out),
	)
	return cmd
}
