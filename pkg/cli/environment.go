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

/*Package cli describes the operating environment for the yoo CLI.

Settings are layered: built-in defaults, then the TOML file named by
$YOO_CONFIG (or the default config file when it exists), then YOO_*
environment variables, then command-line flags.
*/
package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/sunny352/YooAsset/internal/fileutil"
	"github.com/sunny352/YooAsset/pkg/download"
	"github.com/sunny352/YooAsset/pkg/yoopath"
)

// ConfigEnvVar names the settings file.
const ConfigEnvVar = "YOO_CONFIG"

const envPrefix = "YOO"

// EnvSettings describes all of the environment settings.
type EnvSettings struct {
	// ConfigFile is the settings file that was read, if any.
	ConfigFile string `toml:"-" ignored:"true"`

	// Package is the name of the content package.
	Package string `toml:"package" split_words:"true"`
	// Mode is the play mode: simulate, offline, host or web.
	Mode string `toml:"mode" split_words:"true"`
	// HostServer is the base URL of the content server.
	HostServer string `toml:"host_server" split_words:"true"`
	// FallbackServer is tried when HostServer fails.
	FallbackServer string `toml:"fallback_server" split_words:"true"`
	// BuiltinRoot holds the content shipped with the application.
	BuiltinRoot string `toml:"builtin_root" split_words:"true"`
	// SandboxRoot holds downloaded content.
	SandboxRoot string `toml:"sandbox_root" split_words:"true"`
	// SimulateManifest is the manifest file served in simulate mode.
	SimulateManifest string `toml:"simulate_manifest" split_words:"true"`
	// VerifyLevel is low, middle or high.
	VerifyLevel string `toml:"verify_level" split_words:"true"`
	// RecordDriver stores cache records: disk, memory or sql.
	RecordDriver string `toml:"record_driver" split_words:"true"`
	// SQLConnectionString is used by the sql record driver.
	SQLConnectionString string `toml:"sql_connection_string" split_words:"true"`
	// Timeout bounds every network attempt.
	Timeout time.Duration `toml:"timeout" split_words:"true"`
	// Retries is the retry budget of every transfer.
	Retries int `toml:"retries" split_words:"true"`
	// MaxConcurrency bounds parallel transfers.
	MaxConcurrency int `toml:"max_concurrency" split_words:"true"`
	// RequestsPerSecond throttles transfer starts. Zero disables it.
	RequestsPerSecond float64 `toml:"requests_per_second" split_words:"true"`
	// AppendTimestamp adds a cache-busting query to manifest requests.
	AppendTimestamp bool `toml:"append_timestamp" split_words:"true"`
	// Debug indicates whether or not yoo is running in Debug mode.
	Debug bool `toml:"debug" split_words:"true"`
}

// Defaults returns the settings used when nothing else is configured.
func Defaults() *EnvSettings {
	return &EnvSettings{
		Package:        "DefaultPackage",
		Mode:           "host",
		BuiltinRoot:    yoopath.BuiltinRoot(),
		SandboxRoot:    yoopath.SandboxRoot(),
		VerifyLevel:    "middle",
		RecordDriver:   "disk",
		Timeout:        download.DefaultTimeout,
		Retries:        download.DefaultMaxRetryPerItem,
		MaxConcurrency: download.DefaultMaxConcurrency,
	}
}

// New returns the defaults overridden by the settings file and the
// environment.
func New() (*EnvSettings, error) {
	env := Defaults()

	path, explicit := os.LookupEnv(ConfigEnvVar)
	if !explicit {
		path = yoopath.ConfigFile()
	}
	if explicit || fileutil.Exists(path) {
		if err := env.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(envPrefix, env); err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}
	return env, nil
}

// LoadFile overrides the settings with the ones set in a TOML file.
func (s *EnvSettings) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, s)
	if err != nil {
		return errors.Wrapf(err, "failed to read settings file %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("unknown settings in %s: %v", path, undecoded)
	}
	s.ConfigFile = path
	return nil
}

// AddFlags binds flags to the given flagset.
func (s *EnvSettings) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&s.Package, "package", "p", s.Package, "name of the content package")
	fs.StringVar(&s.Mode, "mode", s.Mode, "play mode: simulate, offline, host or web")
	fs.StringVar(&s.HostServer, "host-server", s.HostServer, "base URL of the content server")
	fs.StringVar(&s.FallbackServer, "fallback-server", s.FallbackServer, "base URL tried when the content server fails")
	fs.StringVar(&s.BuiltinRoot, "builtin-root", s.BuiltinRoot, "directory holding the content shipped with the application")
	fs.StringVar(&s.SandboxRoot, "sandbox-root", s.SandboxRoot, "directory holding downloaded content")
	fs.StringVar(&s.SimulateManifest, "simulate-manifest", s.SimulateManifest, "manifest file served in simulate mode")
	fs.StringVar(&s.VerifyLevel, "verify-level", s.VerifyLevel, "how cached files are checked at start: low, middle or high")
	fs.StringVar(&s.RecordDriver, "record-driver", s.RecordDriver, "where cache records are kept: disk, memory or sql")
	fs.StringVar(&s.SQLConnectionString, "sql-connection-string", s.SQLConnectionString, "connection string of the sql record driver")
	fs.DurationVar(&s.Timeout, "timeout", s.Timeout, "time to wait for any single network request")
	fs.IntVar(&s.Retries, "retries", s.Retries, "number of times a failed transfer is retried")
	fs.IntVar(&s.MaxConcurrency, "max-concurrency", s.MaxConcurrency, "maximum number of parallel transfers")
	fs.Float64Var(&s.RequestsPerSecond, "requests-per-second", s.RequestsPerSecond, "limit on transfers started per second, 0 for none")
	fs.BoolVar(&s.AppendTimestamp, "append-timestamp", s.AppendTimestamp, "append a timestamp to manifest requests")
	fs.BoolVar(&s.Debug, "debug", s.Debug, "enable verbose output")
}

// EnvVars returns the settings as YOO_* variables.
func (s *EnvSettings) EnvVars() map[string]string {
	return map[string]string{
		"YOO_BIN":                   os.Args[0],
		"YOO_CACHE_HOME":            yoopath.CachePath(""),
		"YOO_CONFIG_HOME":           yoopath.ConfigPath(""),
		"YOO_DATA_HOME":             yoopath.DataPath(""),
		"YOO_CONFIG":                s.ConfigFile,
		"YOO_PACKAGE":               s.Package,
		"YOO_MODE":                  s.Mode,
		"YOO_HOST_SERVER":           s.HostServer,
		"YOO_FALLBACK_SERVER":       s.FallbackServer,
		"YOO_BUILTIN_ROOT":          s.BuiltinRoot,
		"YOO_SANDBOX_ROOT":          s.SandboxRoot,
		"YOO_SIMULATE_MANIFEST":     s.SimulateManifest,
		"YOO_VERIFY_LEVEL":          s.VerifyLevel,
		"YOO_RECORD_DRIVER":         s.RecordDriver,
		"YOO_TIMEOUT":               s.Timeout.String(),
		"YOO_RETRIES":               strconv.Itoa(s.Retries),
		"YOO_MAX_CONCURRENCY":       strconv.Itoa(s.MaxConcurrency),
		"YOO_REQUESTS_PER_SECOND":   fmt.Sprint(s.RequestsPerSecond),
		"YOO_APPEND_TIMESTAMP":      fmt.Sprint(s.AppendTimestamp),
		"YOO_DEBUG":                 fmt.Sprint(s.Debug),
		"YOO_SQL_CONNECTION_STRING": redact(s.SQLConnectionString),
	}
}

func redact(v string) string {
	if v == "" {
		return ""
	}
	return "<redacted>"
}
