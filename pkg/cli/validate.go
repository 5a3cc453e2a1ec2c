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

package cli

import (
	"fmt"

	"github.com/asaskevich/govalidator"

	"github.com/sunny352/YooAsset/pkg/cacheindex"
	"github.com/sunny352/YooAsset/pkg/playmode"
)

// MissingConfigError reports a setting the chosen mode needs.
type MissingConfigError struct {
	string
}

func (e MissingConfigError) Error() string {
	return fmt.Sprintf("missing config error: %s param missing from client configuration", e.string)
}

// InvalidConfigError reports a setting with an unusable value.
type InvalidConfigError struct {
	Field string
	Value string
}

func (e InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config error: %s has an invalid value %q", e.Field, e.Value)
}

// Validate ensures that the settings are usable and returns every problem
// found.
func (s *EnvSettings) Validate() []error {
	errs := make([]error, 0)

	if s.Package == "" {
		appendError(&errs, "Package")
	}
	mode, err := playmode.ParseMode(s.Mode)
	if err != nil {
		errs = append(errs, InvalidConfigError{"Mode", s.Mode})
	}
	if _, err := cacheindex.ParseVerifyLevel(s.VerifyLevel); err != nil {
		errs = append(errs, InvalidConfigError{"VerifyLevel", s.VerifyLevel})
	}

	switch s.RecordDriver {
	case "disk", "memory":
	case "sql":
		if s.SQLConnectionString == "" {
			appendError(&errs, "SQLConnectionString")
		}
	default:
		errs = append(errs, InvalidConfigError{"RecordDriver", s.RecordDriver})
	}

	if err == nil {
		switch mode {
		case playmode.ModeHost, playmode.ModeWeb:
			if s.HostServer == "" {
				appendError(&errs, "HostServer")
			} else if !govalidator.IsRequestURL(s.HostServer) {
				errs = append(errs, InvalidConfigError{"HostServer", s.HostServer})
			}
			if s.FallbackServer != "" && !govalidator.IsRequestURL(s.FallbackServer) {
				errs = append(errs, InvalidConfigError{"FallbackServer", s.FallbackServer})
			}
		case playmode.ModeSimulate:
			if s.SimulateManifest == "" {
				appendError(&errs, "SimulateManifest")
			}
		}
	}

	if s.Retries < 0 {
		errs = append(errs, InvalidConfigError{"Retries", fmt.Sprint(s.Retries)})
	}
	if s.MaxConcurrency < 1 {
		errs = append(errs, InvalidConfigError{"MaxConcurrency", fmt.Sprint(s.MaxConcurrency)})
	}
	if s.RequestsPerSecond < 0 {
		errs = append(errs, InvalidConfigError{"RequestsPerSecond", fmt.Sprint(s.RequestsPerSecond)})
	}
	return errs
}

func appendError(errs *[]error, field string) {
	*errs = append(*errs, MissingConfigError{field})
}
