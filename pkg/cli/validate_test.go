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
	"errors"
	"testing"
)

func TestSettingsValidation(t *testing.T) {
	valid := func() EnvSettings {
		s := *Defaults()
		s.HostServer = "http://127.0.0.1:8080/cdn"
		return s
	}

	tests := []struct {
		name string

		// input
		mutate func(*EnvSettings)

		// expected
		missing []string
		invalid []string
	}{
		{
			name:   "valid host settings",
			mutate: func(*EnvSettings) {},
		},
		{
			name:    "host mode without server",
			mutate:  func(s *EnvSettings) { s.HostServer = "" },
			missing: []string{"HostServer"},
		},
		{
			name:    "malformed urls",
			mutate:  func(s *EnvSettings) { s.HostServer = "not a url"; s.FallbackServer = "::" },
			invalid: []string{"HostServer", "FallbackServer"},
		},
		{
			name:    "offline mode ignores servers",
			mutate:  func(s *EnvSettings) { s.Mode = "offline"; s.HostServer = "" },
			missing: nil,
		},
		{
			name:    "simulate mode needs a manifest",
			mutate:  func(s *EnvSettings) { s.Mode = "simulate" },
			missing: []string{"SimulateManifest"},
		},
		{
			name:    "sql driver needs a connection string",
			mutate:  func(s *EnvSettings) { s.RecordDriver = "sql" },
			missing: []string{"SQLConnectionString"},
		},
		{
			name: "bad values",
			mutate: func(s *EnvSettings) {
				s.Package = ""
				s.Mode = "editor"
				s.VerifyLevel = "paranoid"
				s.RecordDriver = "etcd"
				s.Retries = -1
				s.MaxConcurrency = 0
			},
			missing: []string{"Package"},
			invalid: []string{"Mode", "VerifyLevel", "RecordDriver", "Retries", "MaxConcurrency"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)

			var missing, invalid []string
			for _, err := range s.Validate() {
				var m MissingConfigError
				var i InvalidConfigError
				switch {
				case errors.As(err, &m):
					missing = append(missing, m.string)
				case errors.As(err, &i):
					invalid = append(invalid, i.Field)
				default:
					t.Errorf("unexpected error type %T", err)
				}
			}
			if !equalStrings(missing, tt.missing) {
				t.Errorf("expected missing %v, got %v", tt.missing, missing)
			}
			if !equalStrings(invalid, tt.invalid) {
				t.Errorf("expected invalid %v, got %v", tt.invalid, invalid)
			}
		})
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
