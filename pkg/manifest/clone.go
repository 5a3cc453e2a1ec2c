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

package manifest

import (
	"github.com/mitchellh/copystructure"
	"github.com/pkg/errors"
)

// Clone returns a deep copy of m with its own lookup indices.
func (m *Manifest) Clone() (*Manifest, error) {
	v, err := copystructure.Copy(m)
	if err != nil {
		return nil, errors.Wrap(err, "failed to copy manifest")
	}
	c := v.(*Manifest)
	if err := c.buildIndices(); err != nil {
		return nil, err
	}
	return c, nil
}
