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
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	"sigs.k8s.io/yaml"
)

// FileVersion is the manifest format version this package reads.
const FileVersion = "1.5.0"

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["fileVersion", "packageName", "packageVersion", "assetList", "bundleList"],
  "properties": {
    "fileVersion": {"type": "string"},
    "enableAddressable": {"type": "boolean"},
    "locationToLower": {"type": "boolean"},
    "includeAssetGUID": {"type": "boolean"},
    "outputNameStyle": {"type": "integer"},
    "packageName": {"type": "string", "minLength": 1},
    "packageVersion": {"type": "string", "minLength": 1},
    "assetList": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["assetPath", "bundleID"],
        "properties": {
          "address": {"type": "string"},
          "assetPath": {"type": "string", "minLength": 1},
          "assetGUID": {"type": "string"},
          "assetTags": {"type": ["array", "null"], "items": {"type": "string"}},
          "bundleID": {"type": "integer", "minimum": 0},
          "dependIDs": {"type": ["array", "null"], "items": {"type": "integer", "minimum": 0}}
        }
      }
    },
    "bundleList": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["bundleName", "fileHash", "fileSize"],
        "properties": {
          "bundleName": {"type": "string", "minLength": 1},
          "fileHash": {"type": "string", "minLength": 1},
          "fileCRC": {"type": "string"},
          "fileSize": {"type": "integer", "minimum": 0},
          "isRawFile": {"type": "boolean"},
          "tags": {"type": ["array", "null"], "items": {"type": "string"}}
        }
      }
    }
  }
}`

// Load reads and parses a manifest file.
func Load(filename string) (*Manifest, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load manifest %s", filename)
	}
	return m, nil
}

// Parse decodes manifest data (JSON or YAML), validates it and builds the
// lookup indices.
func Parse(data []byte) (*Manifest, error) {
	doc, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidManifest, err.Error())
	}
	if err := validateSchema(doc); err != nil {
		return nil, errors.Wrap(ErrInvalidManifest, err.Error())
	}
	m := &Manifest{}
	if err := json.Unmarshal(doc, m); err != nil {
		return nil, errors.Wrap(ErrInvalidManifest, err.Error())
	}
	if m.FileVersion != FileVersion {
		return nil, errors.Wrapf(ErrInvalidManifest, "the manifest file version %q is not compatible with %q", m.FileVersion, FileVersion)
	}
	if err := m.buildIndices(); err != nil {
		return nil, err
	}
	return m, nil
}

func validateSchema(doc []byte) (reterr error) {
	defer func() {
		if r := recover(); r != nil {
			reterr = fmt.Errorf("unable to validate schema: %s", r)
		}
	}()
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return err
	}
	if !result.Valid() {
		var sb strings.Builder
		for _, desc := range result.Errors() {
			sb.WriteString(fmt.Sprintf("- %s\n", desc))
		}
		return errors.New(sb.String())
	}
	return nil
}

func (m *Manifest) buildIndices() error {
	m.bundles = make(map[string]*Bundle, len(m.BundleList))
	m.cacheGUIDs = make(map[string]*Bundle, len(m.BundleList))
	for _, b := range m.BundleList {
		if b == nil {
			return errors.Wrap(ErrInvalidManifest, "null bundle entry")
		}
		b.init(m.PackageName, m.OutputNameStyle)
		if _, dup := m.bundles[b.BundleName]; dup {
			return errors.Wrapf(ErrInvalidManifest, "bundle name %q has existed", b.BundleName)
		}
		m.bundles[b.BundleName] = b
		m.cacheGUIDs[b.CacheGUID()] = b
	}

	m.assets = make(map[string]*Asset, len(m.AssetList))
	for _, a := range m.AssetList {
		if a == nil {
			return errors.Wrap(ErrInvalidManifest, "null asset entry")
		}
		if _, err := m.bundleAt(a.BundleID); err != nil {
			return errors.Wrapf(ErrInvalidManifest, "asset %q: %s", a.AssetPath, err)
		}
		for _, id := range a.DependIDs {
			if _, err := m.bundleAt(id); err != nil {
				return errors.Wrapf(ErrInvalidManifest, "asset %q dependency: %s", a.AssetPath, err)
			}
		}
		if _, dup := m.assets[a.AssetPath]; dup {
			return errors.Wrapf(ErrInvalidManifest, "asset path %q has existed", a.AssetPath)
		}
		m.assets[a.AssetPath] = a
	}
	return m.buildLocations()
}

func (m *Manifest) buildLocations() error {
	m.locations = make(map[string]string, len(m.AssetList)*2)
	if m.EnableAddressable {
		for _, a := range m.AssetList {
			if a.Address == "" {
				continue
			}
			location := m.foldLocation(a.Address)
			if _, dup := m.locations[location]; dup {
				return errors.Wrapf(ErrInvalidManifest, "address %q has existed", a.Address)
			}
			m.locations[location] = a.AssetPath
		}
	}

	for _, a := range m.AssetList {
		location := m.foldLocation(a.AssetPath)
		if _, taken := m.locations[location]; taken {
			// an address already claims it
			continue
		}
		m.locations[location] = a.AssetPath
	}

	if !m.EnableAddressable {
		// extension-less locations that collide are dropped
		shorts := map[string]bool{}
		ambiguous := map[string]bool{}
		for _, a := range m.AssetList {
			location := m.foldLocation(a.AssetPath)
			ext := path.Ext(location)
			if ext == "" {
				continue
			}
			short := strings.TrimSuffix(location, ext)
			if ambiguous[short] {
				continue
			}
			if _, taken := m.locations[short]; taken {
				if shorts[short] {
					delete(m.locations, short)
					ambiguous[short] = true
				}
				continue
			}
			m.locations[short] = a.AssetPath
			shorts[short] = true
		}
	}

	m.guids = map[string]string{}
	if m.IncludeAssetGUID {
		for _, a := range m.AssetList {
			if a.AssetGUID == "" {
				continue
			}
			if _, dup := m.guids[a.AssetGUID]; dup {
				return errors.Wrapf(ErrInvalidManifest, "asset GUID %q has existed", a.AssetGUID)
			}
			m.guids[a.AssetGUID] = a.AssetPath
		}
	}
	return nil
}

// Marshal encodes the manifest in its JSON wire form.
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
