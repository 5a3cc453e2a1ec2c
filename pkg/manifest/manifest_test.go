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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDemo(t *testing.T) *Manifest {
	t.Helper()
	m, err := Load("testdata/demo.json")
	require.NoError(t, err)
	return m
}

func TestLoad(t *testing.T) {
	m := loadDemo(t)

	assert.Equal(t, "Demo", m.PackageName)
	assert.Equal(t, "1.2.0", m.PackageVersion)
	require.Len(t, m.BundleList, 3)
	require.Len(t, m.AssetList, 3)

	core := m.BundleList[0]
	assert.Equal(t, "Demo", core.PackageName)
	assert.Equal(t, ".bundle", core.FileExtension)
	assert.Equal(t, "core_c0ffee01.bundle", core.FileName)
	assert.Equal(t, "c0ffee01", core.CacheGUID())
	assert.False(t, core.HasAnyTags())
	assert.True(t, m.BundleList[1].HasTag([]string{"dlc2", "dlc1"}))
	assert.False(t, m.BundleList[1].HasTag([]string{"dlc2"}))
}

func TestParseYAML(t *testing.T) {
	m, err := Load("testdata/addressable.yaml")
	require.NoError(t, err)

	assert.Equal(t, "abcd.bundle", m.BundleList[0].FileName)

	tests := []struct {
		location string
		expect   string
	}{
		{"Hero", "Assets/Hero/Hero.prefab"},
		{"HERO", "Assets/Hero/Hero.prefab"},
		{"assets/hero/sword.prefab", "Assets/Hero/Sword.prefab"},
		{"Assets/Hero/Sword", ""},
		{"missing", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expect, m.TryMappingToAssetPath(tt.location), tt.location)
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := Load("testdata/bad-index.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidManifest))

	tests := map[string]string{
		"missing package name": `{"fileVersion":"1.5.0","packageVersion":"1","assetList":[],"bundleList":[]}`,
		"wrong file version":   `{"fileVersion":"0.9","packageName":"Demo","packageVersion":"1","assetList":[],"bundleList":[]}`,
		"duplicate asset path": `{"fileVersion":"1.5.0","packageName":"Demo","packageVersion":"1",
			"assetList":[{"assetPath":"a","bundleID":0},{"assetPath":"a","bundleID":0}],
			"bundleList":[{"bundleName":"b","fileHash":"h","fileSize":1}]}`,
		"bad dependency": `{"fileVersion":"1.5.0","packageName":"Demo","packageVersion":"1",
			"assetList":[{"assetPath":"a","bundleID":0,"dependIDs":[7]}],
			"bundleList":[{"bundleName":"b","fileHash":"h","fileSize":1}]}`,
		"not a document": `[1, 2`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidManifest), err.Error())
		})
	}
}

func TestLookups(t *testing.T) {
	m := loadDemo(t)

	main, err := m.MainBundle("Assets/UI/main.prefab")
	require.NoError(t, err)
	assert.Equal(t, "core.bundle", main.BundleName)

	deps, err := m.Dependencies("Assets/UI/main.prefab")
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "dlc1.bundle", deps[0].BundleName)

	_, err = m.MainBundle("Assets/none.prefab")
	assert.True(t, errors.Is(err, ErrAssetNotFound))

	name, err := m.BundleName(2)
	require.NoError(t, err)
	assert.Equal(t, "dlc2.bundle", name)

	_, err = m.BundleName(5)
	assert.True(t, errors.Is(err, ErrBundleNotFound))

	b, err := m.Bundle("dlc1.bundle")
	require.NoError(t, err)
	assert.Equal(t, int64(20), b.FileSize)

	assert.True(t, m.IsIncludeBundleFile("c0ffee03"))
	assert.False(t, m.IsIncludeBundleFile("deadbeef"))
}

func TestConvertLocationToAssetInfo(t *testing.T) {
	m := loadDemo(t)

	info := m.ConvertLocationToAssetInfo("Assets/DLC1/boss", "GameObject")
	require.False(t, info.IsInvalid(), info.Error)
	assert.Equal(t, "Assets/DLC1/boss.prefab", info.AssetPath())
	assert.Equal(t, "GameObject", info.AssetType)
	assert.Equal(t, "boss", info.Address())

	// addresses are ignored unless the manifest is addressable
	info = m.ConvertLocationToAssetInfo("boss", "")
	assert.True(t, info.IsInvalid())
	assert.Equal(t, "The location is invalid : boss", info.Error)

	info = m.ConvertLocationToAssetInfo("", "")
	assert.True(t, info.IsInvalid())
	assert.Equal(t, "", info.AssetPath())

	info = m.ConvertAssetGUIDToAssetInfo("g-map", "")
	require.False(t, info.IsInvalid())
	assert.Equal(t, "Assets/DLC2/map.asset", info.AssetPath())

	info = m.ConvertAssetGUIDToAssetInfo("g-none", "")
	assert.True(t, info.IsInvalid())
}

func TestAmbiguousShortLocation(t *testing.T) {
	doc := `{"fileVersion":"1.5.0","packageName":"Demo","packageVersion":"1",
		"assetList":[{"assetPath":"a/x.png","bundleID":0},{"assetPath":"a/x.prefab","bundleID":0}],
		"bundleList":[{"bundleName":"b","fileHash":"h","fileSize":1}]}`
	m, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "", m.TryMappingToAssetPath("a/x"))
	assert.Equal(t, "a/x.png", m.TryMappingToAssetPath("a/x.png"))
}

func TestAssetsByTagsAndPattern(t *testing.T) {
	m := loadDemo(t)

	infos := m.AssetsInfoByTags([]string{"dlc1", "dlc2"})
	require.Len(t, infos, 2)
	assert.Equal(t, "Assets/DLC1/boss.prefab", infos[0].AssetPath())
	assert.Equal(t, "Assets/DLC2/map.asset", infos[1].AssetPath())

	assert.Empty(t, m.AssetsInfoByTags(nil))

	infos, err := m.AssetsMatching("Assets/DLC*/**")
	require.NoError(t, err)
	assert.Len(t, infos, 2)

	infos, err = m.AssetsMatching("**.prefab")
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestMarshal(t *testing.T) {
	m := loadDemo(t)

	data, err := m.Marshal()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"packageVersion": "1.2.0"`))

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, m.BundleList[1].FileName, again.BundleList[1].FileName)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "PackageManifest_Demo.version", VersionFileName("Demo"))
	assert.Equal(t, "PackageManifest_Demo_1.2.0.json", FileName("Demo", "1.2.0"))
	assert.Equal(t, "PackageManifest_Demo_1.2.0.hash", HashFileName("Demo", "1.2.0"))
}

func TestCompareVersions(t *testing.T) {
	c, err := CompareVersions("1.2.0", "1.10.0")
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = CompareVersions("v2.0.0", "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	_, err = CompareVersions("latest", "1.0.0")
	assert.Error(t, err)
}

func TestClone(t *testing.T) {
	m := loadDemo(t)
	c, err := m.Clone()
	require.NoError(t, err)

	c.BundleList[0].Tags = []string{"changed"}
	assert.Empty(t, m.BundleList[0].Tags)

	b, err := c.MainBundle("Assets/UI/main.prefab")
	require.NoError(t, err)
	assert.Same(t, c.BundleList[0], b)
	assert.Equal(t, "core_c0ffee01.bundle", b.FileName)
}
