/*
Copyright 2024 Google LLC

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

package probe

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gosayram/libctag/pkg/platform"
)

func TestLookup(t *testing.T) {
	fsys := fstest.MapFS{
		"glibc-detector-x86_64":  {Data: []byte{0x7f, 'E', 'L', 'F', 1}},
		"glibc-detector-aarch64": {Data: []byte{0x7f, 'E', 'L', 'F', 2}},
	}
	r := NewRegistry(fsys)

	b, ok := r.Lookup(platform.X8664)
	require.True(t, ok)
	assert.Equal(t, platform.X8664, b.Arch)
	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F', 1}, b.Data)
	assert.Equal(t, OutputSchemaV1, b.SchemaVersion)
	assert.NotEmpty(t, b.MinKernel)

	_, ok = r.Lookup(platform.S390x)
	assert.False(t, ok)
}

func TestLookupUnknownArchitecture(t *testing.T) {
	r := NewRegistry(fstest.MapFS{})
	_, ok := r.Lookup(platform.Architecture("sparc64-linux"))
	assert.False(t, ok)
}

func TestNewRegistrySkipsUnrelatedFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"README.md":                   {Data: []byte("docs")},
		"glibc-detector-sparc64":      {Data: []byte{1}},
		"glibc-detector-armv7l":       {Data: []byte{2}},
		"not-a-detector":              {Data: []byte{3}},
		"glibc-detector-armv7l.debug": {Data: []byte{4}},
	}
	r := NewRegistry(fsys)

	assert.Equal(t, []platform.Architecture{platform.Armv7l}, r.Architectures())
}

func TestArchitecturesSorted(t *testing.T) {
	fsys := fstest.MapFS{
		"glibc-detector-x86_64":  {Data: []byte{1}},
		"glibc-detector-aarch64": {Data: []byte{2}},
		"glibc-detector-s390x":   {Data: []byte{3}},
	}
	r := NewRegistry(fsys)

	assert.Equal(t, []platform.Architecture{
		platform.Aarch64,
		platform.S390x,
		platform.X8664,
	}, r.Architectures())
}

func TestDefaultRegistryIsStable(t *testing.T) {
	assert.Same(t, Default(), Default())
}
