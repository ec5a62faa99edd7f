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

package libc

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const muslBanner = `musl libc (x86_64)
Version 1.2.4
Dynamic Program Loader
Usage: /lib/ld-musl-x86_64.so.1 [options] [--] pathname [args]`

func TestParseMuslBanner(t *testing.T) {
	v, ok := ParseMuslBanner(muslBanner)
	require.True(t, ok)
	assert.Equal(t, Version{Major: 1, Minor: 2}, v)
}

func TestParseMuslBannerTwoComponents(t *testing.T) {
	v, ok := ParseMuslBanner("Version 1.2\n")
	require.True(t, ok)
	assert.Equal(t, Version{Major: 1, Minor: 2}, v)
}

func TestParseMuslBannerRejectsGarbage(t *testing.T) {
	for _, banner := range []string{
		"",
		"no version here",
		"Version \n",
		"Version one.two\n",
		"Version 1\n",
	} {
		_, ok := ParseMuslBanner(banner)
		assert.False(t, ok, "banner %q", banner)
	}
}

func TestMuslLoaderPaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/lib/ld-musl-x86_64.so.1", []byte{0x7f, 'E', 'L', 'F'}, 0o755))
	require.NoError(t, afero.WriteFile(fs, "/lib/ld-musl-aarch64.so.1", []byte{0x7f, 'E', 'L', 'F'}, 0o755))
	require.NoError(t, afero.WriteFile(fs, "/lib/ld-linux-x86-64.so.2", []byte{0x7f, 'E', 'L', 'F'}, 0o755))

	paths := MuslLoaderPaths(fs)
	assert.ElementsMatch(t, []string{
		"/lib/ld-musl-x86_64.so.1",
		"/lib/ld-musl-aarch64.so.1",
	}, paths)
}

func TestMuslLoaderPathsEmpty(t *testing.T) {
	paths := MuslLoaderPaths(afero.NewMemMapFs())
	assert.Empty(t, paths)
}
