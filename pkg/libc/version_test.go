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

	"github.com/stretchr/testify/assert"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Version
		ok    bool
	}{
		{name: "plain", input: "2.31", want: Version{2, 31}, ok: true},
		{name: "trailing newline", input: "2.31\n", want: Version{2, 31}, ok: true},
		{name: "surrounding whitespace", input: "  2.17\t\n", want: Version{2, 17}, ok: true},
		{name: "zero components", input: "0.0", want: Version{0, 0}, ok: true},
		{name: "large minor", input: "2.4294967295", want: Version{2, 4294967295}, ok: true},
		{name: "empty", input: "", ok: false},
		{name: "whitespace only", input: "  \n", ok: false},
		{name: "single segment", input: "2", ok: false},
		{name: "three segments", input: "2.31.1", ok: false},
		{name: "non-numeric major", input: "x.31", ok: false},
		{name: "non-numeric minor", input: "2.y", ok: false},
		{name: "embedded whitespace", input: "2. 31", ok: false},
		{name: "extra token", input: "2.31 glibc", ok: false},
		{name: "signed component", input: "+2.31", ok: false},
		{name: "negative component", input: "2.-31", ok: false},
		{name: "empty segment", input: "2.", ok: false},
		{name: "leading dot", input: ".31", ok: false},
		{name: "hex component", input: "0x2.31", ok: false},
		{name: "overflow", input: "4294967296.0", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseVersion([]byte(tt.input))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "2.31", Version{Major: 2, Minor: 31}.String())
}

func TestVersionAtLeast(t *testing.T) {
	v := Version{Major: 2, Minor: 31}

	assert.True(t, v.AtLeast(Version{2, 31}))
	assert.True(t, v.AtLeast(Version{2, 17}))
	assert.True(t, v.AtLeast(Version{1, 99}))
	assert.False(t, v.AtLeast(Version{2, 32}))
	assert.False(t, v.AtLeast(Version{3, 0}))
}
