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

// Package libc defines the libc version model shared by the probe executor,
// the detection orchestrator, and the tag synthesizer.
package libc

import (
	"fmt"
	"strconv"
	"strings"
)

// Family identifies the implementation a detected version belongs to.
type Family string

const (
	// FamilyGlibc is the GNU C library.
	FamilyGlibc Family = "glibc"
	// FamilyMusl is musl libc.
	FamilyMusl Family = "musl"
)

// Version is a major.minor libc version as reported by a probe.
type Version struct {
	Major uint32 `json:"major"`
	Minor uint32 `json:"minor"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast reports whether v satisfies the given minimum version.
func (v Version) AtLeast(other Version) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	return v.Minor >= other.Minor
}

// ParseVersion interprets probe stdout as a libc version. The probe contract
// is a single line of exactly "<major>.<minor>"; surrounding whitespace is
// trimmed, everything else is rejected. Inputs with extra dot segments,
// embedded whitespace, signs, or non-numeric components yield ok=false
// rather than a partial result.
func ParseVersion(raw []byte) (Version, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return Version{}, false
	}

	segments := strings.Split(s, ".")
	if len(segments) != 2 {
		return Version{}, false
	}

	major, ok := parseComponent(segments[0])
	if !ok {
		return Version{}, false
	}
	minor, ok := parseComponent(segments[1])
	if !ok {
		return Version{}, false
	}

	return Version{Major: major, Minor: minor}, true
}

// parseComponent accepts a bare non-negative decimal integer. strconv alone
// is not strict enough here: it tolerates "+1", and we must not.
func parseComponent(s string) (uint32, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
