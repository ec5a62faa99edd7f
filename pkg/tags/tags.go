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

// Package tags turns per-architecture detection outcomes into the
// compatibility-tag set a package resolver consumes.
package tags

import (
	"fmt"
	"sort"

	"github.com/Gosayram/libctag/pkg/libc"
	"github.com/Gosayram/libctag/pkg/platform"
)

// legacyAliases are the historical manylinux tag names and the glibc
// version each one promises. A host satisfies an alias when its detected
// glibc is at least that version.
var legacyAliases = []struct {
	name    string
	version libc.Version
}{
	{"manylinux2014", libc.Version{Major: 2, Minor: 17}},
	{"manylinux2010", libc.Version{Major: 2, Minor: 12}},
	{"manylinux1", libc.Version{Major: 2, Minor: 5}},
}

// CompatibilitySet is the read-only mapping from architecture to the
// maximal glibc version known to be usable there. Architectures whose
// probe did not positively detect glibc are simply absent; absence means
// "unknown or unsupported", never "glibc 0.0".
type CompatibilitySet struct {
	versions map[platform.Architecture]libc.Version
}

// Synthesize builds a CompatibilitySet from a full detection run. Pure
// function of its input: only Detected outcomes contribute entries.
func Synthesize(outcomes map[platform.Architecture]libc.Outcome) *CompatibilitySet {
	versions := map[platform.Architecture]libc.Version{}
	for arch, outcome := range outcomes {
		if outcome.Kind == libc.OutcomeDetected {
			versions[arch] = outcome.Version
		}
	}
	return &CompatibilitySet{versions: versions}
}

// GlibcVersion returns the detected glibc version for arch, if any.
func (c *CompatibilitySet) GlibcVersion(arch platform.Architecture) (libc.Version, bool) {
	v, ok := c.versions[arch]
	return v, ok
}

// Architectures lists the architectures with a detected glibc, sorted.
func (c *CompatibilitySet) Architectures() []platform.Architecture {
	archs := make([]platform.Architecture, 0, len(c.versions))
	for arch := range c.versions {
		archs = append(archs, arch)
	}
	sort.Slice(archs, func(i, j int) bool { return archs[i] < archs[j] })
	return archs
}

// Empty reports whether no architecture detected glibc. The resolver
// treats an empty set as "no architecture-specific packages installable
// here", not as an error.
func (c *CompatibilitySet) Empty() bool {
	return len(c.versions) == 0
}

// Tags renders the manylinux tag strings satisfied by this host, most
// specific first per architecture, in deterministic order across calls.
func (c *CompatibilitySet) Tags() []string {
	var out []string
	for _, arch := range c.Architectures() {
		v := c.versions[arch]
		key := arch.Key()
		out = append(out, fmt.Sprintf("manylinux_%d_%d_%s", v.Major, v.Minor, key))
		for _, alias := range legacyAliases {
			if v.AtLeast(alias.version) {
				out = append(out, fmt.Sprintf("%s_%s", alias.name, key))
			}
		}
	}
	return out
}
