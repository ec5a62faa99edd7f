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
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// muslLoaderArchNames are the architecture components musl uses in its
// dynamic loader filename, /lib/ld-musl-<arch>.so.1. These are musl's own
// spellings and intentionally differ from our architecture identifiers.
var muslLoaderArchNames = []string{
	"x86_64", "aarch64", "i386", "armhf", "powerpc64le", "s390x", "riscv64",
}

// MuslLoaderPaths returns the musl dynamic loader paths present on the host.
// The filesystem is injected so the scan can be exercised against a fake.
func MuslLoaderPaths(fs afero.Fs) []string {
	var found []string
	for _, arch := range muslLoaderArchNames {
		loader := fmt.Sprintf("/lib/ld-musl-%s.so.1", arch)
		if exists, err := afero.Exists(fs, loader); err == nil && exists {
			found = append(found, loader)
		}
	}
	return found
}

// MuslVersion detects the musl version by running the musl dynamic loaders
// found on the host. Invoked with no arguments the loader prints a usage
// banner containing "Version <major>.<minor>" to stderr and exits non-zero;
// the non-zero exit is expected and not treated as a failure.
func MuslVersion(ctx context.Context, fs afero.Fs) (Version, bool) {
	for _, loader := range MuslLoaderPaths(fs) {
		out, err := exec.CommandContext(ctx, loader).CombinedOutput()
		if len(out) == 0 {
			logrus.Debugf("musl loader %s produced no output: %v", loader, err)
			continue
		}
		if v, ok := ParseMuslBanner(string(out)); ok {
			return v, true
		}
		logrus.Debugf("could not parse musl version from %s output", loader)
	}
	return Version{}, false
}

// ParseMuslBanner extracts the version from a musl loader usage banner.
// musl reports a three-component version ("Version 1.2.4"); only the
// major.minor prefix is kept, matching how compatibility tags consume it.
func ParseMuslBanner(banner string) (Version, bool) {
	for _, line := range strings.Split(banner, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "Version ")
		if !ok {
			continue
		}
		segments := strings.Split(strings.TrimSpace(rest), ".")
		if len(segments) < 2 {
			continue
		}
		major, ok := parseComponent(segments[0])
		if !ok {
			continue
		}
		minor, ok := parseComponent(segments[1])
		if !ok {
			continue
		}
		return Version{Major: major, Minor: minor}, true
	}
	return Version{}, false
}
