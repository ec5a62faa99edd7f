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

package platform

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// binfmtMiscDir is the procfs directory listing the kernel's registered
// binary-format handlers, one file per registration.
const binfmtMiscDir = "/proc/sys/fs/binfmt_misc"

// binfmtArchitectures maps binfmt_misc registration names to the foreign
// architecture the handler executes. The qemu-* names are what qemu-user
// and Docker's binfmt images register; rosetta is Apple's x86_64 translator
// inside Linux VMs.
var binfmtArchitectures = map[string]Architecture{
	"qemu-x86_64":  X8664,
	"qemu-i386":    I686,
	"qemu-aarch64": Aarch64,
	"qemu-arm":     Armv7l,
	"qemu-ppc64le": Ppc64le,
	"qemu-s390x":   S390x,
	"qemu-riscv64": Riscv64,
	"rosetta":      X8664,
}

// emulatedArchitectures scans binfmt_misc for enabled emulation handlers.
// The scan is strictly best-effort: a missing or unreadable binfmt_misc
// (not mounted, locked-down container) yields an empty set, never an error.
func (e *Enumerator) emulatedArchitectures() []Architecture {
	entries, err := afero.ReadDir(e.fs, binfmtMiscDir)
	if err != nil {
		logrus.Debugf("binfmt_misc not available: %v", err)
		return nil
	}

	var archs []Architecture
	for _, entry := range entries {
		name := entry.Name()
		if name == "register" || name == "status" || entry.IsDir() {
			continue
		}

		arch, ok := binfmtArchitectures[name]
		if !ok {
			logrus.Debugf("Ignoring unrecognized binfmt_misc entry %q", name)
			continue
		}

		raw, err := afero.ReadFile(e.fs, binfmtMiscDir+"/"+name)
		if err != nil {
			logrus.Debugf("Could not read binfmt_misc entry %q: %v", name, err)
			continue
		}
		if !binfmtEntryEnabled(string(raw)) {
			logrus.Debugf("binfmt_misc entry %q is disabled", name)
			continue
		}

		archs = append(archs, arch)
	}
	return archs
}

// binfmtEntryEnabled parses a binfmt_misc registration file. The first line
// is "enabled" or "disabled"; subsequent lines carry the interpreter path,
// flags, and magic and are irrelevant here.
func binfmtEntryEnabled(contents string) bool {
	first, _, _ := strings.Cut(contents, "\n")
	return strings.TrimSpace(first) == "enabled"
}
