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

// Package platform enumerates the CPU architectures the running host can
// execute: the native architecture reported by the kernel plus any foreign
// architectures reachable through binfmt_misc emulation handlers.
package platform

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/containerd/platforms"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// Architecture is a normalized "<machine>-linux" identifier for an
// instruction-set/ABI combination the host may be able to execute.
// Architectures are produced by enumeration or by parsing a caller
// specifier, never invented ad hoc.
type Architecture string

// Architectures with prebuilt glibc probes.
const (
	X8664   Architecture = "x86_64-linux"
	I686    Architecture = "i686-linux"
	Aarch64 Architecture = "aarch64-linux"
	Armv7l  Architecture = "armv7l-linux"
	Ppc64le Architecture = "ppc64le-linux"
	S390x   Architecture = "s390x-linux"
	Riscv64 Architecture = "riscv64-linux"
)

// Key returns the bare machine component, used to key probe binaries.
func (a Architecture) Key() string {
	return strings.TrimSuffix(string(a), "-linux")
}

func (a Architecture) String() string {
	return string(a)
}

// machineArchitectures maps uname machine strings to architectures. Several
// kernel spellings collapse onto one identifier (i586/i686, armv6l/armv7l).
var machineArchitectures = map[string]Architecture{
	"x86_64":  X8664,
	"i386":    I686,
	"i486":    I686,
	"i586":    I686,
	"i686":    I686,
	"aarch64": Aarch64,
	"armv6l":  Armv7l,
	"armv7l":  Armv7l,
	"armv8l":  Armv7l,
	"ppc64le": Ppc64le,
	"s390x":   S390x,
	"riscv64": Riscv64,
}

// goarchArchitectures maps Go/OCI architecture names (as used in
// "linux/amd64"-style platform specifiers) to architectures.
var goarchArchitectures = map[string]Architecture{
	"amd64":   X8664,
	"386":     I686,
	"arm64":   Aarch64,
	"arm":     Armv7l,
	"ppc64le": Ppc64le,
	"s390x":   S390x,
	"riscv64": Riscv64,
}

// companionArchitectures lists the 32-bit architectures a 64-bit kernel
// typically executes natively (IA-32 and AArch32 compat modes). Whether the
// compat mode is actually enabled is settled by running the probe, not here.
var companionArchitectures = map[Architecture]Architecture{
	X8664:   I686,
	Aarch64: Armv7l,
}

// Enumerator determines the set of architectures the host can execute.
type Enumerator struct {
	fs            afero.Fs
	uname         func() (string, error)
	skipEmulation bool
}

// NewEnumerator returns an Enumerator reading emulation state through fs.
func NewEnumerator(fs afero.Fs) *Enumerator {
	return &Enumerator{fs: fs, uname: unameMachine}
}

// DisableEmulation skips the binfmt_misc scan, limiting enumeration to the
// native architecture and its 32-bit companion.
func (e *Enumerator) DisableEmulation() *Enumerator {
	e.skipEmulation = true
	return e
}

// Enumerate returns the architectures the host is believed capable of
// executing, native first. Enumeration never fails: if a mechanism is
// unavailable the result is simply smaller, at worst the native
// architecture alone.
func (e *Enumerator) Enumerate() []Architecture {
	seen := map[Architecture]bool{}
	var archs []Architecture
	add := func(a Architecture) {
		if !seen[a] {
			seen[a] = true
			archs = append(archs, a)
		}
	}

	add(e.native())
	if companion, ok := companionArchitectures[archs[0]]; ok {
		add(companion)
	}

	if !e.skipEmulation {
		emulated := e.emulatedArchitectures()
		sort.Slice(emulated, func(i, j int) bool { return emulated[i] < emulated[j] })
		for _, a := range emulated {
			add(a)
		}
	}

	logrus.Debugf("Enumerated host architectures: %v", archs)
	return archs
}

// native resolves the architecture of the running kernel. Unlike
// runtime.GOARCH this reflects the host, not the compiler target: a 386
// build on an x86_64 kernel still reports x86_64-linux.
func (e *Enumerator) native() Architecture {
	machine, err := e.uname()
	if err != nil {
		logrus.WithError(err).Warn("Could not read system architecture, falling back to build architecture")
		if a, ok := goarchArchitectures[runtime.GOARCH]; ok {
			return a
		}
		return Architecture(runtime.GOARCH + "-linux")
	}

	if a, ok := machineArchitectures[machine]; ok {
		return a
	}
	logrus.Debugf("Unrecognized machine string %q from uname", machine)
	return Architecture(machine + "-linux")
}

func unameMachine() (string, error) {
	utsname := &unix.Utsname{}
	if err := unix.Uname(utsname); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(utsname.Machine[:]), nil
}

// FromSpecifier normalizes an OCI-style platform specifier ("linux/amd64",
// "amd64", "linux/arm/v7") into an Architecture.
func FromSpecifier(spec string) (Architecture, error) {
	p, err := platforms.Parse(spec)
	if err != nil {
		return "", errors.Wrapf(err, "parsing platform specifier %q", spec)
	}
	if p.OS != "" && p.OS != "linux" {
		return "", fmt.Errorf("unsupported operating system %q in platform %q", p.OS, spec)
	}
	if a, ok := goarchArchitectures[p.Architecture]; ok {
		return a, nil
	}
	return "", fmt.Errorf("unknown architecture %q in platform %q", p.Architecture, spec)
}
