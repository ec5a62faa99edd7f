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

// Package probe holds the embedded glibc detector binaries, one per
// supported architecture. The binaries are produced out-of-band by the
// cross-compilation pipeline under hack/glibc-detector and committed as
// opaque blobs; this package only catalogs and serves them.
package probe

import (
	"embed"
	"io/fs"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Gosayram/libctag/pkg/platform"
)

// OutputSchemaV1 is the probe output contract: a single stdout line of
// "<major>.<minor>" and exit status 0.
const OutputSchemaV1 = 1

// detectorPrefix is the filename prefix of embedded probe binaries,
// suffixed with the architecture key (e.g. glibc-detector-x86_64).
const detectorPrefix = "glibc-detector-"

//go:embed detectors
var detectorAssets embed.FS

// Binary is an immutable prebuilt probe for one architecture.
type Binary struct {
	// Arch is the architecture the probe was cross-compiled for.
	Arch platform.Architecture
	// Data is the raw executable. Read-only for the process lifetime.
	Data []byte
	// SchemaVersion identifies the expected shape of the probe's stdout.
	SchemaVersion int
	// MinKernel is the oldest kernel ABI the probe's baseline toolchain
	// targets, informational only.
	MinKernel string
}

// binaryMeta is build-pipeline metadata for each architecture we cross
// compile a detector for. The baseline distributions are deliberately old
// so the probes never require symbol versions newer than the oldest hosts
// the resolver supports.
var binaryMeta = map[platform.Architecture]struct {
	schemaVersion int
	minKernel     string
}{
	platform.X8664:   {OutputSchemaV1, "2.6.32"},
	platform.I686:    {OutputSchemaV1, "2.6.32"},
	platform.Aarch64: {OutputSchemaV1, "4.1"},
	platform.Armv7l:  {OutputSchemaV1, "3.2"},
	platform.Ppc64le: {OutputSchemaV1, "3.10"},
	platform.S390x:   {OutputSchemaV1, "3.10"},
	platform.Riscv64: {OutputSchemaV1, "4.15"},
}

// Registry maps architectures to their embedded probe binaries. It is
// immutable after construction and safe for concurrent lookups.
type Registry struct {
	binaries map[platform.Architecture]*Binary
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the registry backed by the probes embedded at build time.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		sub, err := fs.Sub(detectorAssets, "detectors")
		if err != nil {
			// The detectors directory is part of this package; a failure
			// here means a broken build, not a runtime condition.
			logrus.WithError(err).Error("Embedded probe assets are missing")
			defaultRegistry = &Registry{binaries: map[platform.Architecture]*Binary{}}
			return
		}
		defaultRegistry = NewRegistry(sub)
	})
	return defaultRegistry
}

// NewRegistry catalogs probe binaries from fsys. Files that do not follow
// the glibc-detector-<arch> naming or name an architecture without build
// metadata are skipped. Used directly by tests to inject fake probes.
func NewRegistry(fsys fs.FS) *Registry {
	binaries := map[platform.Architecture]*Binary{}

	for arch, meta := range binaryMeta {
		data, err := fs.ReadFile(fsys, detectorPrefix+arch.Key())
		if err != nil {
			continue
		}
		binaries[arch] = &Binary{
			Arch:          arch,
			Data:          data,
			SchemaVersion: meta.schemaVersion,
			MinKernel:     meta.minKernel,
		}
	}

	return &Registry{binaries: binaries}
}

// Lookup returns the embedded probe for arch. A miss means no probe was
// compiled for that architecture; callers treat it as unsupported.
func (r *Registry) Lookup(arch platform.Architecture) (*Binary, bool) {
	b, ok := r.binaries[arch]
	return b, ok
}

// Architectures lists the architectures with an embedded probe, sorted.
func (r *Registry) Architectures() []platform.Architecture {
	archs := make([]platform.Architecture, 0, len(r.binaries))
	for arch := range r.binaries {
		archs = append(archs, arch)
	}
	sort.Slice(archs, func(i, j int) bool { return archs[i] < archs[j] })
	return archs
}
