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

// Package detect orchestrates a full detection run: enumerate the host's
// executable architectures, probe each one, and synthesize the
// compatibility-tag set the resolver consumes.
package detect

import (
	"context"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/Gosayram/libctag/pkg/executor"
	"github.com/Gosayram/libctag/pkg/libc"
	"github.com/Gosayram/libctag/pkg/platform"
	"github.com/Gosayram/libctag/pkg/probe"
	"github.com/Gosayram/libctag/pkg/tags"
)

// ProbeRunner executes one probe binary and classifies the result.
// Satisfied by *executor.Executor.
type ProbeRunner interface {
	Execute(ctx context.Context, bin *probe.Binary) libc.Outcome
}

// ArchitectureSource enumerates the architectures the host can execute.
// Satisfied by *platform.Enumerator.
type ArchitectureSource interface {
	Enumerate() []platform.Architecture
}

// Result is one detection run: the outcome per probed architecture and the
// tag set derived from it. Immutable once returned; a fresh run re-probes.
type Result struct {
	Outcomes map[platform.Architecture]libc.Outcome
	Set      *tags.CompatibilitySet
}

// Detector wires the probe registry, architecture source, and probe runner
// into the single consumer-facing detection call.
type Detector struct {
	registry    *probe.Registry
	source      ArchitectureSource
	runner      ProbeRunner
	fs          afero.Fs
	maxParallel int
	only        []platform.Architecture
}

// Option configures a Detector.
type Option func(*Detector)

// WithRunner overrides the probe runner, for tests and custom isolation.
func WithRunner(r ProbeRunner) Option {
	return func(d *Detector) { d.runner = r }
}

// WithSource overrides architecture enumeration.
func WithSource(s ArchitectureSource) Option {
	return func(d *Detector) { d.source = s }
}

// WithRegistry overrides the embedded probe registry.
func WithRegistry(r *probe.Registry) Option {
	return func(d *Detector) { d.registry = r }
}

// WithMaxParallel bounds how many probes run concurrently.
func WithMaxParallel(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.maxParallel = n
		}
	}
}

// WithArchitectures restricts the run to the given architectures instead
// of enumerating the host.
func WithArchitectures(archs []platform.Architecture) Option {
	return func(d *Detector) { d.only = archs }
}

// WithFs overrides the filesystem used for musl loader discovery.
func WithFs(fs afero.Fs) Option {
	return func(d *Detector) { d.fs = fs }
}

// New returns a Detector backed by the embedded registry, the host
// enumerator, and the default probe executor.
func New(opts ...Option) *Detector {
	fs := afero.NewOsFs()
	d := &Detector{
		registry:    probe.Default(),
		source:      platform.NewEnumerator(fs),
		runner:      executor.New(),
		fs:          fs,
		maxParallel: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect probes every candidate architecture and returns the full result.
// Probing one architecture never aborts the others: each failure mode is
// absorbed into that architecture's outcome. On cancellation, outcomes
// already computed are kept and the remainder is recorded as failed. The
// worst case is an empty tag set, never an error.
func (d *Detector) Detect(ctx context.Context) *Result {
	archs := d.only
	if len(archs) == 0 {
		archs = d.source.Enumerate()
	}

	var (
		mu       sync.Mutex
		outcomes = make(map[platform.Architecture]libc.Outcome, len(archs))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxParallel)
	for _, arch := range archs {
		arch := arch
		g.Go(func() error {
			outcome := d.ProbeArchitecture(ctx, arch)
			mu.Lock()
			outcomes[arch] = outcome
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers absorb all failures into outcomes

	result := &Result{Outcomes: outcomes, Set: tags.Synthesize(outcomes)}
	if result.Set.Empty() {
		logrus.Debug("No architecture detected a usable glibc")
	}
	return result
}

// ProbeArchitecture probes a single architecture. A registry miss is
// reported as Unsupported without ever invoking the executor. Exposed so
// callers can re-probe architectures whose outcome was ExecutionFailed.
func (d *Detector) ProbeArchitecture(ctx context.Context, arch platform.Architecture) libc.Outcome {
	bin, ok := d.registry.Lookup(arch)
	if !ok {
		logrus.Debugf("No probe embedded for %s", arch)
		return libc.Unsupported()
	}
	return d.runner.Execute(ctx, bin)
}

// NativeLibc reports the libc family and version of the host's native
// architecture: glibc when the probe detects it, otherwise musl when a
// musl dynamic loader answers. ok is false when neither does.
func (d *Detector) NativeLibc(ctx context.Context) (libc.Family, libc.Version, bool) {
	native := d.source.Enumerate()[0]
	if outcome := d.ProbeArchitecture(ctx, native); outcome.Kind == libc.OutcomeDetected {
		return libc.FamilyGlibc, outcome.Version, true
	}
	if v, ok := libc.MuslVersion(ctx, d.fs); ok {
		return libc.FamilyMusl, v, true
	}
	return "", libc.Version{}, false
}
