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

package detect

import (
	"context"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gosayram/libctag/pkg/libc"
	"github.com/Gosayram/libctag/pkg/platform"
	"github.com/Gosayram/libctag/pkg/probe"
)

// fakeSource returns a fixed architecture set.
type fakeSource []platform.Architecture

func (s fakeSource) Enumerate() []platform.Architecture { return s }

// fakeRunner serves canned outcomes per architecture and records which
// probes were actually executed.
type fakeRunner struct {
	mu       sync.Mutex
	outcomes map[platform.Architecture]libc.Outcome
	executed []platform.Architecture
}

func (r *fakeRunner) Execute(_ context.Context, bin *probe.Binary) libc.Outcome {
	r.mu.Lock()
	r.executed = append(r.executed, bin.Arch)
	r.mu.Unlock()
	if outcome, ok := r.outcomes[bin.Arch]; ok {
		return outcome
	}
	return libc.NotGlibc()
}

// registryFor builds a registry with dummy probe bytes for the given
// architectures.
func registryFor(archs ...platform.Architecture) *probe.Registry {
	fsys := fstest.MapFS{}
	for _, arch := range archs {
		fsys["glibc-detector-"+arch.Key()] = &fstest.MapFile{Data: []byte{0x7f, 'E', 'L', 'F'}}
	}
	return probe.NewRegistry(fsys)
}

func TestDetectFullRun(t *testing.T) {
	runner := &fakeRunner{outcomes: map[platform.Architecture]libc.Outcome{
		platform.X8664:   libc.Detected(libc.Version{Major: 2, Minor: 31}),
		platform.Aarch64: libc.Unsupported(),
		platform.Armv7l:  libc.NotGlibc(),
	}}
	d := New(
		WithRegistry(registryFor(platform.X8664, platform.Aarch64, platform.Armv7l)),
		WithSource(fakeSource{platform.X8664, platform.Aarch64, platform.Armv7l}),
		WithRunner(runner),
	)

	result := d.Detect(context.Background())

	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, libc.OutcomeDetected, result.Outcomes[platform.X8664].Kind)
	assert.Equal(t, libc.OutcomeUnsupported, result.Outcomes[platform.Aarch64].Kind)
	assert.Equal(t, libc.OutcomeNotGlibc, result.Outcomes[platform.Armv7l].Kind)

	v, ok := result.Set.GlibcVersion(platform.X8664)
	require.True(t, ok)
	assert.Equal(t, "2.31", v.String())
	assert.Equal(t, []platform.Architecture{platform.X8664}, result.Set.Architectures())
}

func TestDetectRegistryMissNeverExecutes(t *testing.T) {
	runner := &fakeRunner{outcomes: map[platform.Architecture]libc.Outcome{
		platform.X8664: libc.Detected(libc.Version{Major: 2, Minor: 28}),
	}}
	d := New(
		WithRegistry(registryFor(platform.X8664)),
		WithSource(fakeSource{platform.X8664, platform.Riscv64}),
		WithRunner(runner),
	)

	result := d.Detect(context.Background())

	assert.Equal(t, []platform.Architecture{platform.X8664}, runner.executed,
		"executor must not be invoked for architectures without a probe")
	assert.Equal(t, libc.OutcomeUnsupported, result.Outcomes[platform.Riscv64].Kind)
	_, ok := result.Set.GlibcVersion(platform.Riscv64)
	assert.False(t, ok)
}

func TestDetectIdempotent(t *testing.T) {
	runner := &fakeRunner{outcomes: map[platform.Architecture]libc.Outcome{
		platform.X8664:   libc.Detected(libc.Version{Major: 2, Minor: 31}),
		platform.Aarch64: libc.ExecutionFailed("timeout after 5s"),
	}}
	d := New(
		WithRegistry(registryFor(platform.X8664, platform.Aarch64)),
		WithSource(fakeSource{platform.X8664, platform.Aarch64}),
		WithRunner(runner),
	)

	first := d.Detect(context.Background())
	second := d.Detect(context.Background())

	assert.Equal(t, first.Outcomes, second.Outcomes)
	assert.Equal(t, first.Set.Tags(), second.Set.Tags())
}

func TestDetectOneFailureDoesNotAbortOthers(t *testing.T) {
	runner := &fakeRunner{outcomes: map[platform.Architecture]libc.Outcome{
		platform.X8664:   libc.ExecutionFailed("timeout after 5s"),
		platform.Aarch64: libc.Detected(libc.Version{Major: 2, Minor: 35}),
	}}
	d := New(
		WithRegistry(registryFor(platform.X8664, platform.Aarch64)),
		WithSource(fakeSource{platform.X8664, platform.Aarch64}),
		WithRunner(runner),
		WithMaxParallel(1),
	)

	result := d.Detect(context.Background())

	assert.Equal(t, libc.OutcomeExecutionFailed, result.Outcomes[platform.X8664].Kind)
	v, ok := result.Set.GlibcVersion(platform.Aarch64)
	require.True(t, ok)
	assert.Equal(t, libc.Version{Major: 2, Minor: 35}, v)
}

// blockingRunner completes fast architectures immediately and holds the
// blocked one until its context is canceled.
type blockingRunner struct {
	blocked platform.Architecture
	started chan struct{}
}

func (r *blockingRunner) Execute(ctx context.Context, bin *probe.Binary) libc.Outcome {
	if bin.Arch == r.blocked {
		close(r.started)
		<-ctx.Done()
		return libc.ExecutionFailed("canceled")
	}
	return libc.Detected(libc.Version{Major: 2, Minor: 31})
}

func TestDetectCancellationKeepsPartialResults(t *testing.T) {
	runner := &blockingRunner{blocked: platform.Aarch64, started: make(chan struct{})}
	d := New(
		WithRegistry(registryFor(platform.X8664, platform.Aarch64)),
		WithSource(fakeSource{platform.X8664, platform.Aarch64}),
		WithRunner(runner),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-runner.started
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	result := d.Detect(ctx)

	assert.Equal(t, libc.OutcomeDetected, result.Outcomes[platform.X8664].Kind,
		"completed outcome must survive cancellation")
	assert.Equal(t, libc.OutcomeExecutionFailed, result.Outcomes[platform.Aarch64].Kind)
	assert.Equal(t, []platform.Architecture{platform.X8664}, result.Set.Architectures())
}

func TestDetectArchitectureFilter(t *testing.T) {
	runner := &fakeRunner{outcomes: map[platform.Architecture]libc.Outcome{
		platform.Aarch64: libc.Detected(libc.Version{Major: 2, Minor: 31}),
	}}
	d := New(
		WithRegistry(registryFor(platform.X8664, platform.Aarch64)),
		WithSource(fakeSource{platform.X8664, platform.Aarch64}),
		WithRunner(runner),
		WithArchitectures([]platform.Architecture{platform.Aarch64}),
	)

	result := d.Detect(context.Background())

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, []platform.Architecture{platform.Aarch64}, runner.executed)
}

func TestNativeLibcGlibc(t *testing.T) {
	runner := &fakeRunner{outcomes: map[platform.Architecture]libc.Outcome{
		platform.X8664: libc.Detected(libc.Version{Major: 2, Minor: 31}),
	}}
	d := New(
		WithRegistry(registryFor(platform.X8664)),
		WithSource(fakeSource{platform.X8664}),
		WithRunner(runner),
	)

	family, v, ok := d.NativeLibc(context.Background())
	require.True(t, ok)
	assert.Equal(t, libc.FamilyGlibc, family)
	assert.Equal(t, libc.Version{Major: 2, Minor: 31}, v)
}

func TestNativeLibcNothingDetected(t *testing.T) {
	runner := &fakeRunner{outcomes: map[platform.Architecture]libc.Outcome{
		platform.X8664: libc.NotGlibc(),
	}}
	d := New(
		WithRegistry(registryFor(platform.X8664)),
		WithSource(fakeSource{platform.X8664}),
		WithRunner(runner),
		WithFs(afero.NewMemMapFs()),
	)

	_, _, ok := d.NativeLibc(context.Background())
	assert.False(t, ok)
}
