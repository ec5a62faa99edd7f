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

// Package executor runs prebuilt glibc probe binaries in isolated child
// processes and classifies the result. The calling process never touches
// glibc itself; every probe run is an untrusted external operation with a
// typed outcome.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Gosayram/libctag/pkg/libc"
	"github.com/Gosayram/libctag/pkg/probe"
)

const (
	// DefaultTimeout bounds a single probe run. Probes finish in
	// milliseconds when they run at all; emulated architectures get
	// generous slack.
	DefaultTimeout = 5 * time.Second

	// waitDelay is how long Wait allows I/O pipes to drain after the
	// context kills the child before forcibly closing them. Keeps a probe
	// that leaks its stdout to a grandchild from stalling the reap.
	waitDelay = time.Second

	probeFileMode = 0o700
)

// etxtbsyAttempts bounds retries of the fork/exec race where another
// goroutine's fork briefly holds the just-written probe file open.
const etxtbsyAttempts = 3

// Executor materializes probe binaries into temporary files and runs them.
// The zero value is not usable; call New.
type Executor struct {
	timeout time.Duration
	tempDir string
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout overrides the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithTempDir places probe files under dir instead of the default
// temporary directory. Used by tests to observe cleanup.
func WithTempDir(dir string) Option {
	return func(e *Executor) { e.tempDir = dir }
}

// New returns an Executor with the default timeout applied.
func New(opts ...Option) *Executor {
	e := &Executor{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one probe binary and classifies the result. It never
// returns an error: every failure mode maps onto an outcome variant, and
// the temporary executable is removed on all exit paths. Concurrent calls
// are independent; each gets a private temp file and child process.
func (e *Executor) Execute(ctx context.Context, bin *probe.Binary) libc.Outcome {
	path, err := e.writeProbe(bin)
	if err != nil {
		return libc.ExecutionFailed(fmt.Sprintf("staging probe: %v", err))
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logrus.Warnf("Could not remove probe file %s: %v", path, err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	runErr := runOnce(ctx, path, &stdout, &stderr)
	for attempt := 1; errors.Is(runErr, syscall.ETXTBSY) && attempt < etxtbsyAttempts; attempt++ {
		time.Sleep(time.Duration(attempt) * 10 * time.Millisecond)
		stdout.Reset()
		stderr.Reset()
		runErr = runOnce(ctx, path, &stdout, &stderr)
	}

	outcome := e.classify(bin, runErr, ctx.Err(), stdout.Bytes(), stderr.Bytes())
	logrus.Debugf("Probe for %s: %s", bin.Arch, outcome)
	return outcome
}

func runOnce(ctx context.Context, path string, stdout, stderr *bytes.Buffer) error {
	cmd := exec.CommandContext(ctx, path)
	// A minimal, fixed environment: inherited LD_PRELOAD/LD_LIBRARY_PATH
	// could redirect the probe's dynamic linking and forge the answer.
	cmd.Env = []string{"PATH=/usr/sbin:/usr/bin:/sbin:/bin", "LC_ALL=C"}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	return cmd.Run()
}

// writeProbe stages the probe bytes into a freshly created private file
// with execute permission. CreateTemp guarantees a unique path, so
// concurrent probes for different architectures cannot collide.
func (e *Executor) writeProbe(bin *probe.Binary) (string, error) {
	f, err := os.CreateTemp(e.tempDir, "glibc-detector-"+bin.Arch.Key()+"-*")
	if err != nil {
		return "", errors.Wrap(err, "creating probe temp file")
	}
	path := f.Name()

	if err := f.Chmod(probeFileMode); err != nil {
		f.Close()
		os.Remove(path)
		return "", errors.Wrap(err, "setting probe permissions")
	}
	if _, err := f.Write(bin.Data); err != nil {
		f.Close()
		os.Remove(path)
		return "", errors.Wrap(err, "writing probe binary")
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", errors.Wrap(err, "closing probe file")
	}

	return path, nil
}

// classify maps the raw process result onto a detection outcome:
//
//   - spawn failures indicating the host cannot run the binary format
//     (no binfmt handler, missing dynamic interpreter) are Unsupported
//   - timeouts, cancellation, and signal deaths are ExecutionFailed
//   - a plain non-zero exit means the probe started but its runtime is not
//     a working glibc (typically the dynamic loader bailing out): NotGlibc
//   - a clean exit is Detected when stdout parses as "<major>.<minor>",
//     NotGlibc otherwise (statically linked musl, empty output)
func (e *Executor) classify(bin *probe.Binary, runErr, ctxErr error, stdout, stderr []byte) libc.Outcome {
	if runErr == nil {
		if v, ok := libc.ParseVersion(stdout); ok {
			return libc.Detected(v)
		}
		logrus.Debugf("Probe for %s exited cleanly with unparseable output %q (stderr %q)",
			bin.Arch, stdout, stderr)
		return libc.NotGlibc()
	}

	if isFormatError(runErr) {
		return libc.Unsupported()
	}

	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return libc.ExecutionFailed(fmt.Sprintf("timeout after %s", e.timeout))
	}
	if ctxErr != nil {
		return libc.ExecutionFailed("canceled")
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return libc.ExecutionFailed(fmt.Sprintf("terminated by signal %s", ws.Signal()))
		}
		logrus.Debugf("Probe for %s exited with %s (stderr %q)", bin.Arch, exitErr, stderr)
		return libc.NotGlibc()
	}

	return libc.ExecutionFailed(runErr.Error())
}

// isFormatError reports whether a spawn failure means "this host cannot
// execute this binary format". ENOEXEC is the kernel rejecting the image
// outright (foreign architecture without a binfmt handler); ENOENT at exec
// time, for a file we just created, is a missing dynamic interpreter;
// ELIBBAD is a corrupted or incompatible library reference.
func isFormatError(err error) bool {
	return errors.Is(err, syscall.ENOEXEC) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ELIBBAD)
}
