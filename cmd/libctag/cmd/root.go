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

// Package cmd provides the command-line interface for the libctag detector.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Gosayram/libctag/pkg/config"
	"github.com/Gosayram/libctag/pkg/detect"
	"github.com/Gosayram/libctag/pkg/executor"
	"github.com/Gosayram/libctag/pkg/libc"
	"github.com/Gosayram/libctag/pkg/logging"
	"github.com/Gosayram/libctag/pkg/platform"
	"github.com/Gosayram/libctag/pkg/retry"
	"github.com/Gosayram/libctag/pkg/tags"
)

var (
	opts         = &config.DetectOptions{Format: config.OutputText}
	logLevel     string
	logFormat    string
	logTimestamp bool
)

func init() {
	RootCmd.PersistentFlags().StringVarP(&logLevel, "verbosity", "v", logging.DefaultLevel,
		"Log level (trace, debug, info, warn, error, fatal, panic)")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatColor,
		"Log format (text, color, json)")
	RootCmd.PersistentFlags().BoolVar(&logTimestamp, "log-timestamp",
		logging.DefaultLogTimestamp, "Timestamp in log output")

	RootCmd.PersistentFlags().VarP(&opts.Platforms, "platform", "p",
		"Restrict detection to these platforms (e.g. linux/amd64). Repeatable or comma-separated.")
	RootCmd.PersistentFlags().DurationVar(&opts.ProbeTimeout, "probe-timeout",
		executor.DefaultTimeout, "Timeout for a single probe execution")
	RootCmd.PersistentFlags().IntVar(&opts.MaxParallel, "max-parallel", 0,
		"Maximum concurrent probe executions (0 = number of CPUs)")
	RootCmd.PersistentFlags().IntVar(&opts.ProbeRetries, "probe-retries", 0,
		"Re-attempts for probes that failed to execute (timeouts, spawn errors)")
	RootCmd.PersistentFlags().BoolVar(&opts.NoEmulation, "no-emulation", false,
		"Skip emulated architectures, probe only the native architecture")
	RootCmd.PersistentFlags().BoolVar(&opts.ShowFamily, "family", false,
		"Also report the native libc family (glibc or musl)")
	RootCmd.PersistentFlags().Var(&opts.Format, "format",
		"Output format (text, json)")
}

// RootCmd is the libctag command that is run
var RootCmd = &cobra.Command{
	Use:   "libctag",
	Short: "Detect usable glibc versions and synthesize manylinux compatibility tags",
	Long: `libctag determines which glibc version (if any) is usable for each CPU
architecture the host can execute, by running small prebuilt probe binaries
in isolated child processes, and derives the manylinux-style compatibility
tags a package resolver consumes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return logging.Configure(logLevel, logFormat, logTimestamp)
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runDetection(ctx)
	},
}

func runDetection(ctx context.Context) error {
	archs, err := resolvePlatformFilter()
	if err != nil {
		return err
	}

	detector := newDetector(archs)
	result := detector.Detect(ctx)

	if opts.ProbeRetries > 0 {
		result = reprobeFailed(ctx, detector, result)
	}

	for arch, outcome := range result.Outcomes {
		logrus.Debugf("%s: %s", arch, outcome)
	}

	return render(ctx, detector, result)
}

// resolvePlatformFilter normalizes --platform specifiers into architecture
// identifiers. An empty filter means enumerate the host.
func resolvePlatformFilter() ([]platform.Architecture, error) {
	var archs []platform.Architecture
	for _, spec := range opts.Platforms.Values() {
		arch, err := platform.FromSpecifier(spec)
		if err != nil {
			return nil, err
		}
		archs = append(archs, arch)
	}
	return archs, nil
}

func newDetector(archs []platform.Architecture) *detect.Detector {
	enumerator := platform.NewEnumerator(afero.NewOsFs())
	if opts.NoEmulation {
		enumerator.DisableEmulation()
	}

	detectOpts := []detect.Option{
		detect.WithSource(enumerator),
		detect.WithRunner(executor.New(executor.WithTimeout(opts.ProbeTimeout))),
	}
	if opts.MaxParallel > 0 {
		detectOpts = append(detectOpts, detect.WithMaxParallel(opts.MaxParallel))
	}
	if len(archs) > 0 {
		detectOpts = append(detectOpts, detect.WithArchitectures(archs))
	}
	return detect.New(detectOpts...)
}

// reprobeFailed retries architectures whose probes failed for environmental
// reasons. Unsupported and non-glibc outcomes are final and never retried.
func reprobeFailed(ctx context.Context, detector *detect.Detector, result *detect.Result) *detect.Result {
	outcomes := make(map[platform.Architecture]libc.Outcome, len(result.Outcomes))
	for arch, outcome := range result.Outcomes {
		outcomes[arch] = outcome
	}

	retryConfig := retry.DefaultConfig()
	retryConfig.MaxAttempts = opts.ProbeRetries

	for arch, outcome := range result.Outcomes {
		if outcome.Kind != libc.OutcomeExecutionFailed {
			continue
		}
		logrus.Infof("Re-probing %s after failure: %s", arch, outcome.Reason)
		final, _ := retry.Do(ctx, retryConfig, func() (libc.Outcome, error) {
			o := detector.ProbeArchitecture(ctx, arch)
			if o.Kind == libc.OutcomeExecutionFailed {
				return o, errors.Errorf("probe for %s failed: %s", arch, o.Reason)
			}
			return o, nil
		})
		outcomes[arch] = final
	}

	return &detect.Result{Outcomes: outcomes, Set: tags.Synthesize(outcomes)}
}

// jsonReport is the machine-readable rendering of a detection run.
type jsonReport struct {
	Architectures map[string]libc.Outcome `json:"architectures"`
	Tags          []string                `json:"tags"`
	LibcFamily    string                  `json:"libcFamily,omitempty"`
	LibcVersion   string                  `json:"libcVersion,omitempty"`
}

func render(ctx context.Context, detector *detect.Detector, result *detect.Result) error {
	var family libc.Family
	var familyVersion libc.Version
	var familyKnown bool
	if opts.ShowFamily {
		family, familyVersion, familyKnown = detector.NativeLibc(ctx)
	}

	if opts.Format == config.OutputJSON {
		report := jsonReport{
			Architectures: map[string]libc.Outcome{},
			Tags:          result.Set.Tags(),
		}
		for arch, outcome := range result.Outcomes {
			report.Architectures[arch.String()] = outcome
		}
		if familyKnown {
			report.LibcFamily = string(family)
			report.LibcVersion = familyVersion.String()
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return errors.Wrap(encoder.Encode(report), "encoding report")
	}

	if result.Set.Empty() {
		fmt.Println("No usable glibc detected; no architecture-specific packages are installable here.")
	}
	for _, arch := range result.Set.Architectures() {
		v, _ := result.Set.GlibcVersion(arch)
		fmt.Printf("%s: glibc %s\n", arch, v)
	}
	for _, tag := range result.Set.Tags() {
		fmt.Println(tag)
	}
	if familyKnown {
		fmt.Printf("native libc: %s %s\n", family, familyVersion)
	}
	return nil
}
