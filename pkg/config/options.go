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

// Package config holds the options set by command line arguments.
package config

import (
	"errors"
	"strings"
	"time"
)

// OutputFormat selects how the detected tag set is rendered.
type OutputFormat string

// Supported output formats.
const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

func (f *OutputFormat) String() string {
	return string(*f)
}

// Set validates and sets the output format from a flag value.
func (f *OutputFormat) Set(v string) error {
	switch v {
	case "text", "json":
		*f = OutputFormat(v)
		return nil
	default:
		return errors.New(`must be either "text" or "json"`)
	}
}

// Type returns the flag type identifier for the output format.
func (f *OutputFormat) Type() string {
	return "format"
}

// DetectOptions are options that are set by command line arguments.
type DetectOptions struct {
	// Platforms restricts detection to the given OCI-style platform
	// specifiers (e.g. linux/amd64). Empty means enumerate the host.
	Platforms multiArg

	// ProbeTimeout bounds a single probe execution.
	ProbeTimeout time.Duration

	// MaxParallel bounds concurrent probe executions. Zero lets the
	// detector pick based on CPU count.
	MaxParallel int

	// ProbeRetries is how many times failed probes are re-attempted
	// after the initial run. Only execution failures (timeouts, spawn
	// errors) are retried, never unsupported or non-glibc outcomes.
	ProbeRetries int

	// NoEmulation skips binfmt_misc scanning and probes only the native
	// architecture (plus its 32-bit companion).
	NoEmulation bool

	// ShowFamily also reports the native libc family (glibc/musl).
	ShowFamily bool

	// Format selects the output rendering.
	Format OutputFormat
}

// multiArg is a repeatable string flag, also accepting comma-separated
// values in a single occurrence.
type multiArg []string

func (b *multiArg) String() string {
	return strings.Join(*b, ",")
}

// Set appends a flag occurrence, splitting on commas.
func (b *multiArg) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*b = append(*b, v)
		}
	}
	return nil
}

// Type returns the flag type identifier for repeated string values.
func (b *multiArg) Type() string {
	return "multi-arg"
}

// Values returns the accumulated flag values.
func (b *multiArg) Values() []string {
	return *b
}
