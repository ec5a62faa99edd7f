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

import "fmt"

// OutcomeKind enumerates the possible results of probing one architecture.
type OutcomeKind string

const (
	// OutcomeDetected means the probe ran and reported a glibc version.
	OutcomeDetected OutcomeKind = "detected"
	// OutcomeNotGlibc means the probe ran but the host's C runtime for that
	// architecture is not glibc (musl, or no dynamic loader output).
	OutcomeNotGlibc OutcomeKind = "not-glibc"
	// OutcomeUnsupported means the host cannot execute the probe's binary
	// format at all (no interpreter registered for a foreign architecture,
	// or no probe embedded for it).
	OutcomeUnsupported OutcomeKind = "unsupported"
	// OutcomeExecutionFailed covers environmental failures: temp-file I/O,
	// spawn errors other than format errors, signals, and timeouts. The
	// caller may retry; the detection subsystem itself does not.
	OutcomeExecutionFailed OutcomeKind = "execution-failed"
)

// Outcome is the immutable result of probing one architecture. Exactly one
// kind holds; Version is meaningful only for OutcomeDetected and Reason only
// for OutcomeExecutionFailed.
type Outcome struct {
	Kind    OutcomeKind `json:"kind"`
	Version Version     `json:"version,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// Detected builds an Outcome for a successfully parsed probe run.
func Detected(v Version) Outcome {
	return Outcome{Kind: OutcomeDetected, Version: v}
}

// NotGlibc builds an Outcome for a probe that ran against a non-glibc runtime.
func NotGlibc() Outcome {
	return Outcome{Kind: OutcomeNotGlibc}
}

// Unsupported builds an Outcome for an architecture the host cannot execute.
func Unsupported() Outcome {
	return Outcome{Kind: OutcomeUnsupported}
}

// ExecutionFailed builds an Outcome for an environmental probe failure.
func ExecutionFailed(reason string) Outcome {
	return Outcome{Kind: OutcomeExecutionFailed, Reason: reason}
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeDetected:
		return fmt.Sprintf("detected glibc %s", o.Version)
	case OutcomeExecutionFailed:
		return fmt.Sprintf("execution failed: %s", o.Reason)
	default:
		return string(o.Kind)
	}
}
