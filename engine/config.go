// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import "go.uber.org/zap"

// Config controls the resource limits and optional instrumentation of a
// VM. Mirrors the teacher's Config/DefaultConfig pattern.
type Config struct {
	// MaxCallStackDepth bounds the number of nested frames, preventing
	// unbounded recursion from exhausting the host stack. Exceeding it
	// surfaces as a StackOverflow trap.
	MaxCallStackDepth uint32

	// CostLimit records a cost ceiling for the embedder's own use. The
	// interpreter does not read it: enterFunction fails a pending host call
	// with CostLimitExceeded only when Statistics.AddCost reports false, so
	// the ceiling actually enforced is the one the Statistics sink was built
	// with (e.g. NewInProcessStatistics's limit).
	CostLimit uint64

	// Statistics, if set, receives cost and timing callbacks around every
	// host call (§5, §6). Nil disables metering entirely — no cost is
	// charged and no timer calls are made.
	Statistics Statistics

	// Logger receives the two boundary-logged cases spec.md §7 names:
	// a generic ExecutionFailed from a host function, and a compiled-code
	// trap other than Terminated. Defaults to a no-op logger.
	Logger *zap.Logger

	// FaultGuardEnabled controls whether the compiled/AOT call path installs
	// a Fault guard (§4.6) around each invocation. Disabling it is useful
	// only for embedding a pure-bytecode VM with no compiled backend at
	// all, since without it a real hardware fault in compiled code would
	// crash the host process rather than surface as a trap.
	FaultGuardEnabled bool
}

// DefaultConfig returns the configuration new VMs use unless overridden:
// a call-stack depth bound, no cost ceiling, no statistics sink, a no-op
// logger, and the fault guard enabled.
func DefaultConfig() Config {
	return Config{
		MaxCallStackDepth: 1000,
		Logger:            zap.NewNop(),
		FaultGuardEnabled: true,
	}
}
