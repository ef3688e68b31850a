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

import (
	"runtime"
	"runtime/debug"
	"strings"
	"sync/atomic"
)

// terminationRequested is a package-level flag an embedder sets via
// Terminate to request that the currently-guarded call unwind at its next
// opportunity. Only runGuarded reads it, on entry and when translating a
// recovered panic; the bytecode dispatch loop (dispatch.go) does not check
// it, so a compiled-code caller can only observe it as a fault-guard exit
// once the compiled code itself checks it or otherwise faults.
var terminationRequested atomic.Bool

// Terminate requests that the current or next guarded call abort with the
// Terminated trap code as soon as it next checks for termination. It is
// the only cancellation channel spec.md §5 names besides cost-metering.
func Terminate() { terminationRequested.Store(true) }

// terminationClear resets the termination flag; called once a Terminated
// trap has actually unwound to the outermost entry point, so the VM
// remains usable for subsequent invocations.
func terminationClear() { terminationRequested.Store(false) }

func terminationSignaled() bool { return terminationRequested.Load() }

// runGuarded is the scoped fault guard of §4.6: on entry it arranges for
// hardware faults raised by body (out-of-bounds pointer dereferences,
// division traps, illegal instructions) to surface as a recovered Go panic
// instead of crashing the process, and on exit restores the previous
// fault-handling state. Nesting is supported for free by Go's own
// panic/recover semantics — the innermost runGuarded's deferred recover is
// the one that observes an inner fault.
//
// It returns ok=true if body ran to completion, or ok=false and the
// translated trap Code if body faulted.
//
// Grounded on two collaborators from the retrieval pack: moby-moby's
// wazero-derived callEngine, which recovers Go runtime panics at a call
// boundary and translates them into typed wasmruntime errors (see
// call_engine.go), and runtime/debug.SetPanicOnFault, which is what makes
// an actual SIGSEGV/SIGBUS from dereferencing guard-paged memory (see
// fault_unix.go) observable as a Go panic in the first place rather than
// terminating the process outright — the idiomatic Go substitute for the
// original C++ implementation's sigaction-based signal handler (see
// DESIGN.md).
func runGuarded(body func()) (code Code, ok bool) {
	previous := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(previous)

	defer func() {
		if r := recover(); r != nil {
			ok = false
			code = translateFault(r)
		}
	}()

	if terminationSignaled() {
		return Terminated, false
	}

	body()
	return 0, true
}

// translateFault maps a recovered panic value to a trap code.
func translateFault(r any) Code {
	if terminationSignaled() {
		return Terminated
	}

	if err, isRuntimeErr := r.(runtime.Error); isRuntimeErr {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "integer divide by zero"):
			return DivideByZero
		case strings.Contains(msg, "index out of range"),
			strings.Contains(msg, "slice bounds out of range"):
			return MemoryOutOfBounds
		case strings.Contains(msg, "stack overflow"):
			return StackOverflow
		case strings.Contains(msg, "invalid memory address"):
			return MemoryOutOfBounds
		}
	}

	return IllegalInstruction
}
