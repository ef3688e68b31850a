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
	"fmt"

	"github.com/pkg/errors"
)

// Code identifies the class of failure that unwound an invocation. It
// distinguishes conditions that should never occur in a validated program
// from genuine Wasm traps, resource limits and lifecycle events.
type Code int

const (
	// Validation-class: should not occur in a program that passed validation.
	TypeMismatch Code = iota
	UndefinedElement
	IndirectCallTypeMismatch

	// Trap-class: defined by the Wasm Core specification.
	MemoryOutOfBounds
	DivideByZero
	IntegerOverflow
	IllegalInstruction
	StackOverflow
	Unreachable

	// Resource-class.
	CostLimitExceeded

	// Lifecycle-class.
	Terminated
	ExecutionFailed
)

func (c Code) String() string {
	switch c {
	case TypeMismatch:
		return "type mismatch"
	case UndefinedElement:
		return "undefined element"
	case IndirectCallTypeMismatch:
		return "indirect call type mismatch"
	case MemoryOutOfBounds:
		return "out of bounds memory access"
	case DivideByZero:
		return "integer divide by zero"
	case IntegerOverflow:
		return "integer overflow"
	case IllegalInstruction:
		return "illegal instruction"
	case StackOverflow:
		return "call stack exhausted"
	case Unreachable:
		return "unreachable"
	case CostLimitExceeded:
		return "cost limit exceeded"
	case Terminated:
		return "terminated"
	case ExecutionFailed:
		return "execution failed"
	default:
		return "unknown trap"
	}
}

// Error is the discriminated result every fallible core operation returns.
// It always carries a Code so callers can branch on trap class. Errors built
// by NewTrap/NewTrapCode also carry a pkg/errors stack trace captured at the
// point the trap was raised so an embedder logging an unwound trap can see
// where in the Go source it originated, not just the Wasm-level code; an
// ExecutionFailed from a host function wraps the host's own error as is.
type Error struct {
	Code  Code
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.Code, e.cause)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error { return e.cause }

// NewTrap builds a trap Error with the given code and a stack trace rooted
// at the caller.
func NewTrap(code Code, format string, args ...any) *Error {
	return &Error{Code: code, cause: errors.WithStack(fmt.Errorf(format, args...))}
}

// NewTrapCode builds a trap Error carrying no extra context beyond its code.
func NewTrapCode(code Code) *Error {
	return &Error{Code: code, cause: errors.WithStack(errors.New(code.String()))}
}

// AsTrap extracts a *Error from err, if any.
func AsTrap(err error) (*Error, bool) {
	var trapErr *Error
	if errors.As(err, &trapErr) {
		return trapErr, true
	}
	return nil, false
}
