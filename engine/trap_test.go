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
	"errors"
	"fmt"
	"testing"
)

func TestAsTrapExtractsCode(t *testing.T) {
	err := NewTrapCode(DivideByZero)

	trapErr, ok := AsTrap(err)
	if !ok {
		t.Fatal("AsTrap returned ok=false for a genuine *Error")
	}
	if trapErr.Code != DivideByZero {
		t.Errorf("Code = %v, want DivideByZero", trapErr.Code)
	}
}

func TestAsTrapUnwrapsWrappedError(t *testing.T) {
	trapErr := NewTrapCode(StackOverflow)
	wrapped := fmt.Errorf("while invoking export: %w", trapErr)

	if _, ok := AsTrap(errors.New(wrapped.Error())); ok {
		t.Fatal("AsTrap must not match a plain error carrying only trap text")
	}

	got, ok := AsTrap(wrapped)
	if !ok || got.Code != StackOverflow {
		t.Fatalf("AsTrap(wrapped) = %v, %v; want StackOverflow, true", got, ok)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := NewTrap(TypeMismatch, "export %q is not a function", "run")
	want := "type mismatch: export \"run\" is not a function"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
