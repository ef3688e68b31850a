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

import "testing"

func TestRunGuardedNoFault(t *testing.T) {
	ran := false
	code, ok := runGuarded(func() { ran = true })
	if !ok {
		t.Fatalf("runGuarded reported a fault for a body that didn't fault (code=%v)", code)
	}
	if !ran {
		t.Fatal("body never ran")
	}
}

func TestRunGuardedRecoversIndexOutOfRange(t *testing.T) {
	code, ok := runGuarded(func() {
		s := make([]byte, 4)
		_ = s[10]
	})
	if ok {
		t.Fatal("runGuarded reported ok=true for a body that panicked")
	}
	if code != MemoryOutOfBounds {
		t.Errorf("code = %v, want MemoryOutOfBounds", code)
	}
}

func TestRunGuardedRecoversDivideByZero(t *testing.T) {
	code, ok := runGuarded(func() {
		a, b := 1, 0
		_ = a / b
	})
	if ok {
		t.Fatal("runGuarded reported ok=true for a body that panicked")
	}
	if code != DivideByZero {
		t.Errorf("code = %v, want DivideByZero", code)
	}
}

func TestRunGuardedHonorsTermination(t *testing.T) {
	Terminate()
	defer terminationClear()

	ran := false
	code, ok := runGuarded(func() { ran = true })
	if ok {
		t.Fatal("runGuarded reported ok=true after Terminate")
	}
	if code != Terminated {
		t.Errorf("code = %v, want Terminated", code)
	}
	if ran {
		t.Error("body must not run once termination was requested before entry")
	}
}
