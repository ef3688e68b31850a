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

func TestValueRoundTrip(t *testing.T) {
	if got := I32Value(-7).I32(); got != -7 {
		t.Errorf("I32Value(-7).I32() = %d, want -7", got)
	}
	if got := I64Value(-1).I64(); got != -1 {
		t.Errorf("I64Value(-1).I64() = %d, want -1", got)
	}
	if got := F32Value(1.5).F32(); got != 1.5 {
		t.Errorf("F32Value(1.5).F32() = %v, want 1.5", got)
	}
	if got := F64Value(-2.25).F64(); got != -2.25 {
		t.Errorf("F64Value(-2.25).F64() = %v, want -2.25", got)
	}
}

func TestValueReinterpretsBitsNotNumbers(t *testing.T) {
	// I32Value(-1) is the all-ones bit pattern; read back as an i64 it must
	// not sign-extend, since Value never performs a numeric conversion
	// between differently-typed reads.
	v := I32Value(-1)
	if got := v.I64(); got != 0xFFFFFFFF {
		t.Errorf("I32Value(-1).I64() = %#x, want 0xFFFFFFFF", uint64(got))
	}
}

func TestNullReferenceValues(t *testing.T) {
	if !NullFuncRef().IsNullRef() {
		t.Error("NullFuncRef() is not recognized as null")
	}
	if !NullExternRef().IsNullRef() {
		t.Error("NullExternRef() is not recognized as null")
	}
	if FuncRefValue(0).IsNullRef() {
		t.Error("FuncRefValue(0) must not be null, 0 is a valid store address")
	}
	if FuncRefValue(NullReference).IsNullRef() != true {
		t.Error("FuncRefValue(NullReference) must be recognized as null")
	}
}

func TestFuncRefValueRoundTrip(t *testing.T) {
	v := FuncRefValue(42)
	if got := v.RefHandle(); got != 42 {
		t.Errorf("RefHandle() = %d, want 42", got)
	}
}

func TestDefaultValue(t *testing.T) {
	cases := []struct {
		name string
		typ  ValueType
		want Value
	}{
		{"i32", I32, I32Value(0)},
		{"i64", I64, I64Value(0)},
		{"f32", F32, F32Value(0)},
		{"f64", F64, F64Value(0)},
		{"funcref", FuncRefType, NullFuncRef()},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := DefaultValue(c.typ); got != c.want {
				t.Errorf("DefaultValue(%v) = %+v, want %+v", c.typ, got, c.want)
			}
		})
	}
}
