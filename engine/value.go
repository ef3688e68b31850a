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

import "math"

// ValueType is a marker interface implemented by the three families of Wasm
// types a Value can carry: number types, the vector type, and reference
// types.
type ValueType interface {
	isValueType()
}

// NumberType is one of i32, i64, f32, f64.
type NumberType int

const (
	I32 NumberType = 0x7f
	I64 NumberType = 0x7e
	F32 NumberType = 0x7d
	F64 NumberType = 0x7c
)

func (NumberType) isValueType() {}

// VectorType is v128.
type VectorType int

const V128 VectorType = 0x7b

func (VectorType) isValueType() {}

// ReferenceType is funcref or externref.
type ReferenceType int

const (
	FuncRefType   ReferenceType = 0x70
	ExternRefType ReferenceType = 0x6f
)

func (ReferenceType) isValueType() {}

// NullReference is the sentinel low word carried by a null funcref or
// externref, distinguishable from any valid table/host handle.
const NullReference int32 = -1

// V128Value is the 128-bit vector payload, represented as two 64-bit lanes.
type V128Value struct {
	Low, High uint64
}

// Value is the trivially-copyable tagged union every operand-stack slot and
// local variable holds. It never allocates: number and reference payloads
// live in the low/high words directly, and re-interpretation between values
// of the same width (e.g. i32 bit pattern read back as f32) is a bit-
// preserving reinterpretation of those words, never a numeric conversion.
type Value struct {
	low, high uint64
}

func I32Value(v int32) Value   { return Value{low: uint64(uint32(v))} }
func I64Value(v int64) Value   { return Value{low: uint64(v)} }
func F32Value(v float32) Value { return Value{low: uint64(math.Float32bits(v))} }
func F64Value(v float64) Value { return Value{low: math.Float64bits(v)} }
func V128Val(v V128Value) Value {
	return Value{low: v.Low, high: v.High}
}

// NullFuncRef and NullExternRef construct the null reference value for
// their respective reference type.
func NullFuncRef() Value   { h := NullReference; return Value{low: uint64(uint32(h))} }
func NullExternRef() Value { h := NullReference; return Value{low: uint64(uint32(h))} }

// FuncRefValue and ExternRefValue wrap an opaque, VM-defined handle (e.g. a
// store address) as a non-null reference.
func FuncRefValue(handle int32) Value   { return Value{low: uint64(uint32(handle))} }
func ExternRefValue(handle int32) Value { return Value{low: uint64(uint32(handle))} }

func (v Value) I32() int32       { return int32(uint32(v.low)) }
func (v Value) I64() int64       { return int64(v.low) }
func (v Value) F32() float32     { return math.Float32frombits(uint32(v.low)) }
func (v Value) F64() float64     { return math.Float64frombits(v.low) }
func (v Value) V128() V128Value  { return V128Value{Low: v.low, High: v.high} }
func (v Value) RefHandle() int32 { return int32(uint32(v.low)) }
func (v Value) IsNullRef() bool  { return int32(uint32(v.low)) == NullReference }

// DefaultValue returns the zero value for a value type, as used to
// initialize locals that were not explicitly given an initial value.
func DefaultValue(t ValueType) Value {
	switch tt := t.(type) {
	case NumberType:
		switch tt {
		case I32:
			return I32Value(0)
		case I64:
			return I64Value(0)
		case F32:
			return F32Value(0)
		case F64:
			return F64Value(0)
		}
	case VectorType:
		return V128Val(V128Value{})
	case ReferenceType:
		h := NullReference
		return Value{low: uint64(uint32(h))}
	}
	panic("unreachable")
}
