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

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func putU32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func putU64(v uint64) []byte {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func (vm *Interpreter) execLoad(in instruction) *Error {
	mem, ok := getMemoryByIdx(vm.Stack, vm.Store, 0)
	if !ok {
		return NewTrapCode(UndefinedElement)
	}
	addr := vm.Stack.Pop().I32()
	if addr < 0 {
		return NewTrapCode(MemoryOutOfBounds)
	}

	width := uint32(4)
	if in.op == opI64Load || in.op == opF64Load {
		width = 8
	}
	raw, err := mem.Get(in.memOffset, uint32(addr), width)
	if err != nil {
		return NewTrap(MemoryOutOfBounds, "%v", err)
	}

	switch in.op {
	case opI32Load:
		vm.Stack.Push(I32Value(int32(leU32(raw))))
	case opI64Load:
		vm.Stack.Push(I64Value(int64(leU64(raw))))
	case opF32Load:
		vm.Stack.Push(F32Value(math.Float32frombits(leU32(raw))))
	case opF64Load:
		vm.Stack.Push(F64Value(math.Float64frombits(leU64(raw))))
	}
	return nil
}

func (vm *Interpreter) execStore(in instruction) *Error {
	mem, ok := getMemoryByIdx(vm.Stack, vm.Store, 0)
	if !ok {
		return NewTrapCode(UndefinedElement)
	}
	val := vm.Stack.Pop()
	addr := vm.Stack.Pop().I32()
	if addr < 0 {
		return NewTrapCode(MemoryOutOfBounds)
	}

	var raw []byte
	switch in.op {
	case opI32Store:
		raw = putU32(uint32(val.I32()))
	case opI64Store:
		raw = putU64(uint64(val.I64()))
	case opF32Store:
		raw = putU32(math.Float32bits(val.F32()))
	case opF64Store:
		raw = putU64(math.Float64bits(val.F64()))
	}
	if err := mem.Set(in.memOffset, uint32(addr), raw); err != nil {
		return NewTrap(MemoryOutOfBounds, "%v", err)
	}
	return nil
}

func (vm *Interpreter) pushBool(cond bool) {
	if cond {
		vm.Stack.Push(I32Value(1))
	} else {
		vm.Stack.Push(I32Value(0))
	}
}

// execNumeric covers the representative arithmetic and comparison subset
// opcodes.go declares. Every binary operator pops its right operand first,
// matching the Wasm Core spec's [... a b] op -> [... a op b] operand order.
func (vm *Interpreter) execNumeric(in instruction) *Error {
	switch in.op {
	case opI32Eqz:
		vm.pushBool(vm.Stack.Pop().I32() == 0)
	case opI32Eq:
		b, a := vm.Stack.Pop().I32(), vm.Stack.Pop().I32()
		vm.pushBool(a == b)
	case opI32Ne:
		b, a := vm.Stack.Pop().I32(), vm.Stack.Pop().I32()
		vm.pushBool(a != b)
	case opI32LtS:
		b, a := vm.Stack.Pop().I32(), vm.Stack.Pop().I32()
		vm.pushBool(a < b)
	case opI32GtS:
		b, a := vm.Stack.Pop().I32(), vm.Stack.Pop().I32()
		vm.pushBool(a > b)
	case opI32LeS:
		b, a := vm.Stack.Pop().I32(), vm.Stack.Pop().I32()
		vm.pushBool(a <= b)
	case opI32GeS:
		b, a := vm.Stack.Pop().I32(), vm.Stack.Pop().I32()
		vm.pushBool(a >= b)

	case opI64Eqz:
		vm.pushBool(vm.Stack.Pop().I64() == 0)
	case opI64Eq:
		b, a := vm.Stack.Pop().I64(), vm.Stack.Pop().I64()
		vm.pushBool(a == b)
	case opI64LtS:
		b, a := vm.Stack.Pop().I64(), vm.Stack.Pop().I64()
		vm.pushBool(a < b)

	case opI32Add:
		b, a := vm.Stack.Pop().I32(), vm.Stack.Pop().I32()
		vm.Stack.Push(I32Value(a + b))
	case opI32Sub:
		b, a := vm.Stack.Pop().I32(), vm.Stack.Pop().I32()
		vm.Stack.Push(I32Value(a - b))
	case opI32Mul:
		b, a := vm.Stack.Pop().I32(), vm.Stack.Pop().I32()
		vm.Stack.Push(I32Value(a * b))
	case opI32DivS:
		b, a := vm.Stack.Pop().I32(), vm.Stack.Pop().I32()
		if b == 0 {
			return NewTrapCode(DivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			return NewTrapCode(IntegerOverflow)
		}
		vm.Stack.Push(I32Value(a / b))
	case opI32RemS:
		b, a := vm.Stack.Pop().I32(), vm.Stack.Pop().I32()
		if b == 0 {
			return NewTrapCode(DivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			vm.Stack.Push(I32Value(0))
		} else {
			vm.Stack.Push(I32Value(a % b))
		}
	case opI32And:
		b, a := vm.Stack.Pop().I32(), vm.Stack.Pop().I32()
		vm.Stack.Push(I32Value(a & b))
	case opI32Or:
		b, a := vm.Stack.Pop().I32(), vm.Stack.Pop().I32()
		vm.Stack.Push(I32Value(a | b))
	case opI32Xor:
		b, a := vm.Stack.Pop().I32(), vm.Stack.Pop().I32()
		vm.Stack.Push(I32Value(a ^ b))

	case opI64Add:
		b, a := vm.Stack.Pop().I64(), vm.Stack.Pop().I64()
		vm.Stack.Push(I64Value(a + b))
	case opI64Sub:
		b, a := vm.Stack.Pop().I64(), vm.Stack.Pop().I64()
		vm.Stack.Push(I64Value(a - b))
	case opI64Mul:
		b, a := vm.Stack.Pop().I64(), vm.Stack.Pop().I64()
		vm.Stack.Push(I64Value(a * b))

	case opF32Add:
		b, a := vm.Stack.Pop().F32(), vm.Stack.Pop().F32()
		vm.Stack.Push(F32Value(a + b))
	case opF32Sub:
		b, a := vm.Stack.Pop().F32(), vm.Stack.Pop().F32()
		vm.Stack.Push(F32Value(a - b))
	case opF32Mul:
		b, a := vm.Stack.Pop().F32(), vm.Stack.Pop().F32()
		vm.Stack.Push(F32Value(a * b))
	case opF32Div:
		b, a := vm.Stack.Pop().F32(), vm.Stack.Pop().F32()
		vm.Stack.Push(F32Value(a / b))

	case opF64Add:
		b, a := vm.Stack.Pop().F64(), vm.Stack.Pop().F64()
		vm.Stack.Push(F64Value(a + b))
	case opF64Sub:
		b, a := vm.Stack.Pop().F64(), vm.Stack.Pop().F64()
		vm.Stack.Push(F64Value(a - b))
	case opF64Mul:
		b, a := vm.Stack.Pop().F64(), vm.Stack.Pop().F64()
		vm.Stack.Push(F64Value(a * b))
	case opF64Div:
		b, a := vm.Stack.Pop().F64(), vm.Stack.Pop().F64()
		vm.Stack.Push(F64Value(a / b))

	default:
		return NewTrap(IllegalInstruction, "opcode 0x%02x not implemented", byte(in.op))
	}
	return nil
}
