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

// opcode is a raw Wasm instruction byte. Opcode semantics are the Wasm Core
// specification's job, not this execution core's (§2, §9: "Dispatch loop
// referenced but NOT specified") — the set implemented by dispatch.go's dispatch
// loop is a representative subset exercising every specified component
// (call entry, branch engine, instance resolvers, the fault guard) rather
// than the full instruction matrix; see DESIGN.md for what's out of scope
// and why (mainly the SIMD lane operations and the full numeric conversion
// matrix, which add breadth but no new architectural surface).
type opcode byte

const (
	opUnreachable opcode = 0x00
	opNop         opcode = 0x01
	opBlock       opcode = 0x02
	opLoop        opcode = 0x03
	opIf          opcode = 0x04
	opElse        opcode = 0x05
	opEnd         opcode = 0x0B
	opBr          opcode = 0x0C
	opBrIf        opcode = 0x0D
	opBrTable     opcode = 0x0E
	opReturn      opcode = 0x0F
	opCall        opcode = 0x10
	opCallIndirect opcode = 0x11
	opReturnCall   opcode = 0x12
	opReturnCallIndirect opcode = 0x13

	opDrop   opcode = 0x1A
	opSelect opcode = 0x1B

	opLocalGet  opcode = 0x20
	opLocalSet  opcode = 0x21
	opLocalTee  opcode = 0x22
	opGlobalGet opcode = 0x23
	opGlobalSet opcode = 0x24

	opTableGet opcode = 0x25
	opTableSet opcode = 0x26

	opI32Load  opcode = 0x28
	opI64Load  opcode = 0x29
	opF32Load  opcode = 0x2A
	opF64Load  opcode = 0x2B
	opI32Store opcode = 0x36
	opI64Store opcode = 0x37
	opF32Store opcode = 0x38
	opF64Store opcode = 0x39

	opMemorySize opcode = 0x3F
	opMemoryGrow opcode = 0x40

	opI32Const opcode = 0x41
	opI64Const opcode = 0x42
	opF32Const opcode = 0x43
	opF64Const opcode = 0x44

	opI32Eqz opcode = 0x45
	opI32Eq  opcode = 0x46
	opI32Ne  opcode = 0x47
	opI32LtS opcode = 0x48
	opI32GtS opcode = 0x4A
	opI32LeS opcode = 0x4C
	opI32GeS opcode = 0x4E

	opI64Eqz opcode = 0x50
	opI64Eq  opcode = 0x51
	opI64LtS opcode = 0x53

	opI32Add opcode = 0x6A
	opI32Sub opcode = 0x6B
	opI32Mul opcode = 0x6C
	opI32DivS opcode = 0x6D
	opI32RemS opcode = 0x6F
	opI32And  opcode = 0x71
	opI32Or   opcode = 0x72
	opI32Xor  opcode = 0x73

	opI64Add opcode = 0x7C
	opI64Sub opcode = 0x7D
	opI64Mul opcode = 0x7E

	opF32Add opcode = 0x92
	opF32Sub opcode = 0x93
	opF32Mul opcode = 0x94
	opF32Div opcode = 0x95

	opF64Add opcode = 0xA0
	opF64Sub opcode = 0xA1
	opF64Mul opcode = 0xA2
	opF64Div opcode = 0xA3

	opRefNull   opcode = 0xD0
	opRefIsNull opcode = 0xD1
	opRefFunc   opcode = 0xD2
)
