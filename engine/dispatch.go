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

// instruction is one decoded bytecode instruction: its opcode plus whatever
// immediate operands that opcode carries. Decoding immediates once into a
// single shared shape lets the structured-control-flow scanner below
// (skipToLabelEnd) advance over an instruction it isn't interested in
// without duplicating each opcode's immediate layout a second time.
type instruction struct {
	op opcode

	idx1, idx2 uint32
	memAlign   uint32
	memOffset  uint32
	blockType  int32
	i32        int32
	i64        int64
	f32        float32
	f64        float64
	brLabels   []uint32
	brDefault  uint32
	refType    byte
}

func decodeInstruction(cursor *byteCursor) (instruction, error) {
	raw, err := cursor.readByte()
	if err != nil {
		return instruction{}, err
	}
	in := instruction{op: opcode(raw)}

	switch in.op {
	case opBlock, opLoop, opIf:
		v, err := cursor.readSleb32()
		if err != nil {
			return in, err
		}
		in.blockType = v

	case opBr, opBrIf, opCall, opReturnCall, opLocalGet, opLocalSet, opLocalTee,
		opGlobalGet, opGlobalSet, opTableGet, opTableSet, opRefFunc:
		v, err := cursor.readUleb32()
		if err != nil {
			return in, err
		}
		in.idx1 = v

	case opBrTable:
		count, err := cursor.readUleb32()
		if err != nil {
			return in, err
		}
		in.brLabels = make([]uint32, count)
		for i := range in.brLabels {
			v, err := cursor.readUleb32()
			if err != nil {
				return in, err
			}
			in.brLabels[i] = v
		}
		v, err := cursor.readUleb32()
		if err != nil {
			return in, err
		}
		in.brDefault = v

	case opCallIndirect, opReturnCallIndirect:
		v1, err := cursor.readUleb32()
		if err != nil {
			return in, err
		}
		v2, err := cursor.readUleb32()
		if err != nil {
			return in, err
		}
		in.idx1, in.idx2 = v1, v2

	case opI32Load, opI64Load, opF32Load, opF64Load,
		opI32Store, opI64Store, opF32Store, opF64Store:
		align, err := cursor.readUleb32()
		if err != nil {
			return in, err
		}
		offset, err := cursor.readUleb32()
		if err != nil {
			return in, err
		}
		in.memAlign, in.memOffset = align, offset

	case opMemorySize, opMemoryGrow:
		if _, err := cursor.readByte(); err != nil {
			return in, err
		}

	case opI32Const:
		v, err := cursor.readSleb32()
		if err != nil {
			return in, err
		}
		in.i32 = v
	case opI64Const:
		v, err := cursor.readSleb64()
		if err != nil {
			return in, err
		}
		in.i64 = v
	case opF32Const:
		v, err := cursor.readF32()
		if err != nil {
			return in, err
		}
		in.f32 = v
	case opF64Const:
		v, err := cursor.readF64()
		if err != nil {
			return in, err
		}
		in.f64 = v

	case opRefNull:
		v, err := cursor.readByte()
		if err != nil {
			return in, err
		}
		in.refType = v
	}

	return in, nil
}

// skipToLabelEnd advances cursor past instructions until it finds this
// block's matching `end` (or, if stopAtElse, its matching `else`), tracking
// nested block/loop/if opens along the way. cursor must be positioned right
// after the opening instruction's own immediate. Returns the pc of the byte
// immediately after the matching end/else.
func skipToLabelEnd(cursor *byteCursor, stopAtElse bool) (uint32, error) {
	depth := 0
	for {
		in, err := decodeInstruction(cursor)
		if err != nil {
			return 0, err
		}
		switch in.op {
		case opBlock, opLoop, opIf:
			depth++
		case opElse:
			if depth == 0 && stopAtElse {
				return cursor.pc, nil
			}
		case opEnd:
			if depth == 0 {
				return cursor.pc, nil
			}
			depth--
		}
	}
}

// runFrame drives one bytecode activation's dispatch loop from pc 0 until it
// returns, either by falling off the end of its body, an explicit `return`,
// or a branch that unwinds past its outermost label. Calls that enter a
// further bytecode activation recurse into runFrame; the Go call stack
// mirrors the Wasm call stack for exactly this reason, so a nested runFrame
// returning simply resumes this loop where it left off.
func (vm *Interpreter) runFrame(function *FunctionInstance) *Error {
	module := function.ModuleAddr
	code := function.Bytecode.Code
	cursor := &byteCursor{data: code}

	for {
		if !cursor.hasMore() {
			vm.Stack.PopFrame()
			return nil
		}

		in, err := decodeInstruction(cursor)
		if err != nil {
			return NewTrap(TypeMismatch, "malformed bytecode: %v", err)
		}

		switch in.op {
		case opUnreachable:
			return NewTrapCode(Unreachable)

		case opNop:

		case opBlock:
			paramCount, resultCount := getBlockArity(module, in.blockType)
			contPc, err := skipToLabelEndFrom(code, cursor.pc)
			if err != nil {
				return NewTrap(TypeMismatch, "malformed block: %v", err)
			}
			vm.Stack.PushLabel(paramCount, resultCount, contPc, false, 0, in.blockType)

		case opLoop:
			paramCount, resultCount := getBlockArity(module, in.blockType)
			loopBodyPc := cursor.pc
			contPc, err := skipToLabelEndFrom(code, cursor.pc)
			if err != nil {
				return NewTrap(TypeMismatch, "malformed loop: %v", err)
			}
			vm.Stack.PushLabel(paramCount, resultCount, contPc, true, loopBodyPc, in.blockType)

		case opIf:
			paramCount, resultCount := getBlockArity(module, in.blockType)
			cond := vm.Stack.Pop()
			elseOrEndPc, err := skipToLabelEndFrom2(code, cursor.pc, true)
			if err != nil {
				return NewTrap(TypeMismatch, "malformed if: %v", err)
			}
			endPc, err := skipToLabelEndFrom(code, cursor.pc)
			if err != nil {
				return NewTrap(TypeMismatch, "malformed if: %v", err)
			}
			vm.Stack.PushLabel(paramCount, resultCount, endPc, false, 0, in.blockType)
			if cond.I32() == 0 {
				if elseOrEndPc == endPc {
					// No else clause: the construct's `end` will never be
					// reached by the dispatch loop, so pop its label now,
					// exactly as reaching that `end` naturally would.
					vm.Stack.PopLabel(1)
				}
				cursor.pc = elseOrEndPc
			}

		case opElse:
			// Reached only by falling out of an if's true arm: skip the
			// else arm entirely and resume just after its matching end,
			// popping the label ourselves since that `end` is never
			// actually decoded by this loop.
			endPc, err := skipToLabelEndFrom(code, cursor.pc)
			if err != nil {
				return NewTrap(TypeMismatch, "malformed else: %v", err)
			}
			vm.Stack.PopLabel(1)
			cursor.pc = endPc

		case opEnd:
			if vm.Stack.IsOutermostLabel() {
				vm.Stack.PopFrame()
				return nil
			}
			vm.Stack.PopLabel(1)

		case opBr:
			pc, returned := vm.doBranch(module, in.idx1)
			if returned {
				return nil
			}
			cursor.pc = pc

		case opBrIf:
			cond := vm.Stack.Pop()
			if cond.I32() != 0 {
				pc, returned := vm.doBranch(module, in.idx1)
				if returned {
					return nil
				}
				cursor.pc = pc
			}

		case opBrTable:
			idx := vm.Stack.Pop().I32()
			target := in.brDefault
			if idx >= 0 && uint32(idx) < uint32(len(in.brLabels)) {
				target = in.brLabels[idx]
			}
			pc, returned := vm.doBranch(module, target)
			if returned {
				return nil
			}
			cursor.pc = pc

		case opReturn:
			vm.Stack.PopFrame()
			return nil

		case opCall:
			fn, ok := getFunctionByIdx(vm.Stack, vm.Store, in.idx1)
			if !ok {
				return NewTrapCode(UndefinedElement)
			}
			outcome, trapErr := vm.enterFunction(fn, cursor.pc, false)
			if trapErr != nil {
				return trapErr
			}
			if outcome.EnteredBytecode {
				if trapErr := vm.runFrame(outcome.Function); trapErr != nil {
					return trapErr
				}
			}

		case opReturnCall:
			fn, ok := getFunctionByIdx(vm.Stack, vm.Store, in.idx1)
			if !ok {
				return NewTrapCode(UndefinedElement)
			}
			outcome, trapErr := vm.enterFunction(fn, cursor.pc, true)
			if trapErr != nil {
				return trapErr
			}
			if outcome.EnteredBytecode {
				return vm.runFrame(outcome.Function)
			}
			return nil

		case opCallIndirect:
			fn, trapErr := vm.resolveIndirectTarget(module, in.idx2, in.idx1)
			if trapErr != nil {
				return trapErr
			}
			outcome, trapErr := vm.enterFunction(fn, cursor.pc, false)
			if trapErr != nil {
				return trapErr
			}
			if outcome.EnteredBytecode {
				if trapErr := vm.runFrame(outcome.Function); trapErr != nil {
					return trapErr
				}
			}

		case opReturnCallIndirect:
			fn, trapErr := vm.resolveIndirectTarget(module, in.idx2, in.idx1)
			if trapErr != nil {
				return trapErr
			}
			outcome, trapErr := vm.enterFunction(fn, cursor.pc, true)
			if trapErr != nil {
				return trapErr
			}
			if outcome.EnteredBytecode {
				return vm.runFrame(outcome.Function)
			}
			return nil

		case opDrop:
			vm.Stack.Pop()

		case opSelect:
			cond := vm.Stack.Pop()
			b := vm.Stack.Pop()
			a := vm.Stack.Pop()
			if cond.I32() != 0 {
				vm.Stack.Push(a)
			} else {
				vm.Stack.Push(b)
			}

		case opLocalGet:
			vm.Stack.Push(vm.Stack.getLocal(in.idx1))
		case opLocalSet:
			vm.Stack.setLocal(in.idx1, vm.Stack.Pop())
		case opLocalTee:
			v := vm.Stack.Pop()
			vm.Stack.setLocal(in.idx1, v)
			vm.Stack.Push(v)

		case opGlobalGet:
			g, ok := getGlobalByIdx(vm.Stack, vm.Store, in.idx1)
			if !ok {
				return NewTrapCode(UndefinedElement)
			}
			vm.Stack.Push(g.Value)
		case opGlobalSet:
			g, ok := getGlobalByIdx(vm.Stack, vm.Store, in.idx1)
			if !ok {
				return NewTrapCode(UndefinedElement)
			}
			g.Value = vm.Stack.Pop()

		case opTableGet:
			t, ok := getTableByIdx(vm.Stack, vm.Store, in.idx1)
			if !ok {
				return NewTrapCode(UndefinedElement)
			}
			idx := vm.Stack.Pop().I32()
			v, err := t.Get(idx)
			if err != nil {
				return NewTrap(UndefinedElement, "%v", err)
			}
			vm.Stack.Push(FuncRefValue(v))
		case opTableSet:
			t, ok := getTableByIdx(vm.Stack, vm.Store, in.idx1)
			if !ok {
				return NewTrapCode(UndefinedElement)
			}
			val := vm.Stack.Pop()
			idx := vm.Stack.Pop().I32()
			if err := t.Set(idx, val.RefHandle()); err != nil {
				return NewTrap(UndefinedElement, "%v", err)
			}

		case opI32Load, opI64Load, opF32Load, opF64Load:
			if trapErr := vm.execLoad(in); trapErr != nil {
				return trapErr
			}
		case opI32Store, opI64Store, opF32Store, opF64Store:
			if trapErr := vm.execStore(in); trapErr != nil {
				return trapErr
			}

		case opMemorySize:
			mem, ok := getMemoryByIdx(vm.Stack, vm.Store, 0)
			if !ok {
				return NewTrapCode(UndefinedElement)
			}
			vm.Stack.Push(I32Value(mem.Size()))
		case opMemoryGrow:
			mem, ok := getMemoryByIdx(vm.Stack, vm.Store, 0)
			if !ok {
				return NewTrapCode(UndefinedElement)
			}
			pages := vm.Stack.Pop().I32()
			prev := mem.Grow(pages)
			vm.Stack.Push(I32Value(prev))
			module.refreshFastPathPointers()

		case opI32Const:
			vm.Stack.Push(I32Value(in.i32))
		case opI64Const:
			vm.Stack.Push(I64Value(in.i64))
		case opF32Const:
			vm.Stack.Push(F32Value(in.f32))
		case opF64Const:
			vm.Stack.Push(F64Value(in.f64))

		case opRefNull:
			vm.Stack.Push(NullFuncRef())
		case opRefIsNull:
			v := vm.Stack.Pop()
			if v.IsNullRef() {
				vm.Stack.Push(I32Value(1))
			} else {
				vm.Stack.Push(I32Value(0))
			}
		case opRefFunc:
			addr, ok := module.getFuncAddr(in.idx1)
			if !ok {
				return NewTrapCode(UndefinedElement)
			}
			vm.Stack.Push(FuncRefValue(int32(addr)))

		default:
			if trapErr := vm.execNumeric(in); trapErr != nil {
				return trapErr
			}
		}
	}
}

// doBranch wraps branchToLabel with the one case it cannot express on its
// own: branching past the function's own outermost label. That label isn't
// a real structured-control-flow block, so there is no bytecode address to
// resume at — it means the function is returning, exactly as an explicit
// `return` would, and the caller (runFrame) must stop decoding this body
// rather than treat the popped label's continuation pc as a jump target.
func (vm *Interpreter) doBranch(module *ModuleInstance, count uint32) (pc uint32, returned bool) {
	exits := vm.Stack.IsFunctionExit(count)
	pc = branchToLabel(vm.Stack, module, count)
	if exits {
		vm.Stack.PopFrameAfterExit()
		return 0, true
	}
	return pc, false
}

// resolveIndirectTarget implements call_indirect's dynamic dispatch: an
// index into the given table must resolve to a live function whose type
// exactly matches typeIdx in the calling module's type table.
func (vm *Interpreter) resolveIndirectTarget(module *ModuleInstance, tableIdx, typeIdx uint32) (*FunctionInstance, *Error) {
	entryIdx := vm.Stack.Pop().I32()

	table, ok := getTableByIdx(vm.Stack, vm.Store, tableIdx)
	if !ok {
		return nil, NewTrapCode(UndefinedElement)
	}
	addr, err := table.Get(entryIdx)
	if err != nil || addr == NullReference {
		return nil, NewTrapCode(UndefinedElement)
	}
	fn, ok := vm.Store.GetFunc(uint32(addr))
	if !ok {
		return nil, NewTrapCode(UndefinedElement)
	}
	wantType, ok := module.GetFuncType(typeIdx)
	if !ok || !wantType.Equal(&fn.Type) {
		return nil, NewTrapCode(IndirectCallTypeMismatch)
	}
	return fn, nil
}

// skipToLabelEndFrom and skipToLabelEndFrom2 wrap skipToLabelEnd over a
// throwaway cursor rooted at code, since the block/loop/if handlers above
// only need the resulting pc, not the cursor itself (the real cursor is
// advanced explicitly when a branch or an if's false arm requires it).
func skipToLabelEndFrom(code []byte, from uint32) (uint32, error) {
	c := &byteCursor{data: code, pc: from}
	return skipToLabelEnd(c, false)
}

func skipToLabelEndFrom2(code []byte, from uint32, stopAtElse bool) (uint32, error) {
	c := &byteCursor{data: code, pc: from}
	return skipToLabelEnd(c, stopAtElse)
}
