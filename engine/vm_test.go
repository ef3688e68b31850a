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

// The helpers below hand-assemble bytecode byte-for-byte the way a real
// Wasm binary encodes it and build Module values directly, bypassing this
// repository's own parser (which has no test of its own), since these tests
// want direct control over the exact instruction stream reaching the
// dispatch loop.

func uleb32Bytes(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			return out
		}
	}
}

func sleb64Bytes(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

func sleb32Bytes(v int32) []byte { return sleb64Bytes(int64(v)) }

func cat(chunks ...[]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func mustInstantiate(t *testing.T, vm *Interpreter, module *Module, imports map[string]map[string]any) *ModuleInstance {
	t.Helper()
	mi, trapErr := vm.Instantiate(module, imports)
	if trapErr != nil {
		t.Fatalf("Instantiate failed: %v", trapErr)
	}
	return mi
}

func TestEndToEndIdentity(t *testing.T) {
	module := &Module{
		Types: []FunctionType{{ParamTypes: []ValueType{I32}, ResultTypes: []ValueType{I32}}},
		Funcs: []Function{{
			TypeIndex: 0,
			Body:      cat([]byte{0x20}, uleb32Bytes(0), []byte{0x0B}), // local.get 0; end
		}},
		Exports: []Export{{Name: "identity", IndexType: FunctionIndexType, Index: 0}},
	}

	vm := NewInterpreter(DefaultConfig())
	mi := mustInstantiate(t, vm, module, nil)

	rets, trapErr := vm.Invoke(mi, "identity", []Value{I32Value(41)})
	if trapErr != nil {
		t.Fatalf("Invoke failed: %v", trapErr)
	}
	if len(rets) != 1 || rets[0].I32() != 41 {
		t.Errorf("identity(41) = %v, want [41]", rets)
	}
}

func TestEndToEndAdd(t *testing.T) {
	module := &Module{
		Types: []FunctionType{{ParamTypes: []ValueType{I32, I32}, ResultTypes: []ValueType{I32}}},
		Funcs: []Function{{
			TypeIndex: 0,
			Body: cat(
				[]byte{0x20}, uleb32Bytes(0), // local.get 0
				[]byte{0x20}, uleb32Bytes(1), // local.get 1
				[]byte{0x6A},                 // i32.add
				[]byte{0x0B},                 // end
			),
		}},
		Exports: []Export{{Name: "add", IndexType: FunctionIndexType, Index: 0}},
	}

	vm := NewInterpreter(DefaultConfig())
	mi := mustInstantiate(t, vm, module, nil)

	rets, trapErr := vm.Invoke(mi, "add", []Value{I32Value(5), I32Value(3)})
	if trapErr != nil {
		t.Fatalf("Invoke failed: %v", trapErr)
	}
	if rets[0].I32() != 8 {
		t.Errorf("add(5, 3) = %d, want 8", rets[0].I32())
	}
}

// TestEndToEndLoopSum exercises the branch engine's two distinct label
// exits — a loop re-entry (br 0) and an exit past both the loop and its
// enclosing block in one branch (br_if 1) — computing the triangular sum
// 1+2+...+n with a hand-written loop, the way a compiler would emit it.
func TestEndToEndLoopSum(t *testing.T) {
	body := cat(
		[]byte{0x20}, uleb32Bytes(0), // local.get 0 (n)
		[]byte{0x21}, uleb32Bytes(1), // local.set 1 (i = n)
		[]byte{0x41}, sleb32Bytes(0), // i32.const 0
		[]byte{0x21}, uleb32Bytes(2), // local.set 2 (acc = 0)
		[]byte{0x02}, sleb32Bytes(blockTypeVoidTag), // block
		[]byte{0x03}, sleb32Bytes(blockTypeVoidTag), // loop
		[]byte{0x20}, uleb32Bytes(1), // local.get 1 (i)
		[]byte{0x45},                 // i32.eqz
		[]byte{0x0D}, uleb32Bytes(1), // br_if 1 (exit the block when i == 0)
		[]byte{0x20}, uleb32Bytes(2), // local.get 2 (acc)
		[]byte{0x20}, uleb32Bytes(1), // local.get 1 (i)
		[]byte{0x6A},                 // i32.add
		[]byte{0x21}, uleb32Bytes(2), // local.set 2 (acc += i)
		[]byte{0x20}, uleb32Bytes(1), // local.get 1 (i)
		[]byte{0x41}, sleb32Bytes(1), // i32.const 1
		[]byte{0x6B},                 // i32.sub
		[]byte{0x21}, uleb32Bytes(1), // local.set 1 (i -= 1)
		[]byte{0x0C}, uleb32Bytes(0), // br 0 (loop again)
		[]byte{0x0B},                 // end (loop)
		[]byte{0x0B},                 // end (block)
		[]byte{0x20}, uleb32Bytes(2), // local.get 2 (acc)
		[]byte{0x0B},                 // end (function)
	)

	module := &Module{
		Types: []FunctionType{{ParamTypes: []ValueType{I32}, ResultTypes: []ValueType{I32}}},
		Funcs: []Function{{
			TypeIndex: 0,
			Locals:    []LocalDecl{{Count: 2, Type: I32}},
			Body:      body,
		}},
		Exports: []Export{{Name: "sum", IndexType: FunctionIndexType, Index: 0}},
	}

	vm := NewInterpreter(DefaultConfig())
	mi := mustInstantiate(t, vm, module, nil)

	rets, trapErr := vm.Invoke(mi, "sum", []Value{I32Value(5)})
	if trapErr != nil {
		t.Fatalf("Invoke failed: %v", trapErr)
	}
	if rets[0].I32() != 15 {
		t.Errorf("sum(5) = %d, want 15", rets[0].I32())
	}

	rets, trapErr = vm.Invoke(mi, "sum", []Value{I32Value(0)})
	if trapErr != nil {
		t.Fatalf("Invoke failed: %v", trapErr)
	}
	if rets[0].I32() != 0 {
		t.Errorf("sum(0) = %d, want 0", rets[0].I32())
	}
}

// TestEndToEndIndirectCallTypeMismatch places a function of one signature
// into a table and calls through it expecting another, exercising
// resolveIndirectTarget's dynamic type check (§4.5).
func TestEndToEndIndirectCallTypeMismatch(t *testing.T) {
	module := &Module{
		Types: []FunctionType{
			{ParamTypes: []ValueType{I32}, ResultTypes: []ValueType{I32}}, // type 0: expected by the call site
			{ResultTypes: []ValueType{I32}},                               // type 1: the table entry's actual type
			{},                                                            // type 2: the exported entry point
		},
		Funcs: []Function{
			{TypeIndex: 1, Body: cat([]byte{0x41}, sleb32Bytes(5), []byte{0x0B})}, // func 0: () -> i32, returns 5
			{TypeIndex: 2, Body: cat(
				[]byte{0x41}, sleb32Bytes(0), // i32.const 0 (table index)
				[]byte{0x11}, uleb32Bytes(0), uleb32Bytes(0), // call_indirect (type 0, table 0)
				[]byte{0x0B},
			)},
		},
		Tables: []TableType{{ReferenceType: FuncRefType, Limits: Limits{Min: 1}}},
		ElementSegments: []ElementSegment{{
			Mode:             ActiveElementMode,
			Kind:             FuncRefType,
			FuncIndexes:      []int32{0},
			TableIndex:       0,
			OffsetExpression: cat([]byte{0x41}, sleb32Bytes(0), []byte{0x0B}),
		}},
		Exports: []Export{{Name: "run", IndexType: FunctionIndexType, Index: 1}},
	}

	vm := NewInterpreter(DefaultConfig())
	mi := mustInstantiate(t, vm, module, nil)

	_, trapErr := vm.Invoke(mi, "run", nil)
	if trapErr == nil {
		t.Fatal("expected a trap, got nil")
	}
	if trapErr.Code != IndirectCallTypeMismatch {
		t.Errorf("trap code = %v, want IndirectCallTypeMismatch", trapErr.Code)
	}
}

// TestEndToEndOutOfBoundsLoad exercises the memory-access trap path: an
// i32.load whose address lies past the single page this module allocates.
func TestEndToEndOutOfBoundsLoad(t *testing.T) {
	module := &Module{
		Types: []FunctionType{{}},
		Funcs: []Function{{
			TypeIndex: 0,
			Body: cat(
				[]byte{0x41}, sleb32Bytes(100000), // i32.const 100000 (past the one page allocated)
				[]byte{0x28}, uleb32Bytes(2), uleb32Bytes(0), // i32.load align=2 offset=0
				[]byte{0x1A}, // drop
				[]byte{0x0B},
			),
		}},
		Memories: []MemoryType{{Limits: Limits{Min: 1}}},
		Exports:  []Export{{Name: "run", IndexType: FunctionIndexType, Index: 0}},
	}

	vm := NewInterpreter(DefaultConfig())
	mi := mustInstantiate(t, vm, module, nil)

	_, trapErr := vm.Invoke(mi, "run", nil)
	if trapErr == nil {
		t.Fatal("expected a trap, got nil")
	}
	if trapErr.Code != MemoryOutOfBounds {
		t.Errorf("trap code = %v, want MemoryOutOfBounds", trapErr.Code)
	}
}

// TestEndToEndHostCallCostExceeded exercises call entry's cost-metering
// path (§5, §8 scenario 5): a host call whose declared gas cost would push
// the running total past the configured ceiling must fail before the host
// function ever runs, and must never toggle the host-side timer.
func TestEndToEndHostCallCostExceeded(t *testing.T) {
	module := &Module{
		Types:   []FunctionType{{}},
		Imports: []Import{{ModuleName: "env", Name: "expensive", Type: FunctionTypeIndex(0)}},
		Funcs: []Function{{
			TypeIndex: 0,
			Body:      cat([]byte{0x10}, uleb32Bytes(0), []byte{0x0B}), // call 0; end
		}},
		Exports: []Export{{Name: "run", IndexType: FunctionIndexType, Index: 1}},
	}

	called := false
	stats := NewInProcessStatistics(50)
	config := DefaultConfig()
	config.Statistics = stats

	vm := NewInterpreter(config)
	mi := mustInstantiate(t, vm, module, map[string]map[string]any{
		"env": {
			"expensive": &HostFunctionBody{
				GasCost: 100,
				Callable: func(memory *Memory, args []Value) ([]Value, error) {
					called = true
					return nil, nil
				},
			},
		},
	})

	_, trapErr := vm.Invoke(mi, "run", nil)
	if trapErr == nil {
		t.Fatal("expected a trap, got nil")
	}
	if trapErr.Code != CostLimitExceeded {
		t.Errorf("trap code = %v, want CostLimitExceeded", trapErr.Code)
	}
	if called {
		t.Error("host function must not run once its cost exceeds the ceiling")
	}
	if stats.HostTimerActive() {
		t.Error("host timer must never have started for a call that was cost-rejected")
	}
}

// TestEndToEndTailCall exercises PushFrame's tail-call path (§4.3, §8
// scenario 6): a return_call must replace the caller's frame in place
// rather than stacking a new one.
func TestEndToEndTailCall(t *testing.T) {
	module := &Module{
		Types: []FunctionType{{ResultTypes: []ValueType{I32}}},
		Funcs: []Function{
			{TypeIndex: 0, Body: cat([]byte{0x12}, uleb32Bytes(1), []byte{0x0B})}, // func 0: return_call 1
			{TypeIndex: 0, Body: cat([]byte{0x41}, sleb32Bytes(77), []byte{0x0B})}, // func 1: () -> 77
		},
		Exports: []Export{{Name: "run", IndexType: FunctionIndexType, Index: 0}},
	}

	vm := NewInterpreter(DefaultConfig())
	mi := mustInstantiate(t, vm, module, nil)

	preDepth := vm.Stack.FrameDepth()
	rets, trapErr := vm.Invoke(mi, "run", nil)
	if trapErr != nil {
		t.Fatalf("Invoke failed: %v", trapErr)
	}
	if rets[0].I32() != 77 {
		t.Errorf("run() = %d, want 77", rets[0].I32())
	}
	if got := vm.Stack.FrameDepth(); got != preDepth {
		t.Errorf("FrameDepth() after a completed call = %d, want back to %d", got, preDepth)
	}
}
