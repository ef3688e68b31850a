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
	"go.uber.org/zap"
)

// Interpreter ties the specified components together into something that
// can actually run a module: a Store of every allocated instance, the
// StackManager driving frame/label/value bookkeeping, and the Config
// governing limits and instrumentation. The dispatch loop it drives
// (runFrame, in dispatch.go) is explicitly out of the specified surface (§2, §9) — it
// exists only so the fully-specified components (call entry, branch engine,
// instance resolvers, the fault guard) are exercised end to end.
type Interpreter struct {
	Store  *Store
	Stack  *StackManager
	Config Config
}

// NewInterpreter returns an Interpreter with a fresh Store and StackManager.
func NewInterpreter(config Config) *Interpreter {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Interpreter{
		Store:  NewStore(),
		Stack:  NewStackManager(),
		Config: config,
	}
}

// Instantiate allocates every instance a module's sections describe,
// resolves its imports against the supplied namespace map, runs active
// element/data initializers, and (if present) its start function.
//
// Grounded on the teacher's vm.instantiate, generalized from its ad hoc
// undefined helper types to this package's Store/ModuleInstance/
// FunctionInstance machinery.
func (vm *Interpreter) Instantiate(module *Module, imports map[string]map[string]any) (*ModuleInstance, *Error) {
	resolved, err := resolveImports(module, imports)
	if err != nil {
		return nil, &Error{Code: TypeMismatch, cause: err}
	}

	mi := &ModuleInstance{types: module.Types, store: vm.Store}

	for _, fn := range resolved.functions {
		addr := uint32(len(vm.Store.funcs))
		vm.Store.funcs = append(vm.Store.funcs, fn)
		mi.funcAddrs = append(mi.funcAddrs, addr)
	}
	for i := range module.Funcs {
		def := &module.Funcs[i]
		addr := uint32(len(vm.Store.funcs))
		vm.Store.funcs = append(vm.Store.funcs, &FunctionInstance{
			Type:       module.Types[def.TypeIndex],
			ModuleAddr: mi,
			Kind:       BytecodeFunctionKind,
			Bytecode:   &BytecodeFunctionBody{Locals: def.Locals, Code: def.Body},
		})
		mi.funcAddrs = append(mi.funcAddrs, addr)
	}

	for _, t := range resolved.tables {
		addr := uint32(len(vm.Store.tables))
		vm.Store.tables = append(vm.Store.tables, t)
		mi.tableAddrs = append(mi.tableAddrs, addr)
	}
	for _, tt := range module.Tables {
		addr := uint32(len(vm.Store.tables))
		vm.Store.tables = append(vm.Store.tables, NewTable(tt))
		mi.tableAddrs = append(mi.tableAddrs, addr)
	}

	for _, m := range resolved.memories {
		addr := uint32(len(vm.Store.memories))
		vm.Store.memories = append(vm.Store.memories, m)
		mi.memAddrs = append(mi.memAddrs, addr)
	}
	for _, mt := range module.Memories {
		addr := uint32(len(vm.Store.memories))
		vm.Store.memories = append(vm.Store.memories, NewMemory(mt))
		mi.memAddrs = append(mi.memAddrs, addr)
	}

	for _, g := range resolved.globals {
		addr := uint32(len(vm.Store.globals))
		vm.Store.globals = append(vm.Store.globals, g)
		mi.globalAddrs = append(mi.globalAddrs, addr)
	}
	for _, gv := range module.GlobalVariables {
		val, trapErr := vm.evalConstExpr(mi, gv.InitExpression)
		if trapErr != nil {
			return nil, trapErr
		}
		addr := uint32(len(vm.Store.globals))
		vm.Store.globals = append(vm.Store.globals, &Global{
			Value:   val,
			Mutable: gv.GlobalType.IsMutable,
			Type:    gv.GlobalType.ValueType,
		})
		mi.globalAddrs = append(mi.globalAddrs, addr)
	}

	for _, es := range module.ElementSegments {
		addr := uint32(len(vm.Store.elements))
		vm.Store.elements = append(vm.Store.elements, es)
		mi.elemAddrs = append(mi.elemAddrs, addr)
	}
	for _, ds := range module.DataSegments {
		addr := uint32(len(vm.Store.datas))
		vm.Store.datas = append(vm.Store.datas, ds)
		mi.dataAddrs = append(mi.dataAddrs, addr)
	}

	mi.refreshFastPathPointers()

	for i, es := range module.ElementSegments {
		if es.Mode != ActiveElementMode {
			continue
		}
		offset, trapErr := vm.evalConstExpr(mi, es.OffsetExpression)
		if trapErr != nil {
			return nil, trapErr
		}
		tableAddr, ok := mi.getTableAddr(es.TableIndex)
		if !ok {
			return nil, NewTrapCode(UndefinedElement)
		}
		table, _ := vm.Store.GetTable(tableAddr)
		// A table slot holds a Store address (what call_indirect dereferences
		// directly), not the module-local index the binary format encodes an
		// element segment's entries as, so each entry is translated through
		// the instantiating module's function index space first.
		storeAddrs := make([]int32, len(es.FuncIndexes))
		for i, localIdx := range es.FuncIndexes {
			if localIdx < 0 {
				storeAddrs[i] = NullReference
				continue
			}
			addr, ok := mi.getFuncAddr(uint32(localIdx))
			if !ok {
				return nil, NewTrapCode(UndefinedElement)
			}
			storeAddrs[i] = int32(addr)
		}
		if err := table.InitFromSlice(offset.I32(), storeAddrs); err != nil {
			return nil, NewTrap(UndefinedElement, "active element init: %v", err)
		}
		// Active segments are dropped once applied, per the Wasm Core spec.
		vm.Store.elements[mi.elemAddrs[i]].Mode = DeclarativeElementMode
	}
	for i, ds := range module.DataSegments {
		if ds.Mode != ActiveDataMode {
			continue
		}
		offset, trapErr := vm.evalConstExpr(mi, ds.OffsetExpression)
		if trapErr != nil {
			return nil, trapErr
		}
		memAddr, ok := mi.getMemAddr(ds.MemoryIndex)
		if !ok {
			return nil, NewTrapCode(MemoryOutOfBounds)
		}
		memory, _ := vm.Store.GetMemory(memAddr)
		if err := memory.Init(uint32(len(ds.Content)), 0, uint32(offset.I32()), ds.Content); err != nil {
			return nil, NewTrap(MemoryOutOfBounds, "active data init: %v", err)
		}
		vm.Store.datas[mi.dataAddrs[i]].Mode = PassiveDataMode
	}

	for _, exp := range module.Exports {
		mi.exports = append(mi.exports, ExportInstance{Name: exp.Name, Value: vm.resolveExportValue(mi, exp)})
	}

	if module.StartIndex != nil {
		fn, ok := getFunctionByAddrHint(mi, vm.Store, *module.StartIndex)
		if !ok {
			return nil, NewTrapCode(UndefinedElement)
		}
		if _, trapErr := vm.callFunction(fn, nil); trapErr != nil {
			return nil, trapErr
		}
	}

	return mi, nil
}

func (vm *Interpreter) resolveExportValue(mi *ModuleInstance, exp Export) any {
	switch exp.IndexType {
	case FunctionIndexType:
		addr, ok := mi.getFuncAddr(exp.Index)
		if !ok {
			return nil
		}
		fn, _ := vm.Store.GetFunc(addr)
		return fn
	case TableIndexType:
		addr, ok := mi.getTableAddr(exp.Index)
		if !ok {
			return nil
		}
		t, _ := vm.Store.GetTable(addr)
		return t
	case MemoryIndexType:
		addr, ok := mi.getMemAddr(exp.Index)
		if !ok {
			return nil
		}
		m, _ := vm.Store.GetMemory(addr)
		return m
	case GlobalIndexType:
		addr, ok := mi.getGlobalAddr(exp.Index)
		if !ok {
			return nil
		}
		g, _ := vm.Store.GetGlobal(addr)
		return g
	default:
		return nil
	}
}

// getFunctionByAddrHint resolves a module-local function index directly
// against a ModuleInstance without going through the resolvers in
// resolvers.go, which require an already-active frame on the StackManager —
// unavailable while a module is still being instantiated.
func getFunctionByAddrHint(mi *ModuleInstance, store *Store, localIdx uint32) (*FunctionInstance, bool) {
	addr, ok := mi.getFuncAddr(localIdx)
	if !ok {
		return nil, false
	}
	return store.GetFunc(addr)
}

// evalConstExpr evaluates a global initializer or an active element/data
// segment's offset expression: the restricted constant-expression
// instruction set the Wasm Core spec allows there (i32/i64/f32/f64.const,
// global.get of an earlier immutable global, ref.null, ref.func).
func (vm *Interpreter) evalConstExpr(mi *ModuleInstance, code []byte) (Value, *Error) {
	cursor := &byteCursor{data: code}
	op, err := cursor.readByte()
	if err != nil {
		return Value{}, NewTrap(TypeMismatch, "empty const expression")
	}

	var result Value
	switch opcode(op) {
	case opI32Const:
		v, err := cursor.readSleb32()
		if err != nil {
			return Value{}, NewTrap(TypeMismatch, "malformed i32.const: %v", err)
		}
		result = I32Value(v)
	case opI64Const:
		v, err := cursor.readSleb64()
		if err != nil {
			return Value{}, NewTrap(TypeMismatch, "malformed i64.const: %v", err)
		}
		result = I64Value(v)
	case opF32Const:
		v, err := cursor.readF32()
		if err != nil {
			return Value{}, NewTrap(TypeMismatch, "malformed f32.const: %v", err)
		}
		result = F32Value(v)
	case opF64Const:
		v, err := cursor.readF64()
		if err != nil {
			return Value{}, NewTrap(TypeMismatch, "malformed f64.const: %v", err)
		}
		result = F64Value(v)
	case opGlobalGet:
		idx, err := cursor.readUleb32()
		if err != nil {
			return Value{}, NewTrap(TypeMismatch, "malformed global.get: %v", err)
		}
		addr, ok := mi.getGlobalAddr(idx)
		if !ok {
			return Value{}, NewTrapCode(UndefinedElement)
		}
		g, ok := vm.Store.GetGlobal(addr)
		if !ok {
			return Value{}, NewTrapCode(UndefinedElement)
		}
		result = g.Value
	case opRefNull:
		if _, err := cursor.readByte(); err != nil {
			return Value{}, NewTrap(TypeMismatch, "malformed ref.null: %v", err)
		}
		result = NullFuncRef()
	case opRefFunc:
		idx, err := cursor.readUleb32()
		if err != nil {
			return Value{}, NewTrap(TypeMismatch, "malformed ref.func: %v", err)
		}
		addr, ok := mi.getFuncAddr(idx)
		if !ok {
			return Value{}, NewTrapCode(UndefinedElement)
		}
		result = FuncRefValue(int32(addr))
	default:
		return Value{}, NewTrap(TypeMismatch, "opcode 0x%02x not valid in a constant expression", op)
	}

	return result, nil
}

// callFunction is the internal call boundary shared by Invoke and the start
// function: it pushes args, drives enterFunction, and — if the callee is a
// bytecode function — recurses into the dispatch loop until that activation
// returns. A Terminated trap reaching this boundary clears the termination
// flag, so later calls are not refused by a stale request.
func (vm *Interpreter) callFunction(fn *FunctionInstance, args []Value) (rets []Value, trapErr *Error) {
	defer func() {
		if trapErr != nil && trapErr.Code == Terminated {
			terminationClear()
		}
	}()

	for _, a := range args {
		vm.Stack.Push(a)
	}

	outcome, trapErr := vm.enterFunction(fn, 0, false)
	if trapErr != nil {
		return nil, trapErr
	}
	if outcome.EnteredBytecode {
		if trapErr := vm.runFrame(outcome.Function); trapErr != nil {
			return nil, trapErr
		}
	}

	return vm.Stack.PopTopN(uint32(len(fn.Type.ResultTypes))), nil
}

// Invoke calls an instantiated module's named export as a function.
func (vm *Interpreter) Invoke(mi *ModuleInstance, name string, args []Value) ([]Value, *Error) {
	for _, exp := range mi.exports {
		if exp.Name != name {
			continue
		}
		fn, ok := exp.Value.(*FunctionInstance)
		if !ok {
			return nil, NewTrap(TypeMismatch, "export %q is not a function", name)
		}
		return vm.callFunction(fn, args)
	}
	return nil, NewTrap(TypeMismatch, "no such export %q", name)
}
