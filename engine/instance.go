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

import "unsafe"

// Global is a global variable instance.
type Global struct {
	Value   Value
	Mutable bool
	Type    ValueType
}

// FunctionKind tags which of the three call flavors a FunctionInstance's
// body is. Dispatch on Kind is a plain switch rather than an interface
// method call so the compiled/AOT case — the one that must reach its
// callable symbol with zero indirection overhead — never pays for virtual
// dispatch.
type FunctionKind int

const (
	HostFunctionKind FunctionKind = iota
	CompiledFunctionKind
	BytecodeFunctionKind
)

// HostCallable is a host function's implementation: it receives the
// caller's memory 0 (nil if the caller's module has none) and the argument
// vector, and returns the result vector or an error.
type HostCallable func(memory *Memory, args []Value) ([]Value, error)

// HostFunctionBody is the host variant of FunctionInstance.Body (§4.3).
type HostFunctionBody struct {
	Callable HostCallable
	GasCost  uint64
}

// CompiledTrampoline is the call contract a function-type trampoline
// symbol implements: given the thread-local execution context, the
// function-body symbol, and argument/result buffers, it runs the compiled
// body and returns. Traps surface through the Fault guard the caller
// installs around the call, not through this function's return value —
// matching spec's "invoked as (execCtx, bodySym, argsPtr, retsPtr) -> void,
// traps surfaced via Fault guard".
//
// JIT emission is explicitly out of scope; a real embedder would obtain
// Symbol/Trampoline from an AOT compiler and this type would describe the
// native calling convention. Here Symbol/Trampoline are simply Go closures
// honoring the same contract, so the call-entry code path that invokes
// them is identical to what would invoke real machine code.
type CompiledTrampoline func(execCtx *ExecContext, bodySymbol unsafe.Pointer, args, rets []Value)

// CompiledFunctionBody is the AOT variant of FunctionInstance.Body (§4.3).
type CompiledFunctionBody struct {
	BodySymbol unsafe.Pointer
	Trampoline CompiledTrampoline
}

// BytecodeFunctionBody is the interpreted variant of FunctionInstance.Body
// (§4.3): its locals declaration list and raw instruction stream.
type BytecodeFunctionBody struct {
	Locals []LocalDecl
	Code   []byte
}

// FunctionInstance is the runtime representation of a function, in any of
// its three call flavors.
type FunctionInstance struct {
	Type       FunctionType
	ModuleAddr *ModuleInstance

	Kind     FunctionKind
	Host     *HostFunctionBody
	Compiled *CompiledFunctionBody
	Bytecode *BytecodeFunctionBody
}

func (f *FunctionInstance) GetType() *FunctionType         { return &f.Type }
func (f *FunctionInstance) GetModuleAddr() *ModuleInstance { return f.ModuleAddr }

// ExecContext is the thread-local state populated by call entry before
// invoking compiled code (§4.3, §5): the store, and the callee module's
// memory-base and globals-base pointers, so compiled code dereferences
// them directly instead of calling back into the interpreter. It is
// mutated only by call entry; compiled code reads it but never rewrites
// it, and at most one ExecContext is live per interpreting goroutine.
type ExecContext struct {
	Store       *Store
	MemoryBase  unsafe.Pointer
	GlobalsBase unsafe.Pointer
}

// Store is the global registry of every instance allocated over the life
// of a VM: functions, tables, memories, globals, element segments and data
// segments, addressed by a flat index within each category. Module-local
// indices never address the Store directly — they first go through a
// ModuleInstance's address maps (§3: "indirection always Module-local-index
// -> Store-address -> Instance").
type Store struct {
	funcs    []*FunctionInstance
	tables   []*Table
	memories []*Memory
	globals  []*Global
	elements []ElementSegment
	datas    []DataSegment
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) GetFunc(addr uint32) (*FunctionInstance, bool) {
	if addr >= uint32(len(s.funcs)) {
		return nil, false
	}
	return s.funcs[addr], true
}

func (s *Store) GetTable(addr uint32) (*Table, bool) {
	if addr >= uint32(len(s.tables)) {
		return nil, false
	}
	return s.tables[addr], true
}

func (s *Store) GetMemory(addr uint32) (*Memory, bool) {
	if addr >= uint32(len(s.memories)) {
		return nil, false
	}
	return s.memories[addr], true
}

func (s *Store) GetGlobal(addr uint32) (*Global, bool) {
	if addr >= uint32(len(s.globals)) {
		return nil, false
	}
	return s.globals[addr], true
}

func (s *Store) GetElement(addr uint32) (*ElementSegment, bool) {
	if addr >= uint32(len(s.elements)) {
		return nil, false
	}
	return &s.elements[addr], true
}

func (s *Store) GetData(addr uint32) (*DataSegment, bool) {
	if addr >= uint32(len(s.datas)) {
		return nil, false
	}
	return &s.datas[addr], true
}

// ExportInstance is one named export of an instantiated module.
type ExportInstance struct {
	Name  string
	Value any
}

// ModuleInstance is the runtime representation of an instantiated module:
// its type table plus, for each of the six index spaces, a map from
// module-local index to Store address.
type ModuleInstance struct {
	types       []FunctionType
	funcAddrs   []uint32
	tableAddrs  []uint32
	memAddrs    []uint32
	globalAddrs []uint32
	elemAddrs   []uint32
	dataAddrs   []uint32
	exports     []ExportInstance

	store *Store

	// Direct pointers for the compiled fast path (§3, §5): the callee
	// module's memory 0 base and globals-array base, recomputed whenever
	// the memory backing them is grown.
	memoryBase  unsafe.Pointer
	globalsBase unsafe.Pointer
}

// ExportNames returns the names of every export a module instance defines,
// in declaration order.
func (m *ModuleInstance) ExportNames() []string {
	names := make([]string, len(m.exports))
	for i, exp := range m.exports {
		names[i] = exp.Name
	}
	return names
}

func (m *ModuleInstance) GetFuncType(i uint32) (*FunctionType, bool) {
	if i >= uint32(len(m.types)) {
		return nil, false
	}
	return &m.types[i], true
}

func (m *ModuleInstance) getFuncAddr(i uint32) (uint32, bool) {
	if i >= uint32(len(m.funcAddrs)) {
		return 0, false
	}
	return m.funcAddrs[i], true
}

func (m *ModuleInstance) getTableAddr(i uint32) (uint32, bool) {
	if i >= uint32(len(m.tableAddrs)) {
		return 0, false
	}
	return m.tableAddrs[i], true
}

func (m *ModuleInstance) getMemAddr(i uint32) (uint32, bool) {
	if i >= uint32(len(m.memAddrs)) {
		return 0, false
	}
	return m.memAddrs[i], true
}

func (m *ModuleInstance) getGlobalAddr(i uint32) (uint32, bool) {
	if i >= uint32(len(m.globalAddrs)) {
		return 0, false
	}
	return m.globalAddrs[i], true
}

func (m *ModuleInstance) getElemAddr(i uint32) (uint32, bool) {
	if i >= uint32(len(m.elemAddrs)) {
		return 0, false
	}
	return m.elemAddrs[i], true
}

func (m *ModuleInstance) getDataAddr(i uint32) (uint32, bool) {
	if i >= uint32(len(m.dataAddrs)) {
		return 0, false
	}
	return m.dataAddrs[i], true
}

// refreshFastPathPointers recomputes the direct memory/globals pointers
// compiled code reads. Called after instantiation and after any operation
// that can reallocate memory 0's backing storage (memory.grow).
func (m *ModuleInstance) refreshFastPathPointers() {
	if len(m.memAddrs) > 0 {
		if mem, ok := m.store.GetMemory(m.memAddrs[0]); ok {
			m.memoryBase = mem.Base()
		}
	}
	if len(m.globalAddrs) > 0 {
		// Globals are individually boxed (*Global) rather than packed into
		// one array in this implementation, so the "globals array base" is
		// the base of the module's own address-map slice; a real compiled
		// backend would instead pack globals into one contiguous array at
		// instantiation time and point here directly.
		m.globalsBase = unsafe.Pointer(&m.globalAddrs[0])
	}
}
