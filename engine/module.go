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

import "slices"

// FunctionType is a Wasm function signature.
type FunctionType struct {
	ParamTypes  []ValueType
	ResultTypes []ValueType
}

// Equal reports whether two function types have identical param and result
// type sequences. Used to check call_indirect's dynamic type check.
func (ft *FunctionType) Equal(other *FunctionType) bool {
	if ft == other {
		return true
	}
	if ft == nil || other == nil {
		return false
	}
	return slices.Equal(ft.ParamTypes, other.ParamTypes) &&
		slices.Equal(ft.ResultTypes, other.ResultTypes)
}

// LocalDecl is one run-length-encoded (count, type) pair from a function's
// local declaration list, as stored in the binary format.
type LocalDecl struct {
	Count uint32
	Type  ValueType
}

// Function is a function defined (not imported) by a module: its type, its
// run-length-encoded locals, and its raw instruction bytes.
type Function struct {
	TypeIndex uint32
	Locals    []LocalDecl
	Body      []byte
}

// IndexType distinguishes the four index spaces an Export can name.
type IndexType int

const (
	FunctionIndexType IndexType = 0x0
	TableIndexType    IndexType = 0x1
	MemoryIndexType   IndexType = 0x2
	GlobalIndexType   IndexType = 0x3
)

// Import is one entry of a module's import section.
type Import struct {
	ModuleName string
	Name       string
	Type       ImportType
}

// ImportType is a marker interface for what an import resolves to.
type ImportType interface {
	isImportType()
}

// FunctionTypeIndex is the type of an imported function, given by index into
// the importing module's type section.
type FunctionTypeIndex uint32

func (FunctionTypeIndex) isImportType() {}
func (TableType) isImportType()         {}
func (MemoryType) isImportType()        {}
func (GlobalType) isImportType()        {}

// Export is one entry of a module's export section.
type Export struct {
	Name      string
	IndexType IndexType
	Index     uint32
}

// Limits bounds the size of a table or memory.
type Limits struct {
	Min uint64
	Max *uint64
}

// TableType is the type of a table: its element reference type and size
// limits.
type TableType struct {
	ReferenceType ReferenceType
	Limits        Limits
}

// MemoryType is the type of a linear memory: its size limits, in pages.
type MemoryType struct {
	Limits Limits
}

// ElementMode specifies how an element segment is handled at instantiation.
type ElementMode int

const (
	ActiveElementMode ElementMode = iota
	PassiveElementMode
	DeclarativeElementMode
)

// ElementSegment is one entry of a module's element section.
type ElementSegment struct {
	Mode ElementMode
	Kind ReferenceType

	FuncIndexes []int32

	TableIndex        uint32
	OffsetExpression  []byte
}

// GlobalType is the type of a global variable: its value type and whether
// it can be mutated after initialization.
type GlobalType struct {
	ValueType ValueType
	IsMutable bool
}

// GlobalVariable is one entry of a module's global section: its type and
// the constant expression that produces its initial value.
type GlobalVariable struct {
	GlobalType     GlobalType
	InitExpression []byte
}

// DataMode specifies how a data segment is handled at instantiation.
type DataMode int

const (
	ActiveDataMode DataMode = iota
	PassiveDataMode
)

// DataSegment is one entry of a module's data section.
type DataSegment struct {
	Mode    DataMode
	Content []byte

	MemoryIndex      uint32
	OffsetExpression []byte
}

// Module is the statically-decoded, unvalidated representation of a
// WebAssembly binary: the output of the parser and the input to
// instantiation. Decoding and validation are outside the execution core's
// scope; Module is the boundary type the core's Store/ModuleInstance
// machinery consumes.
type Module struct {
	Types           []FunctionType
	Imports         []Import
	Exports         []Export
	StartIndex      *uint32
	Tables          []TableType
	Memories        []MemoryType
	Funcs           []Function
	ElementSegments []ElementSegment
	GlobalVariables []GlobalVariable
	DataSegments    []DataSegment
}
