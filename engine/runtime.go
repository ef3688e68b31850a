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

// Runtime is the embedder-facing entry point: one Runtime owns one Store
// (and therefore one address space of instances) across every module
// instantiated through it. Adapted from the teacher's runtime.go.
type Runtime struct {
	vm *Interpreter
}

// NewRuntime returns a Runtime configured with cfg.
func NewRuntime(cfg Config) *Runtime {
	return &Runtime{vm: NewInterpreter(cfg)}
}

// ParseAndInstantiate decodes a binary Wasm module and instantiates it
// against the supplied imports in one step.
func (r *Runtime) ParseAndInstantiate(wasmBytes []byte, imports map[string]map[string]any) (*ModuleInstance, error) {
	module, err := ParseModule(wasmBytes)
	if err != nil {
		return nil, err
	}
	mi, trapErr := r.vm.Instantiate(module, imports)
	if trapErr != nil {
		return nil, trapErr
	}
	return mi, nil
}

// InstantiateModule instantiates an already-decoded Module.
func (r *Runtime) InstantiateModule(module *Module, imports map[string]map[string]any) (*ModuleInstance, error) {
	mi, trapErr := r.vm.Instantiate(module, imports)
	if trapErr != nil {
		return nil, trapErr
	}
	return mi, nil
}

// Invoke calls an instantiated module's named export.
func (r *Runtime) Invoke(mi *ModuleInstance, name string, args ...Value) ([]Value, error) {
	rets, trapErr := r.vm.Invoke(mi, name, args)
	if trapErr != nil {
		return nil, trapErr
	}
	return rets, nil
}

// Terminate requests that any call currently executing through this
// Runtime's fault guard abort with the Terminated trap.
func (r *Runtime) Terminate() { Terminate() }

// ModuleImportBuilder fluently assembles the import namespace map
// Instantiate/ParseAndInstantiate expect: modulename -> fieldname -> value.
// Mirrors the teacher's ModuleImportBuilder.
type ModuleImportBuilder struct {
	moduleName string
	namespace  map[string]any
}

// NewModuleImportBuilder starts building the imports a module will offer
// under the given import module name.
func NewModuleImportBuilder(moduleName string) *ModuleImportBuilder {
	return &ModuleImportBuilder{moduleName: moduleName, namespace: map[string]any{}}
}

// AddHostFunc registers a host function import.
func (b *ModuleImportBuilder) AddHostFunc(name string, fn HostCallable) *ModuleImportBuilder {
	b.namespace[name] = fn
	return b
}

// AddHostFuncWithCost registers a host function import with a non-zero
// per-call gas cost, charged by call entry before the callable runs (§12).
func (b *ModuleImportBuilder) AddHostFuncWithCost(name string, fn HostCallable, cost uint64) *ModuleImportBuilder {
	b.namespace[name] = &HostFunctionBody{Callable: fn, GasCost: cost}
	return b
}

// AddMemory registers a memory import.
func (b *ModuleImportBuilder) AddMemory(name string, mem *Memory) *ModuleImportBuilder {
	b.namespace[name] = mem
	return b
}

// AddTable registers a table import.
func (b *ModuleImportBuilder) AddTable(name string, table *Table) *ModuleImportBuilder {
	b.namespace[name] = table
	return b
}

// AddGlobal registers a global import.
func (b *ModuleImportBuilder) AddGlobal(name string, global *Global) *ModuleImportBuilder {
	b.namespace[name] = global
	return b
}

// AddModuleExports re-exposes every export of an already-instantiated
// module under this namespace, the common pattern for wiring one module's
// exports as another's imports.
func (b *ModuleImportBuilder) AddModuleExports(mi *ModuleInstance) *ModuleImportBuilder {
	for _, exp := range mi.exports {
		b.namespace[exp.Name] = exp.Value
	}
	return b
}

// Build finalizes this namespace, ready to be merged into the map passed to
// Instantiate/ParseAndInstantiate.
func (b *ModuleImportBuilder) Build() (string, map[string]any) {
	return b.moduleName, b.namespace
}

// BuildImports merges any number of builders into the map shape Instantiate
// expects.
func BuildImports(builders ...*ModuleImportBuilder) map[string]map[string]any {
	out := map[string]map[string]any{}
	for _, b := range builders {
		name, fields := b.Build()
		out[name] = fields
	}
	return out
}
