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

import "github.com/pkg/errors"

// ResolvedImports holds the concrete instances a module's import section
// resolved to, in declaration order, ready to be appended to the Store
// during instantiation.
type ResolvedImports struct {
	functions []*FunctionInstance
	tables    []*Table
	memories  []*Memory
	globals   []*Global
}

// resolveImports is outside the execution core's specified scope (§1: "import
// resolution" is an external collaborator), but the repository still needs
// a concrete implementation to be instantiable end to end. Adapted from the
// teacher's imports.go: for every entry in the module's import section, look
// up moduleName.name in the supplied map and check its dynamic type against
// the declared one.
func resolveImports(module *Module, imports map[string]map[string]any) (*ResolvedImports, error) {
	resolved := &ResolvedImports{}

	for _, imp := range module.Imports {
		ns, ok := imports[imp.ModuleName]
		if !ok {
			return nil, errors.Errorf("missing module %s", imp.ModuleName)
		}
		val, ok := ns[imp.Name]
		if !ok {
			return nil, errors.Errorf("missing import %s.%s", imp.ModuleName, imp.Name)
		}

		switch t := imp.Type.(type) {
		case FunctionTypeIndex:
			funcType := module.Types[t]
			fn, err := asHostFunction(val, funcType)
			if err != nil {
				return nil, errors.Wrapf(err, "%s.%s", imp.ModuleName, imp.Name)
			}
			resolved.functions = append(resolved.functions, fn)

		case TableType:
			table, ok := val.(*Table)
			if !ok {
				return nil, errors.Errorf("%s.%s not a table", imp.ModuleName, imp.Name)
			}
			if !limitsMatch(table.Type.Limits, t.Limits) {
				return nil, errors.Errorf("%s.%s incompatible table limits", imp.ModuleName, imp.Name)
			}
			resolved.tables = append(resolved.tables, table)

		case MemoryType:
			memory, ok := val.(*Memory)
			if !ok {
				return nil, errors.Errorf("%s.%s not a memory", imp.ModuleName, imp.Name)
			}
			if !limitsMatch(memory.Limits, t.Limits) {
				return nil, errors.Errorf("%s.%s incompatible memory limits", imp.ModuleName, imp.Name)
			}
			resolved.memories = append(resolved.memories, memory)

		case GlobalType:
			global, ok := val.(*Global)
			if !ok {
				return nil, errors.Errorf("%s.%s not a global", imp.ModuleName, imp.Name)
			}
			resolved.globals = append(resolved.globals, global)

		default:
			return nil, errors.Errorf("%s.%s unknown import kind", imp.ModuleName, imp.Name)
		}
	}

	return resolved, nil
}

// asHostFunction adapts a Go value bound in an import map into the
// FunctionInstance host variant. A bare HostCallable and a
// *HostFunctionBody (to specify a non-zero gas cost) are accepted, and a
// *FunctionInstance (e.g. another module's export) is passed through as is.
func asHostFunction(val any, funcType FunctionType) (*FunctionInstance, error) {
	switch fn := val.(type) {
	case HostCallable:
		return &FunctionInstance{
			Type: funcType,
			Kind: HostFunctionKind,
			Host: &HostFunctionBody{Callable: fn},
		}, nil
	case *HostFunctionBody:
		return &FunctionInstance{Type: funcType, Kind: HostFunctionKind, Host: fn}, nil
	case *FunctionInstance:
		return fn, nil
	default:
		return nil, errors.New("not a host function")
	}
}

func limitsMatch(provided, required Limits) bool {
	if provided.Min < required.Min {
		return false
	}
	if required.Max == nil {
		return true
	}
	if provided.Max == nil {
		return false
	}
	return *provided.Max <= *required.Max
}
