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

func TestRuntimeInstantiateModuleAndInvoke(t *testing.T) {
	module := &Module{
		Types: []FunctionType{{ParamTypes: []ValueType{I32, I32}, ResultTypes: []ValueType{I32}}},
		Funcs: []Function{{
			TypeIndex: 0,
			Body: cat(
				[]byte{0x20}, uleb32Bytes(0),
				[]byte{0x20}, uleb32Bytes(1),
				[]byte{0x6A},
				[]byte{0x0B},
			),
		}},
		Exports: []Export{{Name: "add", IndexType: FunctionIndexType, Index: 0}},
	}

	rt := NewRuntime(DefaultConfig())
	mi, err := rt.InstantiateModule(module, nil)
	if err != nil {
		t.Fatalf("InstantiateModule failed: %v", err)
	}

	rets, err := rt.Invoke(mi, "add", I32Value(2), I32Value(40))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if rets[0].I32() != 42 {
		t.Errorf("add(2, 40) = %d, want 42", rets[0].I32())
	}
}

func TestRuntimeModuleImportBuilder(t *testing.T) {
	module := &Module{
		Types:   []FunctionType{{ParamTypes: []ValueType{I32}, ResultTypes: []ValueType{I32}}},
		Imports: []Import{{ModuleName: "env", Name: "double", Type: FunctionTypeIndex(0)}},
		Funcs: []Function{{
			TypeIndex: 0,
			Body:      cat([]byte{0x20}, uleb32Bytes(0), []byte{0x10}, uleb32Bytes(0), []byte{0x0B}),
		}},
		Exports: []Export{{Name: "callDouble", IndexType: FunctionIndexType, Index: 1}},
	}

	imports := BuildImports(
		NewModuleImportBuilder("env").AddHostFunc("double", func(mem *Memory, args []Value) ([]Value, error) {
			return []Value{I32Value(args[0].I32() * 2)}, nil
		}),
	)

	rt := NewRuntime(DefaultConfig())
	mi, err := rt.InstantiateModule(module, imports)
	if err != nil {
		t.Fatalf("InstantiateModule failed: %v", err)
	}

	rets, err := rt.Invoke(mi, "callDouble", I32Value(5))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if rets[0].I32() != 10 {
		t.Errorf("callDouble(5) = %d, want 10 (5 forwarded through the host import)", rets[0].I32())
	}
}
