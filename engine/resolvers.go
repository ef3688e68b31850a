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

// The five instance resolvers below (table, memory, global, element, data),
// plus getFunctionByIdx for the function index space, are parallel helpers
// that walk
// module-local-index -> Store-address -> instance. None of them trap:
// resolution failure just yields ok=false, and the caller (the dispatch
// loop or call entry) decides which Wasm-level error that means —
// typically UndefinedElement or IndirectCallTypeMismatch. Each fails for
// exactly one of three reasons: the current frame is the dummy frame, the
// current module has no such local index, or the Store has nothing at the
// resolved address.

func getTableByIdx(stack *StackManager, store *Store, localIdx uint32) (*Table, bool) {
	if stack.IsTopDummyFrame() {
		return nil, false
	}
	addr, ok := stack.GetModuleAddr().getTableAddr(localIdx)
	if !ok {
		return nil, false
	}
	return store.GetTable(addr)
}

func getMemoryByIdx(stack *StackManager, store *Store, localIdx uint32) (*Memory, bool) {
	if stack.IsTopDummyFrame() {
		return nil, false
	}
	addr, ok := stack.GetModuleAddr().getMemAddr(localIdx)
	if !ok {
		return nil, false
	}
	return store.GetMemory(addr)
}

func getGlobalByIdx(stack *StackManager, store *Store, localIdx uint32) (*Global, bool) {
	if stack.IsTopDummyFrame() {
		return nil, false
	}
	addr, ok := stack.GetModuleAddr().getGlobalAddr(localIdx)
	if !ok {
		return nil, false
	}
	return store.GetGlobal(addr)
}

func getElementByIdx(stack *StackManager, store *Store, localIdx uint32) (*ElementSegment, bool) {
	if stack.IsTopDummyFrame() {
		return nil, false
	}
	addr, ok := stack.GetModuleAddr().getElemAddr(localIdx)
	if !ok {
		return nil, false
	}
	return store.GetElement(addr)
}

func getDataByIdx(stack *StackManager, store *Store, localIdx uint32) (*DataSegment, bool) {
	if stack.IsTopDummyFrame() {
		return nil, false
	}
	addr, ok := stack.GetModuleAddr().getDataAddr(localIdx)
	if !ok {
		return nil, false
	}
	return store.GetData(addr)
}

func getFunctionByIdx(stack *StackManager, store *Store, localIdx uint32) (*FunctionInstance, bool) {
	if stack.IsTopDummyFrame() {
		return nil, false
	}
	addr, ok := stack.GetModuleAddr().getFuncAddr(localIdx)
	if !ok {
		return nil, false
	}
	return store.GetFunc(addr)
}
