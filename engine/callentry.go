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

import "go.uber.org/zap"

// CallOutcome is the discriminated result of enterFunction. Host and
// compiled functions run to completion synchronously and leave their
// results already pushed, so NextPc names where the *caller* resumes.
// Bytecode functions instead hand back the entry point of a *new*
// activation the dispatch loop must itself start interpreting —
// EnteredBytecode distinguishes the two so the dispatch loop knows whether
// to keep running the current frame or descend into a new one.
type CallOutcome struct {
	NextPc          uint32
	EnteredBytecode bool
	Function        *FunctionInstance
}

// enterFunction is the single entry point for any call site — a direct
// call, an indirect call, or an exported invocation — as required by
// spec's call-entry discipline. backPc is the instruction address
// immediately after the calling instruction.
//
// Grounded on original_source/lib/executor/helper.cpp's
// Executor::enterFunction, generalized from WasmEdge's two call flavors
// (host, compiled) to this core's three (host, compiled, bytecode) per
// spec §4.3, and on the teacher's invokeWasmFunction/invokeHostFunction
// (epsilon/vm.go) for the bytecode locals-materialization step.
func (vm *Interpreter) enterFunction(function *FunctionInstance, backPc uint32, isTailCall bool) (CallOutcome, *Error) {
	argsN := uint32(len(function.Type.ParamTypes))
	retsN := uint32(len(function.Type.ResultTypes))
	vm.Stack.PushFrame(function.ModuleAddr, argsN, retsN, isTailCall)

	switch function.Kind {
	case HostFunctionKind:
		return vm.enterHostFunction(function, backPc, argsN, retsN)
	case CompiledFunctionKind:
		return vm.enterCompiledFunction(function, backPc, argsN, retsN)
	case BytecodeFunctionKind:
		return vm.enterBytecodeFunction(function, backPc, retsN)
	default:
		vm.Stack.AbortFrame()
		return CallOutcome{}, NewTrapCode(IllegalInstruction)
	}
}

func (vm *Interpreter) enterHostFunction(function *FunctionInstance, backPc uint32, argsN, retsN uint32) (CallOutcome, *Error) {
	// This label exists solely so PopFrame's continuation lookup yields
	// backPc: a host call never branches, but it shares the frame/label
	// pairing every call flavor relies on.
	vm.Stack.PushLabel(0, retsN, backPc, false, 0, blockTypeVoidTag)

	// Resolve memory 0 of the *caller's* module — the frame we just pushed
	// is already current, so this must be read before proceeding, and may
	// legitimately be nil if the caller's module has no memory.
	callerFrame := vm.Stack.frames[len(vm.Stack.frames)-2]
	var callerMemory *Memory
	if callerFrame.Module != nil && len(callerFrame.Module.memAddrs) > 0 {
		callerMemory, _ = vm.Store.GetMemory(callerFrame.Module.memAddrs[0])
	}

	stats := vm.Config.Statistics
	if stats != nil {
		if !stats.AddCost(function.Host.GasCost) {
			vm.Stack.AbortFrame()
			return CallOutcome{}, NewTrapCode(CostLimitExceeded)
		}
		stats.StopRecordWasm()
		stats.StartRecordHost()
	}

	args := vm.Stack.PopTopN(argsN)

	var results []Value
	var callErr error
	func() {
		if stats != nil {
			defer func() {
				stats.StopRecordHost()
				stats.StartRecordWasm()
			}()
		}
		results, callErr = function.Host.Callable(callerMemory, args)
	}()

	if callErr != nil {
		vm.Config.Logger.Warn("host function failed", zap.Error(callErr))
		vm.Stack.AbortFrame()
		return CallOutcome{}, &Error{Code: ExecutionFailed, cause: callErr}
	}

	for _, r := range results {
		vm.Stack.Push(r)
	}
	return CallOutcome{NextPc: vm.Stack.PopFrame()}, nil
}

func (vm *Interpreter) enterCompiledFunction(function *FunctionInstance, backPc uint32, argsN, retsN uint32) (CallOutcome, *Error) {
	vm.Stack.PushLabel(0, retsN, backPc, false, 0, blockTypeVoidTag)

	args := vm.Stack.PopTopN(argsN)
	rets := make([]Value, retsN)

	execCtx := &ExecContext{
		Store:       vm.Store,
		MemoryBase:  function.ModuleAddr.memoryBase,
		GlobalsBase: function.ModuleAddr.globalsBase,
	}

	var faultCode Code
	var faulted bool
	if vm.Config.FaultGuardEnabled {
		var ok bool
		faultCode, ok = runGuarded(func() {
			function.Compiled.Trampoline(execCtx, function.Compiled.BodySymbol, args, rets)
		})
		faulted = !ok
	} else {
		function.Compiled.Trampoline(execCtx, function.Compiled.BodySymbol, args, rets)
	}

	if faulted {
		if faultCode != Terminated {
			vm.Config.Logger.Warn("compiled function faulted", zap.String("trap", faultCode.String()))
		}
		vm.Stack.AbortFrame()
		return CallOutcome{}, NewTrapCode(faultCode)
	}

	for _, r := range rets {
		vm.Stack.Push(r)
	}
	return CallOutcome{NextPc: vm.Stack.PopFrame()}, nil
}

func (vm *Interpreter) enterBytecodeFunction(function *FunctionInstance, backPc uint32, retsN uint32) (CallOutcome, *Error) {
	if vm.Stack.FrameDepth() > vm.Config.MaxCallStackDepth {
		vm.Stack.AbortFrame()
		return CallOutcome{}, NewTrapCode(StackOverflow)
	}

	for _, decl := range function.Bytecode.Locals {
		zero := DefaultValue(decl.Type)
		for i := uint32(0); i < decl.Count; i++ {
			vm.Stack.Push(zero)
		}
	}

	// This label's own continuation pc is never actually jumped to: this
	// core's dispatch loop (dispatch.go) recurses one Go call per Wasm call, so a
	// nested activation returning to its caller is just runFrame returning
	// to the enclosing runFrame/callFunction call, not a jump. It is kept
	// consistent with backPc anyway, purely so a debugger walking the label
	// stack sees a real address rather than a sentinel.
	vm.Stack.PushLabel(0, retsN, backPc, false, 0, blockTypeVoidTag)

	return CallOutcome{NextPc: 0, EnteredBytecode: true, Function: function}, nil
}
