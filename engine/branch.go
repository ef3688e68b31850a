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

// branchToLabel implements `br count`: it unwinds the label and value
// stacks to the target label named by count (0 = innermost enclosing
// label), and returns the pc execution resumes at.
//
// Branching past the outermost label of a function pops that function's
// own call-entry label along with everything nested inside it; the caller
// (runFrame, via doBranch) recognizes that case ahead of time and treats it
// as a return rather than a jump, since the popped label's continuation pc
// names an address in a different function's bytecode.
//
// Grounded on the teacher's vm.brToLabel/valueStack.unwind (epsilon/vm.go,
// epsilon/value_stack.go), generalized from a per-call-frame control stack
// to the StackManager's single label stack.
func branchToLabel(stack *StackManager, module *ModuleInstance, count uint32) uint32 {
	target := stack.GetLabelWithCount(count)

	if !target.HasLoopBody {
		return stack.PopLabel(count + 1)
	}

	// A branch into a loop re-enters its body rather than exiting it, and
	// feeds it the loop's *parameter* arity worth of values, not its result
	// arity — the two differ whenever a loop's block type isn't symmetric.
	// PopLabel always unwinds by ResultArity, so re-entry is handled here
	// directly rather than through it: preserve paramCount values, drop this
	// label and everything nested inside it, then push a fresh label with
	// the original continuation so a later natural fall-through to `end`
	// still uses the block's real result arity.
	paramCount, resultCount := getBlockArity(module, target.BlockType)
	stack.unwind(target.base, paramCount)
	stack.labels = stack.labels[:uint32(len(stack.labels))-count-1]
	stack.PushLabel(paramCount, resultCount, target.ContinuationPc, true, target.LoopBodyPc, target.BlockType)
	return target.LoopBodyPc
}
