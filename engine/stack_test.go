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

func TestStackManagerStartsWithDummyFrame(t *testing.T) {
	s := NewStackManager()
	if !s.IsTopDummyFrame() {
		t.Error("a fresh StackManager's only frame must be the dummy frame")
	}
	if s.FrameDepth() != 1 {
		t.Errorf("FrameDepth() = %d, want 1", s.FrameDepth())
	}
}

func TestPushFramePartitionsArgsAsLocals(t *testing.T) {
	mi := &ModuleInstance{}
	s := NewStackManager()

	s.Push(I32Value(10))
	s.Push(I32Value(20))
	s.PushFrame(mi, 2, 1, false)

	if s.IsTopDummyFrame() {
		t.Fatal("frame just pushed must not be the dummy frame")
	}
	if got := s.getLocal(0); got.I32() != 10 {
		t.Errorf("local 0 = %d, want 10", got.I32())
	}
	if got := s.getLocal(1); got.I32() != 20 {
		t.Errorf("local 1 = %d, want 20", got.I32())
	}

	s.setLocal(0, I32Value(99))
	if got := s.getLocal(0); got.I32() != 99 {
		t.Errorf("local 0 after setLocal = %d, want 99", got.I32())
	}
}

func TestPopFrameKeepsOnlyResults(t *testing.T) {
	mi := &ModuleInstance{}
	s := NewStackManager()

	s.Push(I32Value(1))
	s.Push(I32Value(2))
	s.PushFrame(mi, 2, 1, false)
	s.PushLabel(0, 1, 42, false, 0, blockTypeVoidTag)
	s.Push(I32Value(3)) // the function's result, computed by its body

	contPc := s.PopFrame()
	if contPc != 42 {
		t.Errorf("PopFrame() continuation = %d, want 42", contPc)
	}
	if s.ValueDepth() != 1 {
		t.Fatalf("ValueDepth() after PopFrame = %d, want 1", s.ValueDepth())
	}
	if got := s.Pop().I32(); got != 3 {
		t.Errorf("surviving value = %d, want 3 (the result, not an arg)", got)
	}
	if s.FrameDepth() != 1 {
		t.Errorf("FrameDepth() after PopFrame = %d, want 1 (dummy only)", s.FrameDepth())
	}
}

func TestAbortFrameDiscardsEverything(t *testing.T) {
	mi := &ModuleInstance{}
	s := NewStackManager()

	s.Push(I32Value(1))
	s.PushFrame(mi, 1, 1, false)
	s.PushLabel(0, 1, 0, false, 0, blockTypeVoidTag)
	s.Push(I32Value(2))

	s.AbortFrame()
	if s.ValueDepth() != 0 {
		t.Errorf("ValueDepth() after AbortFrame = %d, want 0", s.ValueDepth())
	}
	if s.FrameDepth() != 1 {
		t.Errorf("FrameDepth() after AbortFrame = %d, want 1", s.FrameDepth())
	}
}

func TestPushFrameTailCallReplacesInPlace(t *testing.T) {
	mi := &ModuleInstance{}
	s := NewStackManager()

	s.Push(I32Value(1))
	s.PushFrame(mi, 1, 1, false)
	s.PushLabel(0, 1, 7, false, 0, blockTypeVoidTag)

	preDepth := s.FrameDepth()
	s.Push(I32Value(5)) // the tail call's argument
	s.PushFrame(mi, 1, 1, true)

	if s.FrameDepth() != preDepth {
		t.Errorf("FrameDepth() after tail call = %d, want unchanged at %d", s.FrameDepth(), preDepth)
	}
	if got := s.getLocal(0); got.I32() != 5 {
		t.Errorf("tail-called frame's local 0 = %d, want 5", got.I32())
	}
	if s.LabelDepth() != 0 {
		t.Errorf("LabelDepth() after tail call = %d, want 0 (caller's labels dropped)", s.LabelDepth())
	}
}

func TestPopLabelUnwindsToResultArity(t *testing.T) {
	s := NewStackManager()
	s.Push(I32Value(100))

	s.PushLabel(0, 1, 5, false, 0, blockTypeVoidTag)
	s.Push(I32Value(1))
	s.Push(I32Value(2))
	s.Push(I32Value(3)) // only the top value survives a 1-result label

	contPc := s.PopLabel(1)
	if contPc != 5 {
		t.Errorf("PopLabel(1) continuation = %d, want 5", contPc)
	}
	if s.ValueDepth() != 2 {
		t.Fatalf("ValueDepth() after PopLabel = %d, want 2", s.ValueDepth())
	}
	if got := s.Pop().I32(); got != 3 {
		t.Errorf("surviving value = %d, want 3", got)
	}
	if got := s.Pop().I32(); got != 100 {
		t.Errorf("value below the label = %d, want 100 (untouched)", got)
	}
}

func TestGetLabelWithCountIndexesFromInnermost(t *testing.T) {
	s := NewStackManager()
	s.PushLabel(0, 0, 1, false, 0, blockTypeVoidTag)
	s.PushLabel(0, 0, 2, false, 0, blockTypeVoidTag)
	s.PushLabel(0, 0, 3, false, 0, blockTypeVoidTag)

	if got := s.GetLabelWithCount(0).ContinuationPc; got != 3 {
		t.Errorf("count 0 (innermost) = %d, want 3", got)
	}
	if got := s.GetLabelWithCount(2).ContinuationPc; got != 1 {
		t.Errorf("count 2 (outermost) = %d, want 1", got)
	}
}

func TestIsOutermostLabel(t *testing.T) {
	mi := &ModuleInstance{}
	s := NewStackManager()
	s.PushFrame(mi, 0, 0, false)
	s.PushLabel(0, 0, 0, false, 0, blockTypeVoidTag) // the function's own label

	if !s.IsOutermostLabel() {
		t.Error("a frame's first label must be its outermost")
	}

	s.PushLabel(0, 0, 0, false, 0, blockTypeVoidTag) // a nested block
	if s.IsOutermostLabel() {
		t.Error("a nested block's label must not read as outermost")
	}
}

func TestIsFunctionExit(t *testing.T) {
	mi := &ModuleInstance{}
	s := NewStackManager()
	s.PushFrame(mi, 0, 0, false)
	s.PushLabel(0, 0, 0, false, 0, blockTypeVoidTag) // depth 0: function label
	s.PushLabel(0, 0, 0, false, 0, blockTypeVoidTag) // depth 1: nested block

	if s.IsFunctionExit(0) {
		t.Error("branch 0 targets the nested block, not the function exit")
	}
	if !s.IsFunctionExit(1) {
		t.Error("branch 1 targets the function's own label: must read as an exit")
	}
}
