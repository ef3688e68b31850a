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
	"errors"
	"unsafe"
)

const (
	pageSize = 65536
	maxPages = uint32(1 << 15)
)

// ErrMemoryOutOfBounds is returned by Memory operations that read or write
// past the current memory size.
var ErrMemoryOutOfBounds = errors.New("out of bounds memory access")

// Memory is a WebAssembly linear memory instance.
type Memory struct {
	Limits Limits
	data   []byte
}

func NewMemory(memType MemoryType) *Memory {
	return &Memory{
		Limits: memType.Limits,
		data:   make([]byte, memType.Limits.Min*pageSize),
	}
}

func (m *Memory) Grow(pages int32) int32 {
	currentSize := m.Size()
	max := maxPages
	if m.Limits.Max != nil {
		max = uint32(*m.Limits.Max)
	}
	if uint32(pages)+uint32(currentSize) > max {
		return -1
	}
	m.data = append(m.data, make([]byte, pages*pageSize)...)
	return currentSize
}

func (m *Memory) Size() int32 {
	return int32(len(m.data) / pageSize)
}

func (m *Memory) bytesSize() uint64 {
	return uint64(len(m.data))
}

// Base returns a pointer to the first byte of the memory's backing storage,
// for the compiled/AOT fast path (§4.3), which dereferences it directly
// rather than calling through Get/Set. Returns nil for a zero-length
// memory.
func (m *Memory) Base() unsafe.Pointer {
	if len(m.data) == 0 {
		return nil
	}
	return unsafe.Pointer(&m.data[0])
}

func (m *Memory) Set(offset, index uint32, values []byte) error {
	startIndex := uint64(index) + uint64(offset)
	if startIndex+uint64(len(values)) > m.bytesSize() {
		return ErrMemoryOutOfBounds
	}
	copy(m.data[startIndex:], values)
	return nil
}

func (m *Memory) Get(offset, index, length uint32) ([]byte, error) {
	startIndex := uint64(index) + uint64(offset)
	endIndex := startIndex + uint64(length)
	if endIndex > m.bytesSize() {
		return nil, ErrMemoryOutOfBounds
	}
	return m.data[startIndex:endIndex], nil
}

func (m *Memory) Init(n, srcOffset, destOffset uint32, content []byte) error {
	if uint64(srcOffset)+uint64(n) > uint64(len(content)) ||
		uint64(destOffset)+uint64(n) > m.bytesSize() {
		return ErrMemoryOutOfBounds
	}
	copy(m.data[destOffset:destOffset+n], content[srcOffset:srcOffset+n])
	return nil
}

func (m *Memory) Copy(destMemory *Memory, n, srcOffset, destOffset uint32) error {
	if uint64(srcOffset)+uint64(n) > m.bytesSize() ||
		uint64(destOffset)+uint64(n) > destMemory.bytesSize() {
		return ErrMemoryOutOfBounds
	}
	copy(destMemory.data[destOffset:destOffset+n], m.data[srcOffset:srcOffset+n])
	return nil
}

func (m *Memory) Fill(n, offset uint32, val byte) error {
	if uint64(offset)+uint64(n) > m.bytesSize() {
		return ErrMemoryOutOfBounds
	}
	for i := uint32(0); i < n; i++ {
		m.data[offset+i] = val
	}
	return nil
}
