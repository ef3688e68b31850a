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
	"math"

	"github.com/pkg/errors"
)

const (
	continuationBit = 0x80
	payloadMask     = 0x7F
	signBit         = 0x40
)

var (
	ErrIntRepresentationTooLong = errors.New("integer representation too long")
	ErrIntegerTooLarge          = errors.New("integer too large")
	ErrUnexpectedEOF            = errors.New("unexpected end of section")
)

// byteCursor is a forward-only reader over a section's raw bytes, shared by
// the module parser and the per-function bytecode decoder. Grounded on the
// teacher's leb128.go, adapted from a readByte-closure API to a plain
// cursor since here both parser and decoder read directly from an
// in-memory byte slice.
type byteCursor struct {
	data []byte
	pc   uint32
}

func (c *byteCursor) hasMore() bool { return c.pc < uint32(len(c.data)) }

func (c *byteCursor) readByte() (byte, error) {
	if c.pc >= uint32(len(c.data)) {
		return 0, ErrUnexpectedEOF
	}
	b := c.data[c.pc]
	c.pc++
	return b, nil
}

func (c *byteCursor) readBytes(n uint32) ([]byte, error) {
	if c.pc+n > uint32(len(c.data)) {
		return nil, ErrUnexpectedEOF
	}
	b := c.data[c.pc : c.pc+n]
	c.pc += n
	return b, nil
}

func (c *byteCursor) readUleb32() (uint32, error) {
	v, _, err := readUleb128(c.readByte, 5)
	return uint32(v), err
}

func (c *byteCursor) readUleb64() (uint64, error) {
	v, _, err := readUleb128(c.readByte, 10)
	return v, err
}

func (c *byteCursor) readSleb32() (int32, error) {
	v, err := readSleb128(c.readByte, 5)
	return int32(v), err
}

func (c *byteCursor) readSleb64() (int64, error) {
	v, err := readSleb128(c.readByte, 10)
	return int64(v), err
}

func (c *byteCursor) readF32() (float32, error) {
	b, err := c.readBytes(4)
	if err != nil {
		return 0, err
	}
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits), nil
}

func (c *byteCursor) readF64() (float64, error) {
	b, err := c.readBytes(8)
	if err != nil {
		return 0, err
	}
	var bits uint64
	for i := 0; i < 8; i++ {
		bits |= uint64(b[i]) << (8 * i)
	}
	return math.Float64frombits(bits), nil
}

func readUleb128(readByte func() (byte, error), maxBytes int) (uint64, int, error) {
	var result uint64
	var shift uint
	bytesRead := 0

	for {
		b, err := readByte()
		if err != nil {
			return 0, bytesRead, err
		}
		bytesRead++
		if bytesRead > maxBytes {
			return 0, bytesRead, ErrIntRepresentationTooLong
		}

		result |= uint64(b&payloadMask) << shift
		if (b & continuationBit) == 0 {
			return result, bytesRead, nil
		}
		shift += 7
	}
}

func readSleb128(readByte func() (byte, error), maxBytes int) (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	bytesRead := 0

	for {
		b, err = readByte()
		if err != nil {
			return 0, err
		}
		bytesRead++
		if bytesRead > maxBytes {
			return 0, ErrIntegerTooLarge
		}

		result |= int64(b&payloadMask) << shift
		shift += 7
		if (b & continuationBit) == 0 {
			break
		}
	}

	if shift < 64 && (b&signBit) != 0 {
		result |= -1 << shift
	}
	return result, nil
}
