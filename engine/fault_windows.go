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

//go:build windows

package engine

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// guardPagedBacking is the Windows equivalent of fault_unix.go's mmap-based
// guard page, using VirtualAlloc/VirtualProtect with PAGE_NOACCESS for the
// trailing guard page.
func guardPagedBacking(sizeBytes int) (data []byte, closer func() error, err error) {
	pageSize := 4096
	rounded := ((sizeBytes + pageSize - 1) / pageSize) * pageSize
	total := rounded + pageSize

	addr, err := windows.VirtualAlloc(0, uintptr(total), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, nil, err
	}

	var oldProtect uint32
	guardAddr := addr + uintptr(rounded)
	if err := windows.VirtualProtect(guardAddr, uintptr(pageSize), windows.PAGE_NOACCESS, &oldProtect); err != nil {
		_ = windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
		return nil, nil, err
	}

	region := unsafe.Slice((*byte)(unsafe.Pointer(addr)), rounded)
	return region[:sizeBytes:rounded], func() error {
		return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
	}, nil
}
