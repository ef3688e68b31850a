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

//go:build !windows

package engine

import (
	"golang.org/x/sys/unix"
)

// guardPagedBacking mmaps sizeBytes of read-write memory followed by one
// PROT_NONE guard page. A compiled/AOT backend that computes an
// out-of-bounds address from this base and dereferences it raises a real
// SIGSEGV; combined with runGuarded's debug.SetPanicOnFault, that fault is
// what the Fault guard actually catches, rather than a Go slice-bounds
// panic — the same class of failure the original implementation's
// hardware-trap-based bounds checking exploits.
//
// It returns the read-write slice (excluding the guard page) and a closer
// that unmaps the whole region.
func guardPagedBacking(sizeBytes int) (data []byte, closer func() error, err error) {
	pageSize := unix.Getpagesize()
	rounded := ((sizeBytes + pageSize - 1) / pageSize) * pageSize
	total := rounded + pageSize

	region, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}

	guardPage := region[rounded:]
	if err := unix.Mprotect(guardPage, unix.PROT_NONE); err != nil {
		_ = unix.Munmap(region)
		return nil, nil, err
	}

	return region[:sizeBytes:rounded], func() error { return unix.Munmap(region) }, nil
}
