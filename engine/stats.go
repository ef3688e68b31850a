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

import "sync/atomic"

// Statistics is the optional cost-metering and timing sink call entry
// consults around every host call (§5, §6). AddCost reports whether the
// new total is still within the configured ceiling; StopRecordWasm/
// StartRecordHost and their inverse are always called in symmetric pairs,
// even on the host call's error path, mirroring the RAII-style timer the
// original implementation pairs around a host call (§12).
type Statistics interface {
	// AddCost charges n units of cost and reports whether the running
	// total is still within the ceiling.
	AddCost(n uint64) bool
	// StopRecordWasm pauses the Wasm-side timer.
	StopRecordWasm()
	// StartRecordHost starts the host-side timer.
	StartRecordHost()
	// StopRecordHost pauses the host-side timer.
	StopRecordHost()
	// StartRecordWasm resumes the Wasm-side timer.
	StartRecordWasm()
}

// InProcessStatistics is the default Statistics implementation: an
// in-memory cost counter with no timing side effects beyond bookkeeping,
// suitable for cost-limit enforcement without an external sink.
type InProcessStatistics struct {
	limit     uint64
	total     atomic.Uint64
	hostTicks atomic.Int64
}

// NewInProcessStatistics returns a Statistics sink that fails AddCost once
// the running total would exceed limit. A limit of zero means unlimited.
func NewInProcessStatistics(limit uint64) *InProcessStatistics {
	return &InProcessStatistics{limit: limit}
}

func (s *InProcessStatistics) AddCost(n uint64) bool {
	newTotal := s.total.Add(n)
	if s.limit == 0 {
		return true
	}
	return newTotal <= s.limit
}

func (s *InProcessStatistics) TotalCost() uint64 { return s.total.Load() }

func (s *InProcessStatistics) StopRecordWasm()  { s.hostTicks.Add(1) }
func (s *InProcessStatistics) StartRecordHost() { s.hostTicks.Add(1) }
func (s *InProcessStatistics) StopRecordHost()  { s.hostTicks.Add(-1) }
func (s *InProcessStatistics) StartRecordWasm() { s.hostTicks.Add(-1) }

// HostTimerActive reports whether the sink currently believes a host call
// is in progress — used by tests to check that a host call whose cost
// exceeded the ceiling never actually started the host timer (§8 scenario
// 5).
func (s *InProcessStatistics) HostTimerActive() bool { return s.hostTicks.Load() > 0 }
