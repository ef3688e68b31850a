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

// Package pgstats is an optional engine.Statistics sink that appends every
// host-call boundary crossing to a Postgres table, for an embedder that
// wants a durable, queryable record of what a run cost rather than just an
// in-process counter.
//
// Grounded on justinclift-life/exec/vm.go's PgRunNum/pg *pgx.ConnPool
// op-logging fields, ported from that repo's pgx v3-era pool API to
// jackc/pgx/v5's pgxpool and modernized from raw per-opcode logging to
// per-host-call timing events, matching this engine's coarser metering
// granularity (§5, §6). Each row records a host call's start time and
// duration; the running cost total is kept in memory (TotalCost), and only
// the run's cost ceiling is stored in Postgres.
package pgstats

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sink records cost and host-call timing events for one run to Postgres.
// It implements engine.Statistics structurally (AddCost, StartRecordHost,
// StopRecordHost, StartRecordWasm, StopRecordWasm) without importing the
// engine package, so a pure-bytecode embedder with no database configured
// never pulls pgx into its build.
type Sink struct {
	pool      *pgxpool.Pool
	runID     int64
	limit     uint64
	total     uint64
	hostStart time.Time
}

// Open connects to Postgres using connString and creates the run this Sink
// will log against, returning the Sink and a closer to release the pool.
func Open(ctx context.Context, connString string, costLimit uint64) (*Sink, func(), error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, nil, err
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS wasmcore_runs (
			id BIGSERIAL PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			cost_limit BIGINT NOT NULL
		)`); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS wasmcore_host_calls (
			run_id BIGINT NOT NULL REFERENCES wasmcore_runs(id),
			started_at TIMESTAMPTZ NOT NULL,
			duration_us BIGINT NOT NULL
		)`); err != nil {
		pool.Close()
		return nil, nil, err
	}

	var runID int64
	if err := pool.QueryRow(ctx, `INSERT INTO wasmcore_runs (cost_limit) VALUES ($1) RETURNING id`, costLimit).Scan(&runID); err != nil {
		pool.Close()
		return nil, nil, err
	}

	sink := &Sink{pool: pool, runID: runID, limit: costLimit}
	return sink, pool.Close, nil
}

// AddCost charges n units of cost and reports whether the running total is
// still within the configured ceiling. A limit of zero means unlimited.
func (s *Sink) AddCost(n uint64) bool {
	s.total += n
	if s.limit == 0 {
		return true
	}
	return s.total <= s.limit
}

// TotalCost returns the cost charged so far this run.
func (s *Sink) TotalCost() uint64 { return s.total }

func (s *Sink) StopRecordWasm() {}

// StartRecordHost marks the beginning of a host call for later logging by
// StopRecordHost.
func (s *Sink) StartRecordHost() { s.hostStart = timeNow() }

// StopRecordHost inserts a row recording the host call StartRecordHost most
// recently opened. Errors are swallowed rather than surfaced: a logging
// sink failing to log must never fail the Wasm call it is observing.
func (s *Sink) StopRecordHost() {
	if s.hostStart.IsZero() {
		return
	}
	duration := timeNow().Sub(s.hostStart)
	s.pool.Exec(context.Background(),
		`INSERT INTO wasmcore_host_calls (run_id, started_at, duration_us) VALUES ($1, $2, $3)`,
		s.runID, s.hostStart, duration.Microseconds())
	s.hostStart = time.Time{}
}

func (s *Sink) StartRecordWasm() {}

// timeNow exists so tests can be written against a Sink without depending
// on wall-clock time being asserted directly; production callers get
// time.Now.
var timeNow = time.Now
