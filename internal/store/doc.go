// Package store provides the SQLite-backed tick ledger.
//
// The ledger is append-only and holds:
//   - Runs: program name and hash, the canonical tuning table, versions and
//     the canonical start state
//   - Ticks: the canonical state and its digest after every tick
//   - Grants: every resolved request, in resolution order
//   - Signal writes: every Step.Emit call, in evaluation order
//
// # Critical Patterns
//
// Logical time: all ordering uses tick and seq, never timestamps, so a
// ledger reads back identically however fast it was written.
//
// Deterministic query results: every read goes through package query,
// which always appends the table's stable ORDER BY.
//
// Atomic ticks: WriteTick stores a tick's state, grants and signal writes
// in one transaction. A crashed run never leaves half a tick behind.
//
// Replay: a run records everything needed to recompute it. Replay rebuilds
// the program from the recorded tuning, checks its hash, re-advances from
// the start state and compares every tick digest.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
