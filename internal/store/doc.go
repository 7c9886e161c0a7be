// Package store provides SQLite-backed export of finished simulation runs.
//
// The store is a sink: a run is written once, after its performance has
// ended, and can be listed and read back for inspection. Nothing in a
// store can resume a simulation.
//
// # Layout
//
//   - runs: one row per run, with its scenario name, final tick and trace
//     digest
//   - tasks: every task tree of the run, flattened in pre-order with a
//     parent index
//
// # Determinism
//
//   - Run ids come from a RunIDGenerator (UUIDv7 in production)
//   - Task args are stored as canonical JSON
//   - All queries order by seq or idx, never by wall time
//   - A run read back has the same trace digest as the run written
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
