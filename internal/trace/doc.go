// Package trace records the hierarchical execution of tasks.
//
// A Task is one invocation of a workflow method: who produced it, with
// which arguments, the tick it started and finished at, and the ordered
// subtasks it invoked. Trees are append-only; a task with no finish tick
// is open, either still running or truncated because its clock ran out.
//
// Idle work is classified by producer (Producer.Idling), never by method
// name, so LastNonIdlingTick can distinguish finished substantive work
// from sitting idle.
//
// Rendering:
//   - Task.String: method(args)[start->finish], ? for unset ticks
//   - FormatTrees: ASCII trees for diagnostics
//   - MarshalCanonical / Digest: deterministic JSON for export and replay checks
package trace
