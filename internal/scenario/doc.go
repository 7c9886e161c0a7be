// Package scenario turns declarative definitions into simulation runs.
//
// Workflows are defined in CUE and compiled into a Library of scripted
// workflows. Each method has a cost and a list of steps: calls to its own
// or nested workflows' methods, idles, and failures. Nesting and call
// cycles are rejected at compile time.
//
// A scenario, written in YAML, declares clocks, the bridges or stopwatches
// linking them, the actors with their allocated tasks, how the run is
// driven, and assertions on the outcome. Run executes it and returns a
// Result that can be rendered, checked against golden files, or exported
// to the store.
//
// Definition problems are reported as *LoadError with a stable code
// (E001-E012); failed expectations as *AssertionError.
package scenario
