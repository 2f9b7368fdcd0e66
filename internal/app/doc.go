// Package app wires the application together: configuration loading, module
// registration, trigger gating, matrix fan-out, and the per-combination
// execution of the workflow graph.
package app
