// Package dag builds and executes the dependency graph of a single workflow
// run: one node per step or resource, edges from explicit depends_on entries
// and implicit expression references, and a worker-pool executor that honors
// the strict/advisory failure policy of each step.
package dag
