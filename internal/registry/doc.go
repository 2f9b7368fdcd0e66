// Package registry holds the compiled-in Go handlers for runner and asset
// types, alongside the HCL manifest definitions that describe them. It
// validates that both sides of the contract agree before anything runs.
package registry
