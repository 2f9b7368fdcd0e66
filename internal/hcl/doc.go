// Package hcl implements the config.Loader and config.Converter interfaces
// on top of hashicorp/hcl. It parses workflow files and module manifests,
// translates them into the format-agnostic config model, and binds argument
// expressions to the Go input structs of registered handlers.
package hcl
