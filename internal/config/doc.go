// Package config defines the format-agnostic model of a workflow and the
// interfaces a configuration front end must implement. The rest of the
// engine only ever sees this model, never raw HCL, so the definition
// language stays swappable.
package config
