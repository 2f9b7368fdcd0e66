package app

import (
	"errors"

	"github.com/vk/gridci/internal/trigger"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	WorkflowPath string // workflow .hcl files
	ModulesPath  string // module manifest .hcl files

	Event string // triggering event name ("push", "pull_request")
	Ref   string // git ref the event points at

	SecretsFile string // optional YAML file of secret values

	LogFormat   string
	LogLevel    string
	StatusPort  int
	WorkerCount int
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkflowPath == "" {
		return nil, errors.New("WorkflowPath is a required configuration field and cannot be empty")
	}
	if err := (trigger.Event{Name: cfg.Event, Ref: cfg.Ref}).Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
