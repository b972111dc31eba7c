package app

import (
	"errors"

	"github.com/vk/fragmesh/internal/objstore"
)

// Config holds all the necessary configuration for an App instance to run.
// ConfigPath, ObjectID and Rank come from the command line; the rest are
// optional overrides for fields the worker config file also carries.
type Config struct {
	ConfigPath string
	ObjectID   objstore.ObjectID
	Rank       int

	PlanPath  string
	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	if cfg.ObjectID == objstore.NilObject {
		return nil, errors.New("ObjectID is a required configuration field and cannot be the nil object")
	}
	if cfg.Rank < 0 {
		return nil, errors.New("Rank cannot be negative")
	}

	return &cfg, nil
}
