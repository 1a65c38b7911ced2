package app

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	TemplatesPath string // hcl manifests, file or directory
	BundlePath    string // precompiled templates to load
	BundleOut     string // where to write every template compiled

	Template string // template to render
	DataPath string // .json or .hcl render data
	List     bool

	BaseURL      string // fetch missing resources from here; overrides manifests
	FetchTimeout time.Duration
	Concurrency  int
	ServePort   int

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.TemplatesPath == "" && cfg.BundlePath == "" && cfg.BaseURL == "" {
		return nil, errors.New("one of TemplatesPath, BundlePath or BaseURL must be set")
	}
	if cfg.Template == "" && !cfg.List && cfg.BundleOut == "" && cfg.ServePort == 0 {
		return nil, errors.New("nothing to do: set Template, List, BundleOut or ServePort")
	}
	if cfg.DataPath != "" && cfg.Template == "" {
		return nil, errors.New("DataPath requires Template")
	}
	if cfg.ServePort < 0 || cfg.ServePort > 65535 {
		return nil, fmt.Errorf("ServePort %d is out of range", cfg.ServePort)
	}
	if cfg.FetchTimeout < 0 {
		return nil, fmt.Errorf("FetchTimeout must not be negative, got %s", cfg.FetchTimeout)
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("Concurrency must not be negative, got %d", cfg.Concurrency)
	}
	return &cfg, nil
}
