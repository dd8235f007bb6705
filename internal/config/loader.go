package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Initialize loads configuration from configDir (if present) merged
// over compiled defaults, validates it, and returns the runtime
// Config. Mirrors tarsy's pkg/config/loader.go Initialize(ctx,
// configDir) entrypoint: load -> validate -> return.
func Initialize(configDir string) (*Config, error) {
	cfg, err := load(configDir)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func load(configDir string) (*Config, error) {
	var user OracleYAMLConfig

	if configDir != "" {
		path := filepath.Join(configDir, "models.yaml")
		if data, err := os.ReadFile(path); err == nil {
			data = ExpandEnv(data)
			if err := yaml.Unmarshal(data, &user); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	modelTable := mergeModelTable(builtinModelTable(), user.Models)

	capabilities, err := mergeCapabilities(builtinCapabilities(), user.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("merging capability table: %w", err)
	}

	retention, err := mergeRetention(builtinRetention(), user.Retention)
	if err != nil {
		return nil, fmt.Errorf("merging retention config: %w", err)
	}

	queue, err := mergeQueue(builtinQueue(), user.Queue)
	if err != nil {
		return nil, fmt.Errorf("merging queue config: %w", err)
	}

	photo, err := mergePhoto(builtinPhoto(), user.Photo)
	if err != nil {
		return nil, fmt.Errorf("merging photo config: %w", err)
	}

	return &Config{
		configDir:    configDir,
		Models:       NewModelRegistry(modelTable),
		Capabilities: capabilities,
		Retention:    retention,
		Queue:        queue,
		Photo:        photo,
	}, nil
}

// Reload re-reads the on-disk YAML config and atomically swaps the
// ModelRegistry's table in place. Other config sections are not
// runtime-reloadable; only the ModelSelector table is specified to
// need a reload capability (spec §4.5).
func (c *Config) Reload() error {
	fresh, err := load(c.configDir)
	if err != nil {
		return err
	}
	c.Models.Reload(fresh.Models.snapshot())
	return nil
}
