package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const fileHeader = "# azaudit configuration. Check it with `azaudit validate`.\n"

// Save marshals the AuditConfig to YAML and writes it to path. Unless force
// is set an existing file is left untouched.
func Save(cfg *AuditConfig, path string, force bool) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	data = append([]byte(fileHeader), data...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
