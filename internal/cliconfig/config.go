// Package cliconfig loads tsvctl's YAML configuration file.
package cliconfig

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is tsvctl's on-disk configuration, read from the file named by
// a subcommand's --config flag.
type Config struct {
	Volume      VolumeConfig `yaml:"volume"`
	AuditDBPath string       `yaml:"audit_db_path"`
}

// VolumeConfig names the backing file, key file, and default geometry
// tsvctl operates on when a subcommand doesn't override them on the
// command line.
type VolumeConfig struct {
	Path        string `yaml:"path"`
	KeyFilePath string `yaml:"key_file_path"`
	SectorSize  uint32 `yaml:"sector_size"`
	SectorCount uint32 `yaml:"sector_count"`
}

// Load reads and decodes the YAML configuration file at path.
// Unrecognized fields are rejected, so a typo in the file surfaces
// immediately instead of silently taking a default.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
