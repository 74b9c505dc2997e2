// Package config loads the demo CLI's YAML configuration file with
// gopkg.in/yaml.v2 — generalized from an untyped
// map[interface{}]interface{} lookup table to a typed struct, since
// the demo's shape is fixed and known ahead of time.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the demo CLI's on-disk configuration.
type Config struct {
	Server   string   `yaml:"server"`
	Username string   `yaml:"username"`
	Cookie   string   `yaml:"cookie_file"`
	Args     []string `yaml:"args"`
}

// LoadCookie reads the authentication cookie bytes from the file named
// by Cookie. An empty Cookie field means "no cookie," returning nil.
func (c *Config) LoadCookie() ([]byte, error) {
	if c.Cookie == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.Cookie)
	if err != nil {
		return nil, fmt.Errorf("config: read cookie %s: %w", c.Cookie, err)
	}
	return data, nil
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}
