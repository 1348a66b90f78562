// Copyright 2025 The dofs Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads per-instance configuration.
package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the instance configuration read from a yaml file.
type Config struct {
	Listen     string `yaml:"listen"`      // default: "127.0.0.1:8412"
	Logging    string `yaml:"logging"`     // none, error, warn, info, debug, trace
	DataDir    string `yaml:"data_dir"`    // serve instances by ID from this directory
	ChunkSize  int64  `yaml:"chunk_size"`  // bytes; pinned at first init
	DeviceSize int64  `yaml:"device_size"` // bytes; default 1 GiB
	Umask      uint32 `yaml:"umask"`       // applied to create/mkdir modes
}

// ApplyDefaults fills zero-value fields with their defaults. Chunk and
// device sizes stay zero here; the store substitutes its own defaults
// so that reopening an instance never fights the pinned values.
func (cfg *Config) ApplyDefaults() {
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:8412"
	}
	if cfg.Logging == "" {
		cfg.Logging = "info"
	}
}

// LogLevel returns the normalized (lowercase) logging level.
func (cfg *Config) LogLevel() string {
	return strings.ToLower(cfg.Logging)
}

// Load reads the config from path. A missing file yields a default
// config rather than an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}
