// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads DebtScope analyzer configuration.
//
// Configuration is resolved in three layers, later layers winning:
// built-in defaults, an optional YAML file, then DEBTSCOPE_* environment
// variables. A missing config file is not an error; a malformed one is.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied before the file and environment are consulted.
const (
	DefaultServerPort      = 8085
	DefaultMaxQueryDepth   = 50
	DefaultCacheSize       = 16
	DefaultWatcherDebounce = 2 * time.Second
	DefaultBadgerDir       = "~/.debtscope/snapshots"
)

// Build configures graph construction.
type Build struct {
	// Workers bounds extraction and resolution pools. 0 uses all cores.
	Workers int `yaml:"workers"`

	// SequentialResolution forces the single-threaded reference resolver.
	SequentialResolution bool `yaml:"sequential_resolution"`

	// MaxFunctions and MaxCalls cap graph capacity. 0 keeps the engine
	// defaults.
	MaxFunctions int `yaml:"max_functions"`
	MaxCalls     int `yaml:"max_calls"`
}

// Query configures the read-side endpoints.
type Query struct {
	// MaxDepth caps the depth parameter of transitive queries.
	MaxDepth int `yaml:"max_depth"`
}

// Server configures the HTTP surface.
type Server struct {
	Port int `yaml:"port"`
}

// Cache configures in-memory graph caching and invalidation.
type Cache struct {
	// Size is the LRU capacity in cached graphs.
	Size int `yaml:"size"`

	// WatcherDebounce coalesces bursts of file events into one
	// invalidation.
	WatcherDebounce time.Duration `yaml:"watcher_debounce"`

	// Watch enables filesystem invalidation of cached graphs.
	Watch bool `yaml:"watch"`
}

// Storage configures snapshot persistence.
type Storage struct {
	// BadgerDir is the snapshot database directory. Supports ~ expansion
	// at open time.
	BadgerDir string `yaml:"badger_dir"`

	// SnapshotTTL expires persisted snapshots. 0 keeps them forever.
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

// Config is the root analyzer configuration.
type Config struct {
	Build   Build   `yaml:"build"`
	Query   Query   `yaml:"query"`
	Server  Server  `yaml:"server"`
	Cache   Cache   `yaml:"cache"`
	Storage Storage `yaml:"storage"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Query:  Query{MaxDepth: DefaultMaxQueryDepth},
		Server: Server{Port: DefaultServerPort},
		Cache: Cache{
			Size:            DefaultCacheSize,
			WatcherDebounce: DefaultWatcherDebounce,
			Watch:           true,
		},
		Storage: Storage{BadgerDir: DefaultBadgerDir},
	}
}

// Load resolves configuration from defaults, the YAML file at path (may
// be empty or missing), and DEBTSCOPE_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults stand.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port %d out of range", c.Server.Port)
	}
	if c.Query.MaxDepth <= 0 {
		return fmt.Errorf("config: query max_depth must be positive, got %d", c.Query.MaxDepth)
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("config: cache size must be positive, got %d", c.Cache.Size)
	}
	if c.Build.Workers < 0 {
		return fmt.Errorf("config: build workers must be >= 0, got %d", c.Build.Workers)
	}
	return nil
}

// applyEnv overlays DEBTSCOPE_* variables. Unparseable values are
// ignored so a bad override cannot take the service down.
func applyEnv(cfg *Config) {
	if v, ok := envInt("DEBTSCOPE_WORKERS"); ok {
		cfg.Build.Workers = v
	}
	if v := os.Getenv("DEBTSCOPE_SEQUENTIAL_RESOLUTION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Build.SequentialResolution = b
		}
	}
	if v, ok := envInt("DEBTSCOPE_PORT"); ok {
		cfg.Server.Port = v
	}
	if v, ok := envInt("DEBTSCOPE_QUERY_MAX_DEPTH"); ok {
		cfg.Query.MaxDepth = v
	}
	if v, ok := envInt("DEBTSCOPE_CACHE_SIZE"); ok {
		cfg.Cache.Size = v
	}
	if v := os.Getenv("DEBTSCOPE_BADGER_DIR"); v != "" {
		cfg.Storage.BadgerDir = v
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
