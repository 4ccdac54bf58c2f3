// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads specgraph.yaml.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete configuration.
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Watch     WatchConfig     `yaml:"watch"`
	Log       LogConfig       `yaml:"log"`
}

// WorkspaceConfig locates the files the workspace is built from.
type WorkspaceConfig struct {
	// Root is the workspace directory. Relative roots are resolved
	// against the directory of the config file that set them.
	Root string `yaml:"root"`

	// ASTPatterns are doublestar globs, relative to Root, matching the
	// JSON syntax trees emitted by the DSL parser.
	ASTPatterns []string `yaml:"ast_patterns"`

	// TicketPatterns are doublestar globs, relative to Root, matching
	// ticket files.
	TicketPatterns []string `yaml:"ticket_patterns"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	// Debounce is how long a file must be quiet before it is reloaded.
	Debounce time.Duration `yaml:"debounce"`

	// Ignore are doublestar globs, relative to Root, never watched.
	Ignore []string `yaml:"ignore"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with defaults.
func DefaultConfig() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Root:           ".",
			ASTPatterns:    []string{"**/*.req.json"},
			TicketPatterns: []string{"**/*.tickets.json"},
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
			Ignore:   []string{".git/**", "node_modules/**"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Workspace.Root == "" {
		return fmt.Errorf("%w: workspace.root is required", ErrInvalidConfig)
	}
	if len(c.Workspace.ASTPatterns) == 0 {
		return fmt.Errorf("%w: workspace.ast_patterns must not be empty", ErrInvalidConfig)
	}
	if len(c.Workspace.TicketPatterns) == 0 {
		return fmt.Errorf("%w: workspace.ticket_patterns must not be empty", ErrInvalidConfig)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("%w: watch.debounce must not be negative", ErrInvalidConfig)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return config, nil
}

// Merge merges another config into this one; non-zero values in other win.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Workspace.Root != "" {
		c.Workspace.Root = other.Workspace.Root
	}
	if len(other.Workspace.ASTPatterns) > 0 {
		c.Workspace.ASTPatterns = other.Workspace.ASTPatterns
	}
	if len(other.Workspace.TicketPatterns) > 0 {
		c.Workspace.TicketPatterns = other.Workspace.TicketPatterns
	}

	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if len(other.Watch.Ignore) > 0 {
		c.Watch.Ignore = other.Watch.Ignore
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
}

// NewLogger builds a logger writing to w with the configured level and format.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q: %v", ErrInvalidConfig, s, err)
	}
	return level, nil
}
