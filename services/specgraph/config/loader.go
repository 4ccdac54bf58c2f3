// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"log/slog"
	"os"
	"path/filepath"
)

// FileName is the name of the workspace config file.
const FileName = "specgraph.yaml"

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
//  1. Defaults
//  2. The explicit file at path, which must exist; or, when path is
//     empty, specgraph.yaml found in dir or its nearest ancestor
//
// A relative workspace.root is resolved against the directory of the
// file that set it, or against dir when no file did. CLI flags are
// applied by the caller on top of the result.
func (l *Loader) Load(path, dir string) (*Config, error) {
	config := DefaultConfig()
	base := dir

	if path == "" {
		path = l.findProjectConfig(dir)
	} else if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("loaded config", slog.String("path", path))
		config.Merge(fileConfig)
		base = filepath.Dir(path)
	} else {
		l.logger.Debug("no config file found, using defaults", slog.String("dir", dir))
	}

	if !filepath.IsAbs(config.Workspace.Root) {
		config.Workspace.Root = filepath.Join(base, config.Workspace.Root)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// findProjectConfig searches for specgraph.yaml in dir and its parents.
func (l *Loader) findProjectConfig(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(abs, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			break
		}
		abs = parent
	}
	return ""
}
