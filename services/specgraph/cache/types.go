// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache memoizes data derived from the workspace index and the
// ticket set.
//
// ComputedCache holds at most one dependency graph and one
// requirement-ticket map, each valid for the index and ticket versions
// it was computed against. The cache never checks content for
// staleness: every index or ticket mutation must be followed by the
// matching invalidation before the next query.
package cache

import (
	"log/slog"

	"github.com/AleutianAI/specgraph/services/specgraph/graph"
	"github.com/AleutianAI/specgraph/services/specgraph/symtab"
)

// Index is the read-only index view the cache computes from.
//
// *index.WorkspaceIndex implements Index.
type Index interface {
	graph.Resolver

	// GetCanonicalSymbolsByKind returns the first-registered symbol of
	// every path declared with a kind.
	GetCanonicalSymbolsByKind(kind symtab.Kind) []*symtab.Symbol
}

// Scope names what an invalidation dropped.
type Scope string

const (
	ScopeNone            Scope = "none"
	ScopeTicketMap       Scope = "ticket_map"
	ScopeDependencyGraph Scope = "dependency_graph"
	ScopeAll             Scope = "all"
)

// Stats contains cache statistics.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`

	// GraphBuilds and TicketMapBuilds count recomputations.
	GraphBuilds     int64 `json:"graph_builds"`
	TicketMapBuilds int64 `json:"ticket_map_builds"`

	IndexVersion   uint64 `json:"index_version"`
	TicketsVersion uint64 `json:"tickets_version"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// CacheOptions configures a ComputedCache.
type CacheOptions struct {
	// Logger receives debug events for invalidations and recomputations.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultCacheOptions returns the default options.
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{Logger: slog.Default()}
}

// CacheOption is a functional option for configuring ComputedCache.
type CacheOption func(*CacheOptions)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(o *CacheOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}
