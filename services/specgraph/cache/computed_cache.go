// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/specgraph/services/specgraph/correlate"
	"github.com/AleutianAI/specgraph/services/specgraph/graph"
	"github.com/AleutianAI/specgraph/services/specgraph/index"
	"github.com/AleutianAI/specgraph/services/specgraph/symtab"
	"github.com/AleutianAI/specgraph/services/specgraph/tickets"
)

// ComputedCache memoizes the dependency graph and the requirement-ticket map.
//
// Each entry is computed lazily on first access after an invalidation.
// Concurrent misses for the same versions share one computation. A
// result is stored only if no invalidation happened while it was being
// computed; otherwise it is returned to its callers but not cached.
//
// Thread Safety:
//
//	ComputedCache is safe for concurrent use. Hosts must serialize index
//	and ticket mutations together with their invalidation calls.
type ComputedCache struct {
	index   Index
	tickets tickets.Source
	logger  *slog.Logger

	mu             sync.Mutex
	graph          *graph.DependencyGraph
	ticketMap      *correlate.Result
	indexVersion   uint64
	ticketsVersion uint64

	flight singleflight.Group

	hits            int64
	misses          int64
	graphBuilds     int64
	ticketMapBuilds int64
}

// NewComputedCache creates an empty cache over an index and a ticket source.
//
// Example:
//
//	idx := index.NewWorkspaceIndex()
//	store := tickets.NewStore()
//	c := cache.NewComputedCache(idx, store)
//	g, err := c.DependencyGraph(ctx)
func NewComputedCache(idx Index, ts tickets.Source, opts ...CacheOption) *ComputedCache {
	options := DefaultCacheOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &ComputedCache{
		index:   idx,
		tickets: ts,
		logger:  options.Logger,
	}
}

// DependencyGraph returns the cached graph, building it on a miss.
//
// Outputs:
//
//	*graph.DependencyGraph - Immutable; treat as read-only.
//	error - Non-nil only when the build fails (for example ctx cancelled).
func (c *ComputedCache) DependencyGraph(ctx context.Context) (*graph.DependencyGraph, error) {
	c.mu.Lock()
	if g := c.graph; g != nil {
		c.mu.Unlock()
		c.recordHit(entryDependencyGraph)
		return g, nil
	}
	version := c.indexVersion
	ticketsVersion := c.ticketsVersion
	c.mu.Unlock()
	c.recordMiss(entryDependencyGraph)

	key := fmt.Sprintf("%s:%d", entryDependencyGraph, version)
	result, err, _ := c.flight.Do(key, func() (interface{}, error) {
		ctx, span := startComputeSpan(ctx, entryDependencyGraph, version, ticketsVersion)
		defer span.End()

		start := time.Now()
		g, err := graph.Build(ctx, c.index, graph.WithLogger(c.logger))
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		cacheComputeDuration.WithLabelValues(entryDependencyGraph).Observe(time.Since(start).Seconds())
		atomic.AddInt64(&c.graphBuilds, 1)

		c.mu.Lock()
		if c.indexVersion == version && c.graph == nil {
			c.graph = g
		}
		c.mu.Unlock()
		return g, nil
	})
	if err != nil {
		return nil, fmt.Errorf("building dependency graph: %w", err)
	}
	return result.(*graph.DependencyGraph), nil
}

// TicketMap returns the cached requirement-ticket correlation, computing
// it on a miss from the index's requirement symbols and the current
// tickets.
func (c *ComputedCache) TicketMap(ctx context.Context) (*correlate.Result, error) {
	c.mu.Lock()
	if m := c.ticketMap; m != nil {
		c.mu.Unlock()
		c.recordHit(entryTicketMap)
		return m, nil
	}
	indexVersion := c.indexVersion
	ticketsVersion := c.ticketsVersion
	c.mu.Unlock()
	c.recordMiss(entryTicketMap)

	key := fmt.Sprintf("%s:%d:%d", entryTicketMap, indexVersion, ticketsVersion)
	result, err, _ := c.flight.Do(key, func() (interface{}, error) {
		ctx, span := startComputeSpan(ctx, entryTicketMap, indexVersion, ticketsVersion)
		defer span.End()

		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return nil, err
		}

		start := time.Now()
		var ts []tickets.Ticket
		if c.tickets != nil {
			ts = c.tickets.Tickets()
		}
		m := correlate.Correlate(c.index.GetCanonicalSymbolsByKind(symtab.KindRequirement), ts)
		cacheComputeDuration.WithLabelValues(entryTicketMap).Observe(time.Since(start).Seconds())
		atomic.AddInt64(&c.ticketMapBuilds, 1)

		c.mu.Lock()
		if c.indexVersion == indexVersion && c.ticketsVersion == ticketsVersion && c.ticketMap == nil {
			c.ticketMap = m
		}
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("computing ticket map: %w", err)
	}
	return result.(*correlate.Result), nil
}

// InvalidateDependencyGraph drops the graph and, since ticket status
// depends on which requirements exist, the ticket map too. It advances
// the index version.
func (c *ComputedCache) InvalidateDependencyGraph() {
	c.mu.Lock()
	c.graph = nil
	c.ticketMap = nil
	c.indexVersion++
	iv, tv := c.indexVersion, c.ticketsVersion
	c.mu.Unlock()

	c.recordInvalidation(ScopeDependencyGraph, iv, tv)
}

// InvalidateTicketMap drops only the ticket map and advances the
// tickets version. The dependency graph is left untouched.
func (c *ComputedCache) InvalidateTicketMap() {
	c.mu.Lock()
	c.ticketMap = nil
	c.ticketsVersion++
	iv, tv := c.indexVersion, c.ticketsVersion
	c.mu.Unlock()

	c.recordInvalidation(ScopeTicketMap, iv, tv)
}

// invalidateRequirements drops the ticket map after requirement symbols
// were re-declared without any graph change. It advances the index
// version, since the index changed, and keeps the cached graph.
func (c *ComputedCache) invalidateRequirements() {
	c.mu.Lock()
	c.ticketMap = nil
	c.indexVersion++
	iv, tv := c.indexVersion, c.ticketsVersion
	c.mu.Unlock()

	c.recordInvalidation(ScopeTicketMap, iv, tv)
}

// InvalidateAll drops both entries and advances both versions.
func (c *ComputedCache) InvalidateAll() {
	c.mu.Lock()
	c.graph = nil
	c.ticketMap = nil
	c.indexVersion++
	c.ticketsVersion++
	iv, tv := c.indexVersion, c.ticketsVersion
	c.mu.Unlock()

	c.recordInvalidation(ScopeAll, iv, tv)
}

// ApplyUpdate applies the invalidation an index update requires.
//
// Description:
//
//	An update that added or removed paths, or changed the file's
//	references, invalidates the dependency graph (and with it the
//	ticket map). An update that only re-declared existing paths cannot
//	change the graph, but the ticket map holds the replaced requirement
//	symbols, so it is dropped and the index version advances while the
//	tickets version and the cached graph stay as they are. An empty update from an unknown-file
//	removal invalidates nothing.
//
// Outputs:
//
//	Scope - What was invalidated.
func (c *ComputedCache) ApplyUpdate(result index.UpdateResult) Scope {
	switch {
	case result.HasSymbolChanges() || result.ReferencesChanged:
		c.InvalidateDependencyGraph()
		return ScopeDependencyGraph
	case len(result.Modified) > 0:
		c.invalidateRequirements()
		return ScopeTicketMap
	}
	return ScopeNone
}

// Versions returns the current index and tickets versions.
func (c *ComputedCache) Versions() (indexVersion, ticketsVersion uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexVersion, c.ticketsVersion
}

// Stats returns cache statistics.
func (c *ComputedCache) Stats() Stats {
	iv, tv := c.Versions()
	return Stats{
		Hits:            atomic.LoadInt64(&c.hits),
		Misses:          atomic.LoadInt64(&c.misses),
		GraphBuilds:     atomic.LoadInt64(&c.graphBuilds),
		TicketMapBuilds: atomic.LoadInt64(&c.ticketMapBuilds),
		IndexVersion:    iv,
		TicketsVersion:  tv,
	}
}

func (c *ComputedCache) recordHit(entry string) {
	atomic.AddInt64(&c.hits, 1)
	recordLookup(entry, true)
}

func (c *ComputedCache) recordMiss(entry string) {
	atomic.AddInt64(&c.misses, 1)
	recordLookup(entry, false)
}

func (c *ComputedCache) recordInvalidation(scope Scope, indexVersion, ticketsVersion uint64) {
	cacheInvalidationsTotal.WithLabelValues(string(scope)).Inc()
	recordVersions(indexVersion, ticketsVersion)
	c.logger.Debug("cache invalidated",
		slog.String("scope", string(scope)),
		slog.Uint64("index_version", indexVersion),
		slog.Uint64("tickets_version", ticketsVersion),
	)
}
