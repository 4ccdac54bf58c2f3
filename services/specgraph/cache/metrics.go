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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer for cache operations.
var tracer = otel.Tracer("specgraph.cache")

// Entry names used as metric labels.
const (
	entryDependencyGraph = "dependency_graph"
	entryTicketMap       = "ticket_map"
)

// Prometheus metrics for the computed data cache.
var (
	cacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "specgraph_cache_requests_total",
		Help: "Cache lookups by entry and result (hit or miss)",
	}, []string{"entry", "result"})

	cacheComputeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "specgraph_cache_compute_duration_seconds",
		Help:    "Time spent recomputing a cache entry",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"entry"})

	cacheInvalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "specgraph_cache_invalidations_total",
		Help: "Cache invalidations by scope",
	}, []string{"scope"})

	cacheVersion = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "specgraph_cache_version",
		Help: "Current version counters of the computed data cache",
	}, []string{"counter"})
)

func recordLookup(entry string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheRequestsTotal.WithLabelValues(entry, result).Inc()
}

func recordVersions(indexVersion, ticketsVersion uint64) {
	cacheVersion.WithLabelValues("index").Set(float64(indexVersion))
	cacheVersion.WithLabelValues("tickets").Set(float64(ticketsVersion))
}

// startComputeSpan creates a span for recomputing an entry.
func startComputeSpan(ctx context.Context, entry string, indexVersion, ticketsVersion uint64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ComputedCache.compute",
		trace.WithAttributes(
			attribute.String("cache.entry", entry),
			attribute.Int64("cache.index_version", int64(indexVersion)),
			attribute.Int64("cache.tickets_version", int64(ticketsVersion)),
		),
	)
}
