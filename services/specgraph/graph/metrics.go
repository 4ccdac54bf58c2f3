// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("specgraph.graph")
	meter  = otel.Meter("specgraph.graph")
)

// Metrics for graph building operations.
var (
	buildLatency metric.Float64Histogram
	buildTotal   metric.Int64Counter
	nodesCreated metric.Int64Histogram
	edgesCreated metric.Int64Histogram
	cyclesFound  metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"specgraph_graph_build_duration_seconds",
			metric.WithDescription("Duration of dependency graph builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"specgraph_graph_build_total",
			metric.WithDescription("Total number of dependency graph builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesCreated, err = meter.Int64Histogram(
			"specgraph_graph_nodes",
			metric.WithDescription("Number of nodes per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesCreated, err = meter.Int64Histogram(
			"specgraph_graph_edges",
			metric.WithDescription("Number of edges per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cyclesFound, err = meter.Int64Histogram(
			"specgraph_graph_cycles",
			metric.WithDescription("Number of distinct cycles per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records metrics for a build operation.
func recordBuildMetrics(ctx context.Context, duration time.Duration, g *DependencyGraph, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))

	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)

	if success && g != nil {
		nodesCreated.Record(ctx, int64(g.NodeCount()))
		edgesCreated.Record(ctx, int64(g.EdgeCount()))
		cyclesFound.Record(ctx, int64(len(g.cycles)))
	}
}

// startBuildSpan creates a span for a build operation.
func startBuildSpan(ctx context.Context, symbolCount, referenceCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "graph.Build",
		trace.WithAttributes(
			attribute.Int("graph.symbol_count", symbolCount),
			attribute.Int("graph.reference_count", referenceCount),
		),
	)
}

// setBuildSpanResult sets the result attributes on a build span.
func setBuildSpanResult(span trace.Span, g *DependencyGraph) {
	span.SetAttributes(
		attribute.Int("graph.node_count", g.NodeCount()),
		attribute.Int("graph.edge_count", g.EdgeCount()),
		attribute.Int("graph.cycle_count", len(g.cycles)),
		attribute.Bool("graph.acyclic", g.IsAcyclic()),
	)
}
