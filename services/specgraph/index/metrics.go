// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for index operations.
var meter = otel.Meter("specgraph.index")

// Metrics for index operations.
var (
	operationLatency metric.Float64Histogram
	operationTotal   metric.Int64Counter
	indexSize        metric.Int64Gauge
	unresolvedRefs   metric.Int64Gauge

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		operationLatency, err = meter.Float64Histogram(
			"specgraph_index_operation_duration_seconds",
			metric.WithDescription("Duration of workspace index operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		operationTotal, err = meter.Int64Counter(
			"specgraph_index_operation_total",
			metric.WithDescription("Total number of workspace index operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		indexSize, err = meter.Int64Gauge(
			"specgraph_index_symbols",
			metric.WithDescription("Current number of indexed symbols"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		unresolvedRefs, err = meter.Int64Gauge(
			"specgraph_index_unresolved_references",
			metric.WithDescription("Unresolved references found by the last workspace scan"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordOperation records latency and count for a mutation.
func recordOperation(operation string, duration time.Duration, symbolCount int) {
	if err := initMetrics(); err != nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	operationLatency.Record(ctx, duration.Seconds(), attrs)
	operationTotal.Add(ctx, 1, attrs)
	indexSize.Record(ctx, int64(symbolCount))
}

// recordUnresolved records the size of the last unresolved-reference scan.
func recordUnresolved(count int) {
	if err := initMetrics(); err != nil {
		return
	}
	unresolvedRefs.Record(context.Background(), int64(count))
}
