// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package callgraph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter.
var (
	tracer = otel.Tracer("debtscope.callgraph")
	meter  = otel.Meter("debtscope.callgraph")
)

// Metrics for build and resolution operations.
var (
	buildDuration     metric.Float64Histogram
	buildTotal        metric.Int64Counter
	functionsPerBuild metric.Int64Histogram
	callsPerBuild     metric.Int64Histogram
	fileFailures      metric.Int64Counter

	resolveDuration metric.Float64Histogram
	edgesResolved   metric.Int64Counter
	edgesAmbiguous  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildDuration, err = meter.Float64Histogram(
			"callgraph_build_duration_seconds",
			metric.WithDescription("Duration of call graph builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"callgraph_build_total",
			metric.WithDescription("Total number of call graph builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		functionsPerBuild, err = meter.Int64Histogram(
			"callgraph_functions_per_build",
			metric.WithDescription("Functions per completed build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		callsPerBuild, err = meter.Int64Histogram(
			"callgraph_calls_per_build",
			metric.WithDescription("Call edges per completed build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fileFailures, err = meter.Int64Counter(
			"callgraph_file_failures_total",
			metric.WithDescription("Files that failed extraction"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		resolveDuration, err = meter.Float64Histogram(
			"callgraph_resolve_duration_seconds",
			metric.WithDescription("Duration of cross-file resolution"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesResolved, err = meter.Int64Counter(
			"callgraph_edges_resolved_total",
			metric.WithDescription("Unresolved edges rewritten to concrete targets"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesAmbiguous, err = meter.Int64Counter(
			"callgraph_edges_ambiguous_total",
			metric.WithDescription("Edges left unresolved due to ambiguity"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

// recordBuildMetrics records counters for one completed build.
func recordBuildMetrics(ctx context.Context, elapsed time.Duration, stats BuildStats) {
	if err := initMetrics(); err != nil {
		return
	}

	success := metric.WithAttributes(attribute.Bool("success", stats.FilesFailed == 0))
	buildDuration.Record(ctx, elapsed.Seconds(), success)
	buildTotal.Add(ctx, 1, success)
	functionsPerBuild.Record(ctx, int64(stats.Functions))
	callsPerBuild.Record(ctx, int64(stats.CallEdges))
	if stats.FilesFailed > 0 {
		fileFailures.Add(ctx, int64(stats.FilesFailed))
	}
}

// recordResolveMetrics records counters for one resolution pass.
func recordResolveMetrics(ctx context.Context, elapsed time.Duration, stats ResolutionStats, parallel bool) {
	if err := initMetrics(); err != nil {
		return
	}

	mode := metric.WithAttributes(attribute.Bool("parallel", parallel))
	resolveDuration.Record(ctx, elapsed.Seconds(), mode)
	edgesResolved.Add(ctx, int64(stats.Resolved), mode)
	edgesAmbiguous.Add(ctx, int64(stats.Ambiguous), mode)
}

// startBuildSpan starts the tracing span for one build.
func startBuildSpan(ctx context.Context, files, workers int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "callgraph.Build",
		trace.WithAttributes(
			attribute.Int("files", files),
			attribute.Int("workers", workers),
		))
}
