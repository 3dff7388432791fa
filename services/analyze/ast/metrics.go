// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for parsing.
var (
	tracer = otel.Tracer("debtscope.ast")
	meter  = otel.Meter("debtscope.ast")
)

// Metrics for parse operations.
var (
	parseLatency       metric.Float64Histogram
	parseTotal         metric.Int64Counter
	functionsExtracted metric.Int64Histogram
	parseFailures      metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		parseLatency, err = meter.Float64Histogram(
			"ast_parse_duration_seconds",
			metric.WithDescription("Duration of parse operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseTotal, err = meter.Int64Counter(
			"ast_parse_total",
			metric.WithDescription("Total number of parse operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		functionsExtracted, err = meter.Int64Histogram(
			"ast_functions_extracted",
			metric.WithDescription("Function declarations extracted per file"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseFailures, err = meter.Int64Counter(
			"ast_parse_failures_total",
			metric.WithDescription("Total number of failed parse operations"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

// recordParseMetrics records latency, totals, and outcome for one parse.
func recordParseMetrics(ctx context.Context, language string, elapsed time.Duration, functions int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("success", success),
	)

	parseLatency.Record(ctx, elapsed.Seconds(), attrs)
	parseTotal.Add(ctx, 1, attrs)

	if success {
		functionsExtracted.Record(ctx, int64(functions),
			metric.WithAttributes(attribute.String("language", language)))
	} else {
		parseFailures.Add(ctx, 1,
			metric.WithAttributes(attribute.String("language", language)))
	}
}

// startParseSpan starts a tracing span for one parse operation.
func startParseSpan(ctx context.Context, language, filePath string, sizeBytes int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ast.Parse",
		trace.WithAttributes(
			attribute.String("language", language),
			attribute.String("file", filePath),
			attribute.Int("size_bytes", sizeBytes),
		))
}

// setParseSpanResult attaches extraction counts to a parse span.
func setParseSpanResult(span trace.Span, functions, errs int) {
	span.SetAttributes(
		attribute.Int("functions", functions),
		attribute.Int("errors", errs),
	)
}
