// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"log/slog"

	"gate.computer/meter"
	"gate.computer/meter/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "gate.computer/meter/cmd/wasm-meter"

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// startSpan is ended with endSpan.
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type metrics struct {
	modules   metric.Int64Counter
	functions metric.Int64Counter
	inserted  metric.Int64Counter
	cacheHits metric.Int64Counter
}

// newMetrics with no-op instruments for those which cannot be created.
func newMetrics(log *slog.Logger) *metrics {
	mtr := otel.Meter(instrumentationName)

	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := mtr.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			log.Error("creating counter", logger.Error(err), logger.Data(name))
			c = noop.Int64Counter{}
		}
		return c
	}

	return &metrics{
		modules:   counter("meter.modules", "Number of instrumented modules", "{module}"),
		functions: counter("meter.functions", "Number of instrumented functions", "{function}"),
		inserted:  counter("meter.inserted", "Number of inserted instructions", "{instruction}"),
		cacheHits: counter("meter.cache.hits", "Number of results found in cache", "{module}"),
	}
}

func (m *metrics) record(ctx context.Context, r *meter.Report, strategy string, cached bool) {
	attrs := metric.WithAttributes(attribute.String("strategy", strategy))

	m.modules.Add(ctx, 1, attrs)
	m.functions.Add(ctx, int64(len(r.Funcs)), attrs)
	m.inserted.Add(ctx, int64(r.Inserted), attrs)
	if cached {
		m.cacheHits.Add(ctx, 1, attrs)
	}
}
