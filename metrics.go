// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"time"

	"github.com/rcrowley/go-metrics"
)

// Metric names registered by Metrics.
const (
	MetricGenericCalls   = "rpcproxy.dispatch.generic"
	MetricGenericErrors  = "rpcproxy.dispatch.generic.errors"
	MetricFallbackCalls  = "rpcproxy.dispatch.fallback"
	metricGenericLatency = "rpcproxy.generic."
)

// Metrics counts dispatcher routing decisions in a go-metrics registry.
// A nil *Metrics records nothing.
type Metrics struct {
	Registry metrics.Registry
}

// NewMetrics returns Metrics backed by registry, or by a fresh registry
// when registry is nil.
func NewMetrics(registry metrics.Registry) *Metrics {
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	return &Metrics{Registry: registry}
}

func (m *Metrics) fallback() {
	if m == nil {
		return
	}
	metrics.GetOrRegisterCounter(MetricFallbackCalls, m.Registry).Inc(1)
}

func (m *Metrics) generic(method string, start time.Time, err error) {
	if m == nil {
		return
	}
	metrics.GetOrRegisterCounter(MetricGenericCalls, m.Registry).Inc(1)
	if err != nil {
		metrics.GetOrRegisterCounter(MetricGenericErrors, m.Registry).Inc(1)
	}
	metrics.GetOrRegisterTimer(metricGenericLatency+method, m.Registry).UpdateSince(start)
}

// Count returns the value of the named counter, zero when absent.
func (m *Metrics) Count(name string) int64 {
	if m == nil {
		return 0
	}
	if c, ok := m.Registry.Get(name).(metrics.Counter); ok {
		return c.Count()
	}
	return 0
}
