// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"
	"time"

	"github.com/luxfi/rpcproxy/log"
)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMetrics records routing decisions and generic call latency.
func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher routes proxy calls either through a generic service or to a
// fallback invoker. A method is routed generically only when the table has
// both a service and metadata for it; anything less goes to the fallback.
//
// Errors from the generic service and from the fallback are returned as is.
type Dispatcher struct {
	table    *DispatchTable
	fallback Invoker
	metrics  *Metrics
}

var _ Invoker = (*Dispatcher)(nil)

// NewDispatcher returns a dispatcher over table. A nil table routes every
// call to fallback.
func NewDispatcher(table *DispatchTable, fallback Invoker, opts ...DispatcherOption) (*Dispatcher, error) {
	if fallback == nil {
		return nil, ErrNilFallback
	}
	d := &Dispatcher{
		table:    table,
		fallback: fallback,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Table returns the dispatch table.
func (d *Dispatcher) Table() *DispatchTable {
	return d.table
}

// Invoke implements Invoker.
func (d *Dispatcher) Invoke(ctx context.Context, proxy any, id MethodIdentity, args []any) (any, error) {
	route, ok := d.table.route(id)
	if !ok {
		log.Debugf("rpcproxy: %s has no generic route, using fallback", id)
		d.metrics.fallback()
		return d.fallback.Invoke(ctx, proxy, id, args)
	}

	if len(args) != len(route.Metadata.Params) {
		return nil, &ArgumentCountError{Method: id, Want: len(route.Metadata.Params), Got: len(args)}
	}

	log.Debugf("rpcproxy: %s routed to generic method %q", id, route.Metadata.Name)
	start := time.Now()
	res, err := route.Service.Invoke(ctx, route.Metadata.Name, route.Metadata.ParameterTypes(), args)
	d.metrics.generic(route.Metadata.Name, start, err)
	return res, err
}
