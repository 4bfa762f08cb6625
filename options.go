// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"net/http"
	"net/url"
)

// Option configures a single JSON-RPC HTTP request.
type Option func(*Options)

// Options holds per-request HTTP settings.
type Options struct {
	headers     http.Header
	queryParams url.Values
}

// NewOptions applies ops over empty headers and query parameters.
func NewOptions(ops []Option) *Options {
	o := &Options{
		headers:     http.Header{},
		queryParams: url.Values{},
	}
	for _, op := range ops {
		op(o)
	}
	return o
}

// Headers returns the request headers.
func (o *Options) Headers() http.Header {
	return o.headers
}

// QueryParams returns the request query parameters.
func (o *Options) QueryParams() url.Values {
	return o.queryParams
}

// WithHeader adds a request header.
func WithHeader(key, val string) Option {
	return func(o *Options) {
		o.headers.Add(key, val)
	}
}

// WithQueryParam adds a query parameter.
func WithQueryParam(key, val string) Option {
	return func(o *Options) {
		o.queryParams.Add(key, val)
	}
}
