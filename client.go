// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"
)

// Client is the transport-level RPC client. Generic invocations and
// metadata lookups are carried over it; see GenericClient and
// RemoteRepository.
type Client interface {
	// Call makes a synchronous RPC call
	Call(ctx context.Context, method string, args, reply interface{}) error

	// CallRaw makes a call with raw bytes
	CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error)

	// Notify sends a one-way message (no response expected)
	Notify(ctx context.Context, method string, args interface{}) error

	// Close closes the connection
	Close() error
}

// Server is the transport-level RPC server.
type Server interface {
	// Register registers a handler under name. The handler is a RawHandler
	// or a GenericService, which is served as a generic endpoint.
	Register(name string, handler interface{}) error

	// RegisterRaw registers a raw byte handler
	RegisterRaw(method string, handler RawHandler) error

	// Serve starts serving requests (blocks until context cancelled)
	Serve(ctx context.Context) error

	// Close stops the server
	Close() error

	// Addr returns the server's listen address
	Addr() string
}

// RawHandler handles raw byte RPC calls
type RawHandler func(ctx context.Context, payload []byte) ([]byte, error)

// Codec encodes/decodes RPC messages
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// DialOption configures client connections
type DialOption func(*dialOptions)

type dialOptions struct {
	codec     Codec
	transport string // "zap", "grpc", "json"
	options   []Option
}

// WithCodec sets a custom codec
func WithCodec(c Codec) DialOption {
	return func(o *dialOptions) { o.codec = c }
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithRequestOptions sets HTTP request options for the json transport.
func WithRequestOptions(opts ...Option) DialOption {
	return func(o *dialOptions) { o.options = append(o.options, opts...) }
}

func (o *dialOptions) codecOrDefault() Codec {
	if o.codec != nil {
		return o.codec
	}
	return defaultCodec
}

// ServerOption configures servers
type ServerOption func(*serverOptions)

type serverOptions struct {
	codec     Codec
	transport string
}

// WithServerCodec sets a custom codec for the server
func WithServerCodec(c Codec) ServerOption {
	return func(o *serverOptions) { o.codec = c }
}

// WithServerTransport explicitly sets the transport type for the server
func WithServerTransport(t string) ServerOption {
	return func(o *serverOptions) { o.transport = t }
}
