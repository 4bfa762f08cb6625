// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// Dial connects to an RPC server using the default transport (ZAP).
// Use WithTransport to select another registered transport.
func Dial(ctx context.Context, addr string, opts ...DialOption) (Client, error) {
	o := &dialOptions{
		transport: DefaultTransport,
	}
	for _, opt := range opts {
		opt(o)
	}

	t, ok := lookupTransport(o.transport)
	if !ok || t.dial == nil {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	return t.dial(ctx, addr, o)
}

// Listen creates an RPC server listener using the default transport (ZAP).
func Listen(addr string, opts ...ServerOption) (Server, error) {
	o := &serverOptions{
		transport: DefaultTransport,
	}
	for _, opt := range opts {
		opt(o)
	}

	t, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	if t.listen == nil {
		return nil, fmt.Errorf("transport %s cannot listen", o.transport)
	}
	return t.listen(addr, o)
}

// dialZAP creates a ZAP client
func dialZAP(ctx context.Context, addr string, o *dialOptions) (Client, error) {
	conn, err := ZAPDial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &zapClient{
		conn:  conn,
		codec: o.codecOrDefault(),
	}, nil
}

// listenZAP creates a ZAP server
func listenZAP(addr string, o *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := newRawMux(o.codec)
	return &zapServer{
		listener: listener,
		mux:      mux,
		server:   NewZAPServer(listener, ZAPHandlerFunc(mux.handle)),
	}, nil
}

// zapClient implements Client using ZAP transport
type zapClient struct {
	conn  *ZAPConn
	codec Codec
}

func (c *zapClient) Call(ctx context.Context, method string, args, reply interface{}) error {
	var payload []byte
	if args != nil {
		var err error
		if payload, err = c.codec.Encode(args); err != nil {
			return fmt.Errorf("encode args: %w", err)
		}
	}

	resp, err := c.conn.Call(ctx, method, payload)
	if err != nil {
		return err
	}

	if reply != nil && len(resp) > 0 {
		if err := c.codec.Decode(resp, reply); err != nil {
			return fmt.Errorf("decode reply: %w", err)
		}
	}
	return nil
}

func (c *zapClient) CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error) {
	return c.conn.Call(ctx, method, payload)
}

func (c *zapClient) Notify(ctx context.Context, method string, args interface{}) error {
	var payload []byte
	if args != nil {
		var err error
		if payload, err = c.codec.Encode(args); err != nil {
			return fmt.Errorf("encode args: %w", err)
		}
	}
	return c.conn.Notify(ctx, method, payload)
}

func (c *zapClient) Close() error {
	return c.conn.Close()
}

// zapServer implements Server using ZAP transport
type zapServer struct {
	listener net.Listener
	mux      *rawMux
	server   *ZAPServer
}

func (s *zapServer) Register(name string, handler interface{}) error {
	return s.mux.register(s, name, handler)
}

func (s *zapServer) RegisterRaw(method string, handler RawHandler) error {
	return s.mux.RegisterRaw(method, handler)
}

func (s *zapServer) Serve(ctx context.Context) error {
	return s.server.Serve(ctx)
}

func (s *zapServer) Close() error {
	return s.server.Close()
}

func (s *zapServer) Addr() string {
	return s.listener.Addr().String()
}

// rawMux routes raw requests by method name. Servers of every transport
// share it.
type rawMux struct {
	mu       sync.RWMutex
	handlers map[string]RawHandler
	codec    Codec
}

func newRawMux(codec Codec) *rawMux {
	if codec == nil {
		codec = defaultCodec
	}
	return &rawMux{
		handlers: make(map[string]RawHandler),
		codec:    codec,
	}
}

func (m *rawMux) RegisterRaw(method string, handler RawHandler) error {
	if handler == nil {
		return fmt.Errorf("nil handler for %s", method)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.handlers[method]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMethod, method)
	}
	m.handlers[method] = handler
	return nil
}

func (m *rawMux) register(srv Server, name string, handler interface{}) error {
	switch h := handler.(type) {
	case RawHandler:
		return m.RegisterRaw(name, h)
	case func(context.Context, []byte) ([]byte, error):
		return m.RegisterRaw(name, h)
	case GenericService:
		return ServeGeneric(srv, name, GenericServices{"": h}, m.codec)
	default:
		return fmt.Errorf("cannot register handler of type %T", handler)
	}
}

func (m *rawMux) handle(ctx context.Context, method string, payload []byte) ([]byte, error) {
	m.mu.RLock()
	handler, ok := m.handlers[method]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown method: %s", method)
	}
	return handler(ctx, payload)
}
