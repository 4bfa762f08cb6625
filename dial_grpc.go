//go:build grpc

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"
	"fmt"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// grpcService prefixes method names that are not already full gRPC paths.
const grpcService = "/rpcproxy/"

func init() {
	// Register gRPC transport when build tag is enabled
	registerTransport(TransportGRPC, dialGRPC, listenGRPC)
}

func grpcMethod(method string) string {
	if strings.HasPrefix(method, "/") {
		return method
	}
	return grpcService + method
}

// rawCodec passes payloads through untouched. Messages are encoded with
// the rpcproxy Codec before they reach gRPC.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	}
	return nil, fmt.Errorf("grpc raw codec: cannot marshal %T", v)
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	p, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("grpc raw codec: cannot unmarshal into %T", v)
	}
	*p = append((*p)[:0], data...)
	return nil
}

func (rawCodec) Name() string {
	return "rpcproxy-raw"
}

func dialGRPC(_ context.Context, addr string, o *dialOptions) (Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &grpcClient{conn: conn, codec: o.codecOrDefault()}, nil
}

type grpcClient struct {
	conn  *grpc.ClientConn
	codec Codec
}

// Call uses protobuf when both messages are protos and the client codec
// otherwise.
func (c *grpcClient) Call(ctx context.Context, method string, args, reply interface{}) error {
	if _, ok := args.(proto.Message); ok {
		if _, ok := reply.(proto.Message); ok {
			return c.conn.Invoke(ctx, grpcMethod(method), args, reply)
		}
	}

	var payload []byte
	if args != nil {
		var err error
		if payload, err = c.codec.Encode(args); err != nil {
			return fmt.Errorf("encode args: %w", err)
		}
	}
	resp, err := c.CallRaw(ctx, method, payload)
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

func (c *grpcClient) CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error) {
	var resp []byte
	err := c.conn.Invoke(ctx, grpcMethod(method), payload, &resp, grpc.ForceCodec(rawCodec{}))
	return resp, err
}

func (c *grpcClient) Notify(ctx context.Context, method string, args interface{}) error {
	var payload []byte
	if args != nil {
		var err error
		if payload, err = c.codec.Encode(args); err != nil {
			return fmt.Errorf("encode args: %w", err)
		}
	}
	_, err := c.CallRaw(ctx, method, payload)
	return err
}

func (c *grpcClient) Close() error {
	return c.conn.Close()
}

// listenGRPC serves every method through an unknown-service handler, so
// handlers are registered by name like the other transports.
func listenGRPC(addr string, o *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &grpcServer{
		listener: listener,
		mux:      newRawMux(o.codec),
	}
	s.server = grpc.NewServer(
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnknownServiceHandler(s.handleStream),
	)
	return s, nil
}

type grpcServer struct {
	listener net.Listener
	mux      *rawMux
	server   *grpc.Server
}

func (s *grpcServer) handleStream(_ any, stream grpc.ServerStream) error {
	full, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "missing method")
	}
	method := strings.TrimPrefix(full, grpcService)
	if method == full {
		method = strings.TrimPrefix(full, "/")
	}

	var payload []byte
	if err := stream.RecvMsg(&payload); err != nil {
		return err
	}
	resp, err := s.mux.handle(stream.Context(), method, payload)
	if err != nil {
		return status.Error(codes.Unknown, err.Error())
	}
	return stream.SendMsg(resp)
}

func (s *grpcServer) Register(name string, handler interface{}) error {
	return s.mux.register(s, name, handler)
}

func (s *grpcServer) RegisterRaw(method string, handler RawHandler) error {
	return s.mux.RegisterRaw(method, handler)
}

func (s *grpcServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.server.Stop)
	defer stop()
	return s.server.Serve(s.listener)
}

func (s *grpcServer) Close() error {
	s.server.Stop()
	return nil
}

func (s *grpcServer) Addr() string {
	return s.listener.Addr().String()
}
