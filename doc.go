// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rpcproxy routes calls made on proxied interfaces either through a
// generic invocation service or to the component that was proxied.
//
// A method is routed generically only when both a GenericService and the
// remote method metadata are known for its identity. Everything else goes
// to the fallback Invoker, so a partially described interface keeps working
// through its original client.
//
// # Transport Selection
//
// Generic calls are carried by the transports of this package. ZAP is the
// default; the JSON-RPC client is always linked in and gRPC needs a build
// tag:
//
//	go build              # ZAP and JSON-RPC client
//	go build -tags grpc   # Enable gRPC transport
//
// # Usage
//
// Dispatching by hand:
//
//	table, err := rpcproxy.BuildDispatchTable(ctx, iface, repo, factory)
//	if err != nil {
//	    return err
//	}
//	d, err := rpcproxy.NewDispatcher(table, original)
//	if err != nil {
//	    return err
//	}
//	stub, err := rpcproxy.NewStub(iface, d)
//	user, err := rpcproxy.Call[*User](ctx, stub, "GetUser", "42")
//
// Installing proxies on a container:
//
//	c := rpcproxy.NewContainer()
//	c.Add(rpcproxy.NewTargeterInstaller(rpcproxy.DefaultOSEnvironment, repo))
//	t, err := c.Register("targeter", rpcproxy.HTTPTargeter{})
//
// The registered targeter now consults the metadata repository on every
// Target call. Generic routing is configured by the rpcproxy.generic.*
// properties (RPCPROXY_GENERIC_* variables):
//
//	RPCPROXY_GENERIC_ENABLED=true
//	RPCPROXY_GENERIC_ADDRESS=10.0.0.5:9000
//	RPCPROXY_GENERIC_CODEC=msgpack
//
// Provider side:
//
//	server, err := rpcproxy.Listen(":9000", rpcproxy.WithServerCodec(rpcproxy.Msgpack))
//	rpcproxy.ServeGeneric(server, "", services, rpcproxy.Msgpack)
//	rpcproxy.ServeMetadata(server, "", repo, rpcproxy.Msgpack)
//	server.Serve(ctx)
//
// # Architecture
//
//   - identity.go, metadata.go: method identities and remote metadata
//   - table.go, dispatcher.go: the dispatch table and the dispatcher
//   - stub.go: thunk tables turning method calls into Invoker calls
//   - contract.go, installer.go, container.go: contract registry and the
//     post-processor that installs proxies
//   - targeter.go: the Targeter contract and its generic strategy
//   - repository.go: static and remote metadata repositories
//   - generic.go, tracing.go: the generic wire request and its tracing
//   - client.go, dial.go, transport.go, zap.go, json.go, dial_grpc.go:
//     transports
//
// Errors from generic services and fallbacks are never wrapped.
package rpcproxy
