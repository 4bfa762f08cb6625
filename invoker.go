// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import "context"

// Invoker handles a method call made on a proxy. proxy is the value the
// caller invoked the method on, id the canonical method identity and args
// the call arguments without the context.
type Invoker interface {
	Invoke(ctx context.Context, proxy any, id MethodIdentity, args []any) (any, error)
}

// InvokerFunc is a function adapter for Invoker.
type InvokerFunc func(ctx context.Context, proxy any, id MethodIdentity, args []any) (any, error)

func (f InvokerFunc) Invoke(ctx context.Context, proxy any, id MethodIdentity, args []any) (any, error) {
	return f(ctx, proxy, id, args)
}

// GenericService performs a generic invocation: the remote method is named
// by value and its signature is given as wire type names. Implementations
// block until the remote side answers or faults.
type GenericService interface {
	Invoke(ctx context.Context, method string, parameterTypes []string, args []any) (any, error)
}

// GenericServiceFunc is a function adapter for GenericService.
type GenericServiceFunc func(ctx context.Context, method string, parameterTypes []string, args []any) (any, error)

func (f GenericServiceFunc) Invoke(ctx context.Context, method string, parameterTypes []string, args []any) (any, error) {
	return f(ctx, method, parameterTypes, args)
}
