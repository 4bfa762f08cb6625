// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Stub is the client side of a proxied interface: a thunk table that turns
// a method name and arguments into an Invoker call with the canonical
// method identity. Typed clients embed a Stub and forward each method:
//
//	type userClient struct{ *rpcproxy.Stub }
//
//	func (c userClient) GetUser(ctx context.Context, id string) (*User, error) {
//	    return rpcproxy.Call[*User](ctx, c.Stub, "GetUser", id)
//	}
type Stub struct {
	name    string
	methods map[string]MethodIdentity
	invoker Invoker
	proxy   any
}

// NewStub returns a stub for every method of iface.
func NewStub(iface reflect.Type, invoker Invoker) (*Stub, error) {
	if invoker == nil {
		return nil, ErrNilInvoker
	}
	methods, err := MethodsOf(iface)
	if err != nil {
		return nil, err
	}
	return &Stub{
		name:    TypeName(iface),
		methods: methods,
		invoker: invoker,
	}, nil
}

// WithProxy sets the proxy reference handed to the invoker. It defaults to
// the stub itself. It returns the stub for chaining.
func (s *Stub) WithProxy(proxy any) *Stub {
	s.proxy = proxy
	return s
}

// Identity returns the canonical identity of the named method.
func (s *Stub) Identity(method string) (MethodIdentity, bool) {
	id, ok := s.methods[method]
	return id, ok
}

// Call invokes the named method.
func (s *Stub) Call(ctx context.Context, method string, args ...any) (any, error) {
	id, ok := s.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, s.name, method)
	}
	if args == nil {
		args = []any{}
	}
	return s.invoker.Invoke(ctx, s.proxyRef(), id, args)
}

func (s *Stub) proxyRef() any {
	if s.proxy != nil {
		return s.proxy
	}
	return s
}

// Call invokes method on s and converts the result to T.
func Call[T any](ctx context.Context, s *Stub, method string, args ...any) (T, error) {
	return As[T](s.Call(ctx, method, args...))
}

// As converts an invocation result to T. A non-nil err is returned
// unchanged. Values that are not already a T, such as maps decoded from a
// generic reply, are converted by re-encoding through JSON.
func As[T any](v any, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if v == nil {
		return out, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	if err := convert(v, &out); err != nil {
		return out, err
	}
	return out, nil
}

func convert(v any, out any) error {
	data, err := defaultCodec.Encode(v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResultType, err)
	}
	if err := defaultCodec.Decode(data, out); err != nil {
		return fmt.Errorf("%w: %T into %T: %w", ErrResultType, v, out, err)
	}
	return nil
}

// Bind fills the exported func fields of the struct pointed to by target
// with thunks that route through invoker as calls on iface, and returns the
// stub backing them. Each func field must be named after a method of iface
// and have exactly that method's signature, which must return (R, error)
// or error. Methods without a field are reachable through the stub only.
// The struct pointer is the proxy reference handed to the invoker.
func Bind(target any, iface reflect.Type, invoker Invoker) (*Stub, error) {
	s, err := NewStub(iface, invoker)
	if err != nil {
		return nil, err
	}
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("rpcproxy: bind target must be a pointer to struct, got %T", target)
	}
	s.proxy = target

	sv := v.Elem()
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() || f.Type.Kind() != reflect.Func {
			continue
		}
		m, ok := iface.MethodByName(f.Name)
		if !ok {
			return nil, fmt.Errorf("%w: field %s has no method on %s", ErrUnknownMethod, f.Name, s.name)
		}
		if f.Type != m.Type {
			return nil, fmt.Errorf("rpcproxy: field %s is %s, %s.%s is %s", f.Name, f.Type, s.name, m.Name, m.Type)
		}
		if err := checkThunkType(f.Type); err != nil {
			return nil, fmt.Errorf("rpcproxy: field %s: %w", f.Name, err)
		}
		sv.Field(i).Set(reflect.MakeFunc(f.Type, s.thunk(s.methods[f.Name], f.Type)))
	}
	return s, nil
}

func checkThunkType(ft reflect.Type) error {
	if ft.IsVariadic() {
		return fmt.Errorf("variadic functions are not supported")
	}
	switch ft.NumOut() {
	case 1, 2:
		if ft.Out(ft.NumOut()-1) != errorType {
			return fmt.Errorf("last result must be error")
		}
	default:
		return fmt.Errorf("must return (R, error) or error")
	}
	return nil
}

func (s *Stub) thunk(id MethodIdentity, ft reflect.Type) func([]reflect.Value) []reflect.Value {
	hasCtx := ft.NumIn() > 0 && ft.In(0) == contextType
	return func(in []reflect.Value) []reflect.Value {
		ctx := context.Background()
		if hasCtx {
			if c, ok := in[0].Interface().(context.Context); ok && c != nil {
				ctx = c
			}
			in = in[1:]
		}
		args := make([]any, len(in))
		for i, a := range in {
			args[i] = a.Interface()
		}
		res, err := s.invoker.Invoke(ctx, s.proxyRef(), id, args)
		return results(ft, res, err)
	}
}

func results(ft reflect.Type, res any, err error) []reflect.Value {
	if ft.NumOut() == 1 {
		return []reflect.Value{errorValue(err)}
	}
	out := reflect.New(ft.Out(0)).Elem()
	if err == nil && res != nil {
		rv := reflect.ValueOf(res)
		if rv.Type().AssignableTo(out.Type()) {
			out.Set(rv)
		} else {
			err = convert(res, out.Addr().Interface())
		}
	}
	return []reflect.Value{out, errorValue(err)}
}

func errorValue(err error) reflect.Value {
	if err == nil {
		return reflect.Zero(errorType)
	}
	return reflect.ValueOf(&err).Elem()
}
