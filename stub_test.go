// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestStubCall(t *testing.T) {
	require := require.New(t)

	inv := &recordingInvoker{result: "ok"}
	stub, err := NewStub(userServiceType, inv)
	require.NoError(err)

	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	res, err := stub.Call(ctx, "GetUser", "42")
	require.NoError(err)
	require.Equal("ok", res)

	_, err = stub.Call(ctx, "Ping")
	require.NoError(err)

	calls := inv.Calls()
	require.Len(calls, 2)
	require.Equal(userMethod(t, "GetUser"), calls[0].id)
	require.Equal([]any{"42"}, calls[0].args)
	require.Same(stub, calls[0].proxy)
	require.Equal([]any{}, calls[1].args)

	id, ok := stub.Identity("Rename")
	require.True(ok)
	require.Equal(userMethod(t, "Rename"), id)

	_, err = stub.Call(ctx, "Delete")
	require.ErrorIs(err, ErrUnknownMethod)
}

func TestStubWithProxy(t *testing.T) {
	require := require.New(t)

	inv := &recordingInvoker{}
	stub, err := NewStub(userServiceType, inv)
	require.NoError(err)

	proxy := &struct{}{}
	_, err = stub.WithProxy(proxy).Call(context.Background(), "Ping")
	require.NoError(err)
	require.Same(proxy, inv.Calls()[0].proxy)
}

func TestNewStubValidation(t *testing.T) {
	require := require.New(t)

	_, err := NewStub(userServiceType, nil)
	require.ErrorIs(err, ErrNilInvoker)
	_, err = NewStub(reflect.TypeOf(User{}), &recordingInvoker{})
	require.ErrorIs(err, ErrNotInterface)
}

func TestCallConvertsResults(t *testing.T) {
	require := require.New(t)

	want := &User{ID: "42", Name: "Ada"}
	inv := InvokerFunc(func(_ context.Context, _ any, id MethodIdentity, _ []any) (any, error) {
		switch id.Method {
		case "GetUser":
			return want, nil
		case "Rename":
			return map[string]any{"id": "42", "name": "Grace"}, nil
		}
		return nil, nil
	})
	stub, err := NewStub(userServiceType, inv)
	require.NoError(err)

	got, err := Call[*User](context.Background(), stub, "GetUser", "42")
	require.NoError(err)
	require.Same(want, got)

	renamed, err := Call[*User](context.Background(), stub, "Rename", "42", "Grace")
	require.NoError(err)
	require.Equal(&User{ID: "42", Name: "Grace"}, renamed)

	none, err := Call[*User](context.Background(), stub, "Ping")
	require.NoError(err)
	require.Nil(none)
}

func TestAs(t *testing.T) {
	require := require.New(t)

	callErr := errors.New("remote failure")
	_, err := As[int](42, callErr)
	require.Same(callErr, err)

	n, err := As[int](float64(7), nil)
	require.NoError(err)
	require.Equal(7, n)

	_, err = As[int]("seven", nil)
	require.ErrorIs(err, ErrResultType)
}

type userFuncs struct {
	GetUser func(ctx context.Context, id string) (*User, error)
	Ping    func(ctx context.Context) error
	Label   string
}

type Counter interface {
	Count() (int, error)
	Label() string
	Sum(xs ...int) error
}

var counterType = reflect.TypeOf((*Counter)(nil)).Elem()

func TestBind(t *testing.T) {
	require := require.New(t)

	pingErr := errors.New("unreachable")
	var client userFuncs
	var seen []invocation
	inv := InvokerFunc(func(ctx context.Context, proxy any, id MethodIdentity, args []any) (any, error) {
		seen = append(seen, invocation{proxy: proxy, id: id, args: args})
		switch id.Method {
		case "GetUser":
			require.Equal("v", ctx.Value(ctxKey{}))
			return map[string]any{"id": args[0], "name": "Ada"}, nil
		case "Ping":
			return nil, pingErr
		case "Rename":
			return &User{ID: args[0].(string), Name: args[1].(string)}, nil
		}
		return nil, ErrUnknownMethod
	})

	stub, err := Bind(&client, userServiceType, inv)
	require.NoError(err)

	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	user, err := client.GetUser(ctx, "42")
	require.NoError(err)
	require.Equal(&User{ID: "42", Name: "Ada"}, user)

	require.Same(pingErr, client.Ping(ctx))

	// Methods without a field stay reachable through the stub.
	renamed, err := Call[*User](ctx, stub, "Rename", "42", "Grace")
	require.NoError(err)
	require.Equal(&User{ID: "42", Name: "Grace"}, renamed)

	require.Equal(userMethod(t, "GetUser"), seen[0].id)
	require.Equal([]any{"42"}, seen[0].args)
	require.Same(&client, seen[0].proxy)
	require.Equal(userMethod(t, "Ping"), seen[1].id)
	require.Same(&client, seen[2].proxy)
}

func TestBindConvertsResults(t *testing.T) {
	require := require.New(t)

	var client struct {
		Count func() (int, error)
	}
	_, err := Bind(&client, counterType, InvokerFunc(func(context.Context, any, MethodIdentity, []any) (any, error) {
		return float64(3), nil
	}))
	require.NoError(err)

	n, err := client.Count()
	require.NoError(err)
	require.Equal(3, n)
}

func TestBindRoutesThroughDispatcher(t *testing.T) {
	require := require.New(t)

	repo := newUserRepository(t)
	svc := &recordingService{result: map[string]any{"id": "42", "name": "generic"}}
	table, err := BuildDispatchTable(context.Background(), userServiceType, repo, func(context.Context, string) (GenericService, error) {
		return svc, nil
	})
	require.NoError(err)
	fallback := &recordingInvoker{}
	d, err := NewDispatcher(table, fallback)
	require.NoError(err)

	var client userFuncs
	_, err = Bind(&client, userServiceType, d)
	require.NoError(err)

	user, err := client.GetUser(context.Background(), "42")
	require.NoError(err)
	require.Equal(&User{ID: "42", Name: "generic"}, user)
	require.NoError(client.Ping(context.Background()))

	calls := svc.Calls()
	require.Len(calls, 1)
	require.Equal("queryUser", calls[0].method)
	require.Equal([]any{"42"}, calls[0].args)

	fallbackCalls := fallback.Calls()
	require.Len(fallbackCalls, 1)
	require.Equal(userMethod(t, "Ping"), fallbackCalls[0].id)
}

func TestBindValidation(t *testing.T) {
	require := require.New(t)

	inv := &recordingInvoker{}
	_, err := Bind(&userFuncs{}, userServiceType, nil)
	require.ErrorIs(err, ErrNilInvoker)

	_, err = Bind(&userFuncs{}, reflect.TypeOf(User{}), inv)
	require.ErrorIs(err, ErrNotInterface)

	_, err = Bind(userFuncs{}, userServiceType, inv)
	require.Error(err)

	_, err = Bind(&struct {
		Delete func(ctx context.Context, id string) error
	}{}, userServiceType, inv)
	require.ErrorIs(err, ErrUnknownMethod)

	_, err = Bind(&struct {
		GetUser func(id string) (*User, error)
	}{}, userServiceType, inv)
	require.ErrorContains(err, "GetUser")

	_, err = Bind(&struct{ Label func() string }{}, counterType, inv)
	require.ErrorContains(err, "last result must be error")

	_, err = Bind(&struct{ Sum func(...int) error }{}, counterType, inv)
	require.ErrorContains(err, "variadic")
}
