// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

func TestDispatchTableRoute(t *testing.T) {
	require := require.New(t)

	getUser, rename, ping := userMethod(t, "GetUser"), userMethod(t, "Rename"), userMethod(t, "Ping")
	svc := &recordingService{}
	table, err := NewDispatchTable(
		map[MethodIdentity]GenericService{getUser: svc, rename: svc},
		map[MethodIdentity]MethodMetadata{
			getUser: NewMethodMetadata("queryUser", "java.lang.String"),
			ping:    NewMethodMetadata("ping"),
		},
	)
	require.NoError(err)

	route, ok := table.Route(getUser)
	require.True(ok)
	require.Same(svc, route.Service)
	require.Equal("queryUser", route.Metadata.Name)

	_, ok = table.Route(rename)
	require.False(ok)
	_, ok = table.Route(ping)
	require.False(ok)

	_, ok = table.Service(rename)
	require.True(ok)
	_, ok = table.Metadata(ping)
	require.True(ok)

	require.Equal(1, table.Len())
	require.Equal([]MethodIdentity{getUser}, table.Identities())
}

func TestDispatchTableCopiesInput(t *testing.T) {
	require := require.New(t)

	getUser := userMethod(t, "GetUser")
	services := map[MethodIdentity]GenericService{getUser: &recordingService{}}
	metadata := map[MethodIdentity]MethodMetadata{getUser: NewMethodMetadata("queryUser", "java.lang.String")}
	table, err := NewDispatchTable(services, metadata)
	require.NoError(err)

	delete(services, getUser)
	metadata[getUser].Params[0].Type = "changed"
	_, ok := table.Route(getUser)
	require.True(ok)

	md, _ := table.Metadata(getUser)
	require.Equal([]string{"java.lang.String"}, md.ParameterTypes())
	md.Params[0].Type = "mutated"
	again, _ := table.Metadata(getUser)
	require.Equal([]string{"java.lang.String"}, again.ParameterTypes())
}

func TestDispatchTableInvalid(t *testing.T) {
	require := require.New(t)

	getUser, rename := userMethod(t, "GetUser"), userMethod(t, "Rename")
	_, err := NewDispatchTable(
		map[MethodIdentity]GenericService{getUser: nil},
		map[MethodIdentity]MethodMetadata{
			rename: {Name: "", Params: []ParameterMetadata{{Index: 1, Type: "x"}}},
		},
	)
	require.ErrorIs(err, ErrInvalidMetadata)

	var merr *multierror.Error
	require.ErrorAs(err, &merr)
	require.Len(merr.Errors, 2)
}

func TestDispatchTableRouteReturnsCopy(t *testing.T) {
	require := require.New(t)

	getUser := userMethod(t, "GetUser")
	table, err := NewDispatchTable(
		map[MethodIdentity]GenericService{getUser: &recordingService{}},
		map[MethodIdentity]MethodMetadata{getUser: NewMethodMetadata("queryUser", "java.lang.String")},
	)
	require.NoError(err)

	route, ok := table.Route(getUser)
	require.True(ok)
	route.Metadata.Params[0].Type = "mutated"

	again, ok := table.Route(getUser)
	require.True(ok)
	require.Equal([]string{"java.lang.String"}, again.Metadata.ParameterTypes())
}

func TestNilDispatchTable(t *testing.T) {
	require := require.New(t)

	var table *DispatchTable
	_, ok := table.Route(userMethod(t, "GetUser"))
	require.False(ok)
	require.Zero(table.Len())
	require.Empty(table.Identities())
}

type repositoryFunc func(ctx context.Context, id MethodIdentity) (ServiceMethod, bool, error)

func (f repositoryFunc) Lookup(ctx context.Context, id MethodIdentity) (ServiceMethod, bool, error) {
	return f(ctx, id)
}

func TestBuildDispatchTable(t *testing.T) {
	require := require.New(t)

	repo := NewStaticRepository()
	require.NoError(repo.RegisterInterface(userServiceType, "users", map[string]MethodMetadata{
		"GetUser": NewMethodMetadata("queryUser", "java.lang.String"),
		"Rename":  NewMethodMetadata("renameUser", "java.lang.String", "java.lang.String"),
	}))

	created := map[string]int{}
	factory := func(_ context.Context, service string) (GenericService, error) {
		created[service]++
		return &recordingService{}, nil
	}
	table, err := BuildDispatchTable(context.Background(), userServiceType, repo, factory)
	require.NoError(err)

	require.Equal(map[string]int{"users": 1}, created)
	require.Equal(2, table.Len())
	_, ok := table.Route(userMethod(t, "Ping"))
	require.False(ok)

	getUser, _ := table.Route(userMethod(t, "GetUser"))
	rename, _ := table.Route(userMethod(t, "Rename"))
	require.Same(getUser.Service, rename.Service)
}

func TestBuildDispatchTableSkipsInvalidEntries(t *testing.T) {
	require := require.New(t)

	getUser, rename := userMethod(t, "GetUser"), userMethod(t, "Rename")
	repo := repositoryFunc(func(_ context.Context, id MethodIdentity) (ServiceMethod, bool, error) {
		switch id {
		case getUser:
			return ServiceMethod{Service: "users", Metadata: NewMethodMetadata("queryUser", "java.lang.String")}, true, nil
		case rename:
			return ServiceMethod{Service: "users"}, true, nil
		default:
			return ServiceMethod{Metadata: NewMethodMetadata("ping")}, true, nil
		}
	})
	table, err := BuildDispatchTable(context.Background(), userServiceType, repo, func(context.Context, string) (GenericService, error) {
		return &recordingService{}, nil
	})
	require.NoError(err)
	require.Equal([]MethodIdentity{getUser}, table.Identities())
}

func TestBuildDispatchTableErrors(t *testing.T) {
	require := require.New(t)

	lookupErr := errors.New("registry down")
	failing := repositoryFunc(func(context.Context, MethodIdentity) (ServiceMethod, bool, error) {
		return ServiceMethod{}, false, lookupErr
	})
	noop := func(context.Context, string) (GenericService, error) { return &recordingService{}, nil }

	_, err := BuildDispatchTable(context.Background(), userServiceType, failing, noop)
	require.ErrorIs(err, lookupErr)

	known := repositoryFunc(func(context.Context, MethodIdentity) (ServiceMethod, bool, error) {
		return ServiceMethod{Service: "users", Metadata: NewMethodMetadata("m")}, true, nil
	})
	dialErr := errors.New("dial failed")
	_, err = BuildDispatchTable(context.Background(), userServiceType, known, func(context.Context, string) (GenericService, error) {
		return nil, dialErr
	})
	require.ErrorIs(err, dialErr)

	_, err = BuildDispatchTable(context.Background(), reflect.TypeOf(User{}), known, noop)
	require.ErrorIs(err, ErrNotInterface)
}
