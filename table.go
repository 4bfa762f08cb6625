// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/luxfi/rpcproxy/log"
)

// Route is a fully routable entry: a generic service and the metadata
// describing how to call it.
type Route struct {
	Service  GenericService
	Metadata MethodMetadata
}

// DispatchTable maps method identities to generic services and method
// metadata. It is immutable once built and safe for concurrent lookups.
type DispatchTable struct {
	services map[MethodIdentity]GenericService
	metadata map[MethodIdentity]MethodMetadata
}

// NewDispatchTable copies services and metadata into a new table. The two
// maps are independent: an identity may appear in only one of them, in
// which case it is not routable. All invalid entries are reported together.
func NewDispatchTable(services map[MethodIdentity]GenericService, metadata map[MethodIdentity]MethodMetadata) (*DispatchTable, error) {
	t := &DispatchTable{
		services: make(map[MethodIdentity]GenericService, len(services)),
		metadata: make(map[MethodIdentity]MethodMetadata, len(metadata)),
	}

	var result *multierror.Error
	for id, svc := range services {
		if svc == nil {
			result = multierror.Append(result, fmt.Errorf("%s: nil generic service", id))
			continue
		}
		t.services[id] = svc
	}
	for id, md := range metadata {
		if err := md.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", id, err))
			continue
		}
		t.metadata[id] = md.clone()
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	return t, nil
}

// Service returns the generic service registered for id.
func (t *DispatchTable) Service(id MethodIdentity) (GenericService, bool) {
	if t == nil {
		return nil, false
	}
	svc, ok := t.services[id]
	return svc, ok
}

// Metadata returns a copy of the metadata registered for id.
func (t *DispatchTable) Metadata(id MethodIdentity) (MethodMetadata, bool) {
	if t == nil {
		return MethodMetadata{}, false
	}
	md, ok := t.metadata[id]
	if !ok {
		return MethodMetadata{}, false
	}
	return md.clone(), true
}

// Route returns the route for id only when both a service and metadata
// are registered. The metadata is a copy.
func (t *DispatchTable) Route(id MethodIdentity) (Route, bool) {
	r, ok := t.route(id)
	if ok {
		r.Metadata = r.Metadata.clone()
	}
	return r, ok
}

// route is Route without the copy; callers must not modify the metadata.
func (t *DispatchTable) route(id MethodIdentity) (Route, bool) {
	if t == nil {
		return Route{}, false
	}
	svc, ok := t.services[id]
	if !ok {
		return Route{}, false
	}
	md, ok := t.metadata[id]
	if !ok {
		return Route{}, false
	}
	return Route{Service: svc, Metadata: md}, true
}

// Len returns the number of routable identities.
func (t *DispatchTable) Len() int {
	return len(t.Identities())
}

// Identities returns the routable identities in a stable order.
func (t *DispatchTable) Identities() []MethodIdentity {
	if t == nil {
		return nil
	}
	ids := make([]MethodIdentity, 0, len(t.metadata))
	for id := range t.metadata {
		if _, ok := t.services[id]; ok {
			ids = append(ids, id)
		}
	}
	sortIdentities(ids)
	return ids
}

func sortIdentities(ids []MethodIdentity) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Interface != ids[j].Interface {
			return ids[i].Interface < ids[j].Interface
		}
		if ids[i].Method != ids[j].Method {
			return ids[i].Method < ids[j].Method
		}
		return ids[i].params < ids[j].params
	})
}

// GenericServiceFactory returns the generic service that reaches the named
// remote service.
type GenericServiceFactory func(ctx context.Context, service string) (GenericService, error)

// BuildDispatchTable asks repo for every method of iface and registers a
// route for each one it knows. Invalid entries are logged and skipped. The
// factory is called once per distinct remote service.
func BuildDispatchTable(ctx context.Context, iface reflect.Type, repo MetadataRepository, factory GenericServiceFactory) (*DispatchTable, error) {
	methods, err := MethodsOf(iface)
	if err != nil {
		return nil, err
	}

	ids := make([]MethodIdentity, 0, len(methods))
	for _, id := range methods {
		ids = append(ids, id)
	}
	sortIdentities(ids)

	byService := make(map[string]GenericService)
	services := make(map[MethodIdentity]GenericService)
	metadata := make(map[MethodIdentity]MethodMetadata)
	for _, id := range ids {
		sm, ok, err := repo.Lookup(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", id, err)
		}
		if !ok {
			continue
		}
		if err := sm.validate(); err != nil {
			log.Warnf("rpcproxy: %s is not routed: %v", id, err)
			continue
		}

		svc, ok := byService[sm.Service]
		if !ok {
			svc, err = factory(ctx, sm.Service)
			if err != nil {
				return nil, fmt.Errorf("generic service %q: %w", sm.Service, err)
			}
			byService[sm.Service] = svc
		}
		services[id] = svc
		metadata[id] = sm.Metadata
	}
	return NewDispatchTable(services, metadata)
}
