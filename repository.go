// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru"

	"github.com/luxfi/rpcproxy/log"
)

// DefaultMetadataEndpoint is the method RemoteRepository queries.
const DefaultMetadataEndpoint = "$metadata"

// ServiceMethod locates a method on a remote service.
type ServiceMethod struct {
	Service  string
	Metadata MethodMetadata
}

// MetadataRepository answers which remote service and method metadata back
// a local method. A miss is reported as ok == false, not as an error.
type MetadataRepository interface {
	Lookup(ctx context.Context, id MethodIdentity) (sm ServiceMethod, ok bool, err error)
}

// MethodDescriptor is the exchange form of one repository entry.
type MethodDescriptor struct {
	Interface      string         `json:"interface" msgpack:"interface"`
	Method         string         `json:"method" msgpack:"method"`
	ParameterTypes []string       `json:"parameterTypes,omitempty" msgpack:"parameterTypes"`
	Service        string         `json:"service" msgpack:"service"`
	Metadata       MethodMetadata `json:"metadata" msgpack:"metadata"`
}

func (d MethodDescriptor) identity() MethodIdentity {
	return NewMethodIdentity(d.Interface, d.Method, d.ParameterTypes...)
}

// StaticRepository is an in-memory MetadataRepository.
type StaticRepository struct {
	mu      sync.RWMutex
	entries map[MethodIdentity]ServiceMethod
}

var _ MetadataRepository = (*StaticRepository)(nil)

// NewStaticRepository returns an empty repository.
func NewStaticRepository() *StaticRepository {
	return &StaticRepository{entries: make(map[MethodIdentity]ServiceMethod)}
}

// Register maps id to a method of the named remote service.
func (r *StaticRepository) Register(id MethodIdentity, service string, md MethodMetadata) error {
	if service == "" {
		return fmt.Errorf("%w: %s: empty service name", ErrInvalidMetadata, id)
	}
	if err := md.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidMetadata, id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMethod, id)
	}
	r.entries[id] = ServiceMethod{Service: service, Metadata: md.clone()}
	return nil
}

// RegisterInterface maps the methods of iface named in methods to the
// remote service. Every problem is reported.
func (r *StaticRepository) RegisterInterface(iface reflect.Type, service string, methods map[string]MethodMetadata) error {
	ids, err := MethodsOf(iface)
	if err != nil {
		return err
	}
	var result *multierror.Error
	for name, md := range methods {
		id, ok := ids[name]
		if !ok {
			result = multierror.Append(result, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, TypeName(iface), name))
			continue
		}
		if err := r.Register(id, service, md); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Lookup implements MetadataRepository.
func (r *StaticRepository) Lookup(_ context.Context, id MethodIdentity) (ServiceMethod, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sm, ok := r.entries[id]
	if !ok {
		return ServiceMethod{}, false, nil
	}
	return ServiceMethod{Service: sm.Service, Metadata: sm.Metadata.clone()}, true, nil
}

// Descriptors returns the entries declared on the named interface.
func (r *StaticRepository) Descriptors(iface string) []MethodDescriptor {
	r.mu.RLock()
	ids := make([]MethodIdentity, 0)
	for id := range r.entries {
		if id.Interface == iface {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()
	sortIdentities(ids)

	descs := make([]MethodDescriptor, 0, len(ids))
	for _, id := range ids {
		sm, _, _ := r.Lookup(context.Background(), id)
		descs = append(descs, MethodDescriptor{
			Interface:      id.Interface,
			Method:         id.Method,
			ParameterTypes: id.ParameterTypes(),
			Service:        sm.Service,
			Metadata:       sm.Metadata,
		})
	}
	return descs
}

// RemoteRepository fetches metadata published by providers through
// ServeMetadata. Descriptors are fetched once per interface and kept in an
// LRU cache. Invalid descriptors are logged and left out, so their methods
// are not routed.
type RemoteRepository struct {
	client   Client
	endpoint string
	cache    *lru.Cache
}

var _ MetadataRepository = (*RemoteRepository)(nil)

// NewRemoteRepository returns a repository querying endpoint through client,
// caching up to size interfaces.
func NewRemoteRepository(client Client, endpoint string, size int) (*RemoteRepository, error) {
	if endpoint == "" {
		endpoint = DefaultMetadataEndpoint
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &RemoteRepository{client: client, endpoint: endpoint, cache: cache}, nil
}

// Lookup implements MetadataRepository.
func (r *RemoteRepository) Lookup(ctx context.Context, id MethodIdentity) (ServiceMethod, bool, error) {
	entries, err := r.load(ctx, id.Interface)
	if err != nil {
		return ServiceMethod{}, false, err
	}
	sm, ok := entries[id]
	return sm, ok, nil
}

// Invalidate drops the cached metadata of iface.
func (r *RemoteRepository) Invalidate(iface string) {
	r.cache.Remove(iface)
}

func (r *RemoteRepository) load(ctx context.Context, iface string) (map[MethodIdentity]ServiceMethod, error) {
	if v, ok := r.cache.Get(iface); ok {
		return v.(map[MethodIdentity]ServiceMethod), nil
	}

	var descs []MethodDescriptor
	if err := r.client.Call(ctx, r.endpoint, iface, &descs); err != nil {
		return nil, fmt.Errorf("fetch metadata of %s: %w", iface, err)
	}

	// A malformed descriptor only removes its own method from routing.
	entries := make(map[MethodIdentity]ServiceMethod, len(descs))
	for _, d := range descs {
		sm := ServiceMethod{Service: d.Service, Metadata: d.Metadata}
		if err := sm.validate(); err != nil {
			log.Warnf("rpcproxy: skipping metadata of %s: %v", d.identity(), err)
			continue
		}
		entries[d.identity()] = sm
	}
	r.cache.Add(iface, entries)
	return entries, nil
}

func (sm ServiceMethod) validate() error {
	if sm.Service == "" {
		return fmt.Errorf("%w: empty service name", ErrInvalidMetadata)
	}
	if err := sm.Metadata.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	return nil
}

// ServeMetadata publishes the descriptors of repo on server under endpoint.
// The request payload is the interface name encoded with codec.
func ServeMetadata(server Server, endpoint string, repo *StaticRepository, codec Codec) error {
	if endpoint == "" {
		endpoint = DefaultMetadataEndpoint
	}
	if codec == nil {
		codec = defaultCodec
	}
	return server.RegisterRaw(endpoint, func(ctx context.Context, payload []byte) ([]byte, error) {
		var iface string
		if err := codec.Decode(payload, &iface); err != nil {
			return nil, fmt.Errorf("decode interface name: %w", err)
		}
		return codec.Encode(repo.Descriptors(iface))
	})
}
