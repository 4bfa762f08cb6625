// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"
)

// GenericRequest is the call descriptor sent to a generic endpoint.
type GenericRequest struct {
	ID             string            `json:"id" msgpack:"id"`
	Service        string            `json:"service" msgpack:"service"`
	Method         string            `json:"method" msgpack:"method"`
	ParameterTypes []string          `json:"parameterTypes" msgpack:"parameterTypes"`
	Args           []any             `json:"args" msgpack:"args"`
	Attachments    map[string]string `json:"attachments,omitempty" msgpack:"attachments,omitempty"`
}

type attachmentsKey struct{}

// WithAttachments returns a context whose generic calls carry attachments
// in addition to any already present.
func WithAttachments(ctx context.Context, attachments map[string]string) context.Context {
	merged := maps.Clone(AttachmentsFromContext(ctx))
	if merged == nil {
		merged = make(map[string]string, len(attachments))
	}
	maps.Copy(merged, attachments)
	return context.WithValue(ctx, attachmentsKey{}, merged)
}

// AttachmentsFromContext returns the attachments carried by ctx. The map
// must not be modified.
func AttachmentsFromContext(ctx context.Context) map[string]string {
	a, _ := ctx.Value(attachmentsKey{}).(map[string]string)
	return a
}

// GenericOption configures a GenericClient.
type GenericOption func(*GenericClient)

// WithEndpoint sets the remote method generic requests are sent to.
func WithEndpoint(endpoint string) GenericOption {
	return func(g *GenericClient) { g.endpoint = endpoint }
}

// GenericClient is a GenericService that sends GenericRequests for one
// remote service over a Client.
type GenericClient struct {
	client   Client
	service  string
	endpoint string
}

var _ GenericService = (*GenericClient)(nil)

// NewGenericClient returns a GenericService for the named remote service.
func NewGenericClient(client Client, service string, opts ...GenericOption) *GenericClient {
	g := &GenericClient{
		client:   client,
		service:  service,
		endpoint: DefaultGenericEndpoint,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Service returns the remote service name.
func (g *GenericClient) Service() string {
	return g.service
}

// Invoke implements GenericService. Transport errors are returned as is.
func (g *GenericClient) Invoke(ctx context.Context, method string, parameterTypes []string, args []any) (any, error) {
	req := &GenericRequest{
		ID:             uuid.NewString(),
		Service:        g.service,
		Method:         method,
		ParameterTypes: parameterTypes,
		Args:           args,
		Attachments:    AttachmentsFromContext(ctx),
	}
	var reply any
	if err := g.client.Call(ctx, g.endpoint, req, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// GenericServices routes generic requests by service name. The entry under
// the empty name serves requests for any other service.
type GenericServices map[string]GenericService

func (s GenericServices) lookup(service string) (GenericService, error) {
	if svc, ok := s[service]; ok {
		return svc, nil
	}
	if svc, ok := s[""]; ok {
		return svc, nil
	}
	return nil, fmt.Errorf("unknown generic service: %s", service)
}

// handle serves one decoded request.
func (s GenericServices) handle(ctx context.Context, req *GenericRequest) (any, error) {
	svc, err := s.lookup(req.Service)
	if err != nil {
		return nil, err
	}
	if len(req.Attachments) > 0 {
		ctx = WithAttachments(ctx, req.Attachments)
	}
	return svc.Invoke(ctx, req.Method, req.ParameterTypes, req.Args)
}

// ServeGeneric exposes services on server under endpoint, decoding
// GenericRequests with codec.
func ServeGeneric(server Server, endpoint string, services GenericServices, codec Codec) error {
	if endpoint == "" {
		endpoint = DefaultGenericEndpoint
	}
	if codec == nil {
		codec = defaultCodec
	}
	return server.RegisterRaw(endpoint, func(ctx context.Context, payload []byte) ([]byte, error) {
		var req GenericRequest
		if err := codec.Decode(payload, &req); err != nil {
			return nil, fmt.Errorf("decode generic request: %w", err)
		}
		res, err := services.handle(ctx, &req)
		if err != nil {
			return nil, err
		}
		return codec.Encode(res)
	})
}
