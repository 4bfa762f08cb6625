// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/trace"

	"github.com/luxfi/rpcproxy/log"
)

// TargeterContract is the contract name under which Targeter is registered.
const TargeterContract = "rpcproxy.Targeter"

// ServiceTarget names a remote service and the local interface a client
// for it implements.
type ServiceTarget struct {
	Name      string
	URL       string
	Interface reflect.Type
}

// Targeter builds the invoker backing a declarative client for a remote
// service.
type Targeter interface {
	Target(ctx context.Context, target ServiceTarget) (Invoker, error)
}

var (
	targeterType   = reflect.TypeOf((*Targeter)(nil)).Elem()
	targetIdentity = targetMethod()
)

func targetMethod() MethodIdentity {
	m, _ := targeterType.MethodByName("Target")
	return IdentityOf(targeterType, m)
}

func init() {
	err := RegisterContract(Contract{
		Name: TargeterContract,
		Type: targeterType,
		Wrap: func(h Invoker) any { return &targeterProxy{h: h} },
	})
	if err != nil {
		panic(err)
	}
}

// targeterProxy is the Targeter installed in place of an intercepted one.
type targeterProxy struct {
	h Invoker
}

func (p *targeterProxy) Target(ctx context.Context, target ServiceTarget) (Invoker, error) {
	res, err := p.h.Invoke(ctx, p, targetIdentity, []any{target})
	if err != nil {
		return nil, err
	}
	inv, ok := res.(Invoker)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrResultType, targetIdentity, res)
	}
	return inv, nil
}

// Close releases the resources held by the interception strategy.
func (p *targeterProxy) Close() error {
	if c, ok := p.h.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewTargetStub targets t at target and returns a stub for
// target.Interface backed by the resulting invoker.
func NewTargetStub(ctx context.Context, t Targeter, target ServiceTarget) (*Stub, error) {
	inv, err := t.Target(ctx, target)
	if err != nil {
		return nil, err
	}
	return NewStub(target.Interface, inv)
}

// HTTPTargeter is the default Targeter. Its invokers call Name.Method over
// JSON-RPC 2.0 at the target URL. A single argument is sent as the params
// object, several as an array.
type HTTPTargeter struct {
	Options []Option
}

var _ Targeter = HTTPTargeter{}

func (t HTTPTargeter) Target(_ context.Context, target ServiceTarget) (Invoker, error) {
	uri, err := url.Parse(target.URL)
	if err != nil {
		return nil, fmt.Errorf("rpcproxy: target %s: %w", target.Name, err)
	}
	if uri.Scheme != "http" && uri.Scheme != "https" {
		return nil, fmt.Errorf("rpcproxy: target %s: %q is not an http(s) URL", target.Name, target.URL)
	}

	return InvokerFunc(func(ctx context.Context, _ any, id MethodIdentity, args []any) (any, error) {
		var params any = args
		if len(args) == 1 {
			params = args[0]
		}
		u := *uri
		var reply any
		if err := SendJSONRequest(ctx, &u, target.Name+"."+id.Method, params, &reply, t.Options...); err != nil {
			return nil, err
		}
		return reply, nil
	}), nil
}

// TargeterOption configures a GenericTargeter.
type TargeterOption func(*GenericTargeter)

// WithTargeterMetrics records the routing decisions of every dispatcher
// the targeter builds.
func WithTargeterMetrics(m *Metrics) TargeterOption {
	return func(g *GenericTargeter) { g.metrics = m }
}

// WithTargeterTracing traces generic calls with tp. A nil tp uses the
// global provider.
func WithTargeterTracing(tp trace.TracerProvider) TargeterOption {
	return func(g *GenericTargeter) {
		g.tracing = true
		g.tracerProvider = tp
	}
}

// GenericTargeter is the interception strategy for Targeter. It asks the
// original targeter for the default invoker and, when generic routing is
// enabled and the repository knows methods of the target interface, puts
// a Dispatcher in front of it.
type GenericTargeter struct {
	delegate Targeter
	env      Environment
	repo     MetadataRepository

	metrics        *Metrics
	tracing        bool
	tracerProvider trace.TracerProvider

	mu      sync.Mutex
	clients map[string]Client
}

var (
	_ Targeter  = (*GenericTargeter)(nil)
	_ Invoker   = (*GenericTargeter)(nil)
	_ io.Closer = (*GenericTargeter)(nil)
)

// NewGenericTargeter returns the strategy intercepting delegate.
func NewGenericTargeter(delegate Targeter, env Environment, repo MetadataRepository, opts ...TargeterOption) *GenericTargeter {
	g := &GenericTargeter{
		delegate: delegate,
		env:      env,
		repo:     repo,
		clients:  make(map[string]Client),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Invoke implements Invoker for calls made on the installed Targeter.
func (g *GenericTargeter) Invoke(ctx context.Context, _ any, id MethodIdentity, args []any) (any, error) {
	if id != targetIdentity {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, id)
	}
	if len(args) != 1 {
		return nil, &ArgumentCountError{Method: id, Want: 1, Got: len(args)}
	}
	target, ok := args[0].(ServiceTarget)
	if !ok {
		return nil, fmt.Errorf("rpcproxy: %s expects a ServiceTarget, got %T", id, args[0])
	}
	return g.Target(ctx, target)
}

// Target implements Targeter. Errors of the original targeter and invalid
// configuration are returned; failures to build the dispatch table are
// logged and yield the default invoker.
func (g *GenericTargeter) Target(ctx context.Context, target ServiceTarget) (Invoker, error) {
	def, err := g.delegate.Target(ctx, target)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadGenericConfig(g.env)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled || g.repo == nil || target.Interface == nil {
		return def, nil
	}

	// Routing information that cannot be fetched leaves the target on its
	// default invoker.
	table, err := BuildDispatchTable(ctx, target.Interface, g.repo, g.factory(cfg))
	if err != nil {
		log.Warnf("rpcproxy: target %s falls back to its default client: %v", target.Name, err)
		return def, nil
	}
	if table.Len() == 0 {
		log.Debugf("rpcproxy: target %s has no generic methods", target.Name)
		return def, nil
	}

	log.Infof("rpcproxy: target %s routes %d methods over %s://%s", target.Name, table.Len(), cfg.Transport, cfg.Address)
	d, err := NewDispatcher(table, def, WithMetrics(g.metrics))
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (g *GenericTargeter) factory(cfg GenericConfig) GenericServiceFactory {
	return func(ctx context.Context, service string) (GenericService, error) {
		client, err := g.client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		var svc GenericService = NewGenericClient(client, service, WithEndpoint(cfg.Endpoint))
		if g.tracing {
			svc = Traced(svc, service, g.tracerProvider)
		}
		return svc, nil
	}
}

// client returns the shared client for the configured transport, dialling
// it on first use.
func (g *GenericTargeter) client(ctx context.Context, cfg GenericConfig) (Client, error) {
	key := cfg.Transport + "://" + cfg.Address + "?codec=" + cfg.Codec

	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[key]; ok {
		return c, nil
	}
	c, err := Dial(ctx, cfg.Address, WithTransport(cfg.Transport), WithCodec(cfg.codec()))
	if err != nil {
		return nil, err
	}
	g.clients[key] = c
	return c, nil
}

// Close closes every client the targeter dialled.
func (g *GenericTargeter) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var result *multierror.Error
	for key, c := range g.clients {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		delete(g.clients, key)
	}
	return result.ErrorOrNil()
}

// GenericTargeterStrategy returns the StrategyFactory that intercepts
// Targeter components with a GenericTargeter.
func GenericTargeterStrategy(opts ...TargeterOption) StrategyFactory {
	return func(component any, env Environment, repo MetadataRepository) (Invoker, error) {
		delegate, ok := component.(Targeter)
		if !ok {
			return nil, fmt.Errorf("rpcproxy: %T does not implement Targeter", component)
		}
		return NewGenericTargeter(delegate, env, repo, opts...), nil
	}
}

// NewTargeterInstaller returns the installer that intercepts every
// Targeter registered with a Container.
func NewTargeterInstaller(env Environment, repo MetadataRepository, opts ...TargeterOption) *ContractProxyInstaller {
	return NewContractProxyInstaller(TargeterContract, env, repo, GenericTargeterStrategy(opts...))
}
