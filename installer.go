// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"fmt"
	"reflect"

	"github.com/luxfi/rpcproxy/log"
)

// StrategyFactory builds the interception strategy for a component that
// implements an installer's contract.
type StrategyFactory func(component any, env Environment, repo MetadataRepository) (Invoker, error)

// ContractProxyInstaller replaces components that implement a contract
// with the contract's wrapper around an interception strategy. Components
// that do not implement it are returned as they are.
type ContractProxyInstaller struct {
	name      string
	contract  Contract
	available bool

	env      Environment
	repo     MetadataRepository
	strategy StrategyFactory
}

var _ PostProcessor = (*ContractProxyInstaller)(nil)

// NewContractProxyInstaller resolves the named contract once. When it is
// not registered the installer never matches.
func NewContractProxyInstaller(contract string, env Environment, repo MetadataRepository, strategy StrategyFactory) *ContractProxyInstaller {
	c, ok := LookupContract(contract)
	switch {
	case !ok:
		log.Infof("rpcproxy: contract %q is not available, proxies will not be installed", contract)
	case strategy == nil:
		log.Warnf("rpcproxy: contract %q has no interception strategy, proxies will not be installed", contract)
	}
	return &ContractProxyInstaller{
		name:      contract,
		contract:  c,
		available: ok && strategy != nil,
		env:       env,
		repo:      repo,
		strategy:  strategy,
	}
}

// Available reports whether the contract was resolved.
func (i *ContractProxyInstaller) Available() bool {
	return i.available
}

// BeforeReady returns component unchanged.
func (i *ContractProxyInstaller) BeforeReady(component any, name string) (any, error) {
	return component, nil
}

// AfterReady returns the contract wrapper for components implementing the
// contract and component itself otherwise.
func (i *ContractProxyInstaller) AfterReady(component any, name string) (any, error) {
	if !i.available || component == nil {
		return component, nil
	}
	if !reflect.TypeOf(component).Implements(i.contract.Type) {
		return component, nil
	}

	h, err := i.strategy(component, i.env, i.repo)
	if err != nil {
		return nil, fmt.Errorf("rpcproxy: intercepting %q as %s: %w", name, i.name, err)
	}
	proxy := i.contract.Wrap(h)
	if proxy == nil || !reflect.TypeOf(proxy).Implements(i.contract.Type) {
		return nil, fmt.Errorf("%w: %s wrapping %q", ErrContractWrap, i.name, name)
	}
	log.Debugf("rpcproxy: component %q intercepted as %s", name, i.name)
	return proxy, nil
}
