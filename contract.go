// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Contract is a named interface whose implementations may be intercepted.
// Wrap builds a value implementing Type whose every method delegates to the
// given invoker; Go cannot synthesize such a type at run time, so each
// contract supplies its own decorator.
type Contract struct {
	Name string
	Type reflect.Type
	Wrap func(h Invoker) any
}

// Methods returns the identity of every contract method keyed by name.
func (c Contract) Methods() (map[string]MethodIdentity, error) {
	return MethodsOf(c.Type)
}

var (
	contractsMu sync.RWMutex
	contracts   = map[string]Contract{}
)

// RegisterContract makes a contract resolvable by name. Optional
// integrations call it from init, so a contract whose integration is not
// linked in is simply absent.
func RegisterContract(c Contract) error {
	if c.Name == "" || c.Wrap == nil {
		return fmt.Errorf("rpcproxy: contract %q needs a name and a wrapper", c.Name)
	}
	if c.Type == nil || c.Type.Kind() != reflect.Interface {
		return fmt.Errorf("%w: contract %q", ErrNotInterface, c.Name)
	}

	contractsMu.Lock()
	defer contractsMu.Unlock()
	if _, ok := contracts[c.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateContract, c.Name)
	}
	contracts[c.Name] = c
	return nil
}

// LookupContract resolves a contract by name.
func LookupContract(name string) (Contract, bool) {
	contractsMu.RLock()
	defer contractsMu.RUnlock()
	c, ok := contracts[name]
	return c, ok
}

// AvailableContracts returns the names of all registered contracts.
func AvailableContracts() []string {
	contractsMu.RLock()
	defer contractsMu.RUnlock()
	names := make([]string, 0, len(contracts))
	for name := range contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unregisterContract(name string) {
	contractsMu.Lock()
	defer contractsMu.Unlock()
	delete(contracts, name)
}
