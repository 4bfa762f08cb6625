// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"fmt"
	"reflect"
	"sync"
)

// PostProcessor observes components as a host container makes them ready.
// The returned value replaces the component held by the container.
type PostProcessor interface {
	BeforeReady(component any, name string) (any, error)
	AfterReady(component any, name string) (any, error)
}

// Container is a minimal component registry that runs post processors
// once per component, in the order they were added.
type Container struct {
	mu         sync.RWMutex
	processors []PostProcessor
	components map[string]any
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{components: make(map[string]any)}
}

// Add appends a post processor.
func (c *Container) Add(p PostProcessor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processors = append(c.processors, p)
}

// Remove removes a post processor. Processors whose dynamic type is not
// comparable are never matched, so add those by pointer to remove them.
func (c *Container) Remove(p PostProcessor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removable := p != nil && reflect.TypeOf(p).Comparable()
	var processors []PostProcessor
	for _, pp := range c.processors {
		if !removable || pp != p {
			processors = append(processors, pp)
		}
	}
	c.processors = processors
}

// All returns all post processors.
func (c *Container) All() []PostProcessor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]PostProcessor(nil), c.processors...)
}

// Register makes component ready under name: every BeforeReady hook runs,
// then every AfterReady hook. The final value is stored and returned.
func (c *Container) Register(name string, component any) (any, error) {
	c.mu.RLock()
	_, exists := c.components[name]
	c.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("rpcproxy: component %q already registered", name)
	}

	processors := c.All()
	var err error
	for _, p := range processors {
		if component, err = p.BeforeReady(component, name); err != nil {
			return nil, err
		}
	}
	for _, p := range processors {
		if component, err = p.AfterReady(component, name); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.components[name]; exists {
		return nil, fmt.Errorf("rpcproxy: component %q already registered", name)
	}
	c.components[name] = component
	return component, nil
}

// Get returns the ready component registered under name.
func (c *Container) Get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.components[name]
	return v, ok
}
