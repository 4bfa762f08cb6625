// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"os"
	"sort"
	"strings"
)

// Environment is a read-only view of dotted configuration properties such
// as "rpcproxy.generic.address".
type Environment interface {
	Lookup(key string) (string, bool)
	Keys() []string
}

// MapEnvironment is an Environment backed by a map.
type MapEnvironment map[string]string

func (m MapEnvironment) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapEnvironment) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// OSEnvironment exposes process environment variables as properties:
// RPCPROXY_GENERIC_ADDRESS is visible as "rpcproxy.generic.address".
// Only variables starting with Prefix are visible.
type OSEnvironment struct {
	Prefix string
}

// DefaultOSEnvironment exposes the RPCPROXY_* variables.
var DefaultOSEnvironment = OSEnvironment{Prefix: "RPCPROXY_"}

func (e OSEnvironment) Lookup(key string) (string, bool) {
	name := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if !strings.HasPrefix(name, e.Prefix) {
		return "", false
	}
	return os.LookupEnv(name)
}

func (e OSEnvironment) Keys() []string {
	var keys []string
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(name, e.Prefix) {
			continue
		}
		keys = append(keys, strings.ToLower(strings.ReplaceAll(name, "_", ".")))
	}
	sort.Strings(keys)
	return keys
}

// properties collects the values of every key under prefix, keyed by the
// remainder of the key.
func properties(env Environment, prefix string) map[string][]string {
	values := make(map[string][]string)
	for _, key := range env.Keys() {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok || rest == "" {
			continue
		}
		if v, ok := env.Lookup(key); ok {
			values[rest] = append(values[rest], v)
		}
	}
	return values
}
