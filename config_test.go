// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadGenericConfigDefaults(t *testing.T) {
	require := require.New(t)

	cfg, err := LoadGenericConfig(MapEnvironment{})
	require.NoError(err)
	require.Equal(DefaultGenericConfig(), cfg)
	require.False(cfg.Enabled)
	require.Equal(TransportZAP, cfg.Transport)
	require.Equal(DefaultGenericEndpoint, cfg.Endpoint)
	require.Equal(defaultCodec, cfg.codec())

	cfg, err = LoadGenericConfig(nil)
	require.NoError(err)
	require.Equal(DefaultGenericConfig(), cfg)
}

func TestLoadGenericConfig(t *testing.T) {
	require := require.New(t)

	cfg, err := LoadGenericConfig(MapEnvironment{
		"rpcproxy.generic.enabled":   "true",
		"rpcproxy.generic.address":   "10.0.0.5:9000",
		"rpcproxy.generic.codec":     "msgpack",
		"rpcproxy.generic.endpoint":  "users.$invoke",
		"rpcproxy.generic.unrelated": "ignored",
		"rpcproxy.other":             "ignored",
	})
	require.NoError(err)
	require.Equal(GenericConfig{
		Enabled:   true,
		Transport: TransportZAP,
		Address:   "10.0.0.5:9000",
		Endpoint:  "users.$invoke",
		Codec:     "msgpack",
	}, cfg)
	require.Equal(Msgpack, cfg.codec())
}

func TestLoadGenericConfigJSONEndpoint(t *testing.T) {
	require := require.New(t)

	cfg, err := LoadGenericConfig(MapEnvironment{
		"rpcproxy.generic.enabled":   "true",
		"rpcproxy.generic.transport": "json",
		"rpcproxy.generic.address":   "http://localhost:8080/rpc",
	})
	require.NoError(err)
	require.Equal(JSONGenericEndpoint, cfg.Endpoint)
}

func TestLoadGenericConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  MapEnvironment
	}{
		{
			name: "enabled without address",
			env:  MapEnvironment{"rpcproxy.generic.enabled": "true"},
		},
		{
			name: "unknown transport",
			env:  MapEnvironment{"rpcproxy.generic.transport": "smoke-signals"},
		},
		{
			name: "unknown codec",
			env:  MapEnvironment{"rpcproxy.generic.codec": "xml"},
		},
		{
			name: "malformed bool",
			env:  MapEnvironment{"rpcproxy.generic.enabled": "sometimes"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadGenericConfig(tt.env)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestOSEnvironment(t *testing.T) {
	require := require.New(t)

	t.Setenv("RPCPROXY_GENERIC_ENABLED", "true")
	t.Setenv("RPCPROXY_GENERIC_ADDRESS", "127.0.0.1:9000")
	t.Setenv("RPCPROXY_GENERIC_CODEC", "msgpack")

	v, ok := DefaultOSEnvironment.Lookup("rpcproxy.generic.address")
	require.True(ok)
	require.Equal("127.0.0.1:9000", v)

	_, ok = DefaultOSEnvironment.Lookup("path")
	require.False(ok)

	require.Subset(DefaultOSEnvironment.Keys(), []string{
		"rpcproxy.generic.address",
		"rpcproxy.generic.codec",
		"rpcproxy.generic.enabled",
	})

	cfg, err := LoadGenericConfig(DefaultOSEnvironment)
	require.NoError(err)
	require.True(cfg.Enabled)
	require.Equal("127.0.0.1:9000", cfg.Address)
	require.Equal("msgpack", cfg.Codec)
}

func TestMapEnvironment(t *testing.T) {
	require := require.New(t)

	env := MapEnvironment{"b.x": "2", "a.y": "1", "b.y": "3"}
	require.Equal([]string{"a.y", "b.x", "b.y"}, env.Keys())
	require.Equal(map[string][]string{"x": {"2"}, "y": {"3"}}, properties(env, "b."))
}
