// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"fmt"
	"sync"

	"github.com/gorilla/schema"
)

// GenericConfigPrefix is the property prefix read by LoadGenericConfig.
const GenericConfigPrefix = "rpcproxy.generic."

// DefaultGenericEndpoint is the method generic requests are sent to.
const DefaultGenericEndpoint = "$invoke"

// GenericConfig selects the transport used for generic invocations.
type GenericConfig struct {
	Enabled   bool   `schema:"enabled"`
	Transport string `schema:"transport" validate:"oneof=zap grpc json"`
	Address   string `schema:"address" validate:"required_if=Enabled true"`
	Endpoint  string `schema:"endpoint" validate:"required"`
	Codec     string `schema:"codec" validate:"oneof=json msgpack"`
}

// DefaultGenericConfig returns the configuration used for unset properties.
// Generic routing is off until enabled.
func DefaultGenericConfig() GenericConfig {
	return GenericConfig{
		Transport: DefaultTransport,
		Endpoint:  DefaultGenericEndpoint,
		Codec:     "json",
	}
}

var (
	schemaOnce    sync.Once
	schemaDecoder *schema.Decoder
)

func decoder() *schema.Decoder {
	schemaOnce.Do(func() {
		schemaDecoder = schema.NewDecoder()
		schemaDecoder.IgnoreUnknownKeys(true)
	})
	return schemaDecoder
}

// LoadGenericConfig reads the rpcproxy.generic.* properties of env over
// DefaultGenericConfig and validates the result.
func LoadGenericConfig(env Environment) (GenericConfig, error) {
	cfg := DefaultGenericConfig()
	if env == nil {
		env = MapEnvironment{}
	}
	if err := decoder().Decode(&cfg, properties(env, GenericConfigPrefix)); err != nil {
		return GenericConfig{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	// JSON-RPC method names are Service.Method.
	if cfg.Transport == TransportJSON && cfg.Endpoint == DefaultGenericEndpoint {
		cfg.Endpoint = JSONGenericEndpoint
	}
	if err := validate.Struct(cfg); err != nil {
		return GenericConfig{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// codec returns the codec named by the configuration.
func (c GenericConfig) codec() Codec {
	if c.Codec == "msgpack" {
		return Msgpack
	}
	return defaultCodec
}
