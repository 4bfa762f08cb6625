// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParameterMetadata describes one remote parameter by its wire type name.
type ParameterMetadata struct {
	Index int    `json:"index" msgpack:"index" validate:"gte=0"`
	Type  string `json:"type" msgpack:"type" validate:"required"`
}

// MethodMetadata is the remote view of a method: the name the provider
// exports it under and its ordered parameters.
type MethodMetadata struct {
	Name   string              `json:"name" msgpack:"name" validate:"required"`
	Params []ParameterMetadata `json:"params" msgpack:"params" validate:"dive"`
}

// NewMethodMetadata builds metadata whose parameter positions follow the
// order of parameterTypes.
func NewMethodMetadata(name string, parameterTypes ...string) MethodMetadata {
	params := make([]ParameterMetadata, len(parameterTypes))
	for i, typ := range parameterTypes {
		params[i] = ParameterMetadata{Index: i, Type: typ}
	}
	return MethodMetadata{Name: name, Params: params}
}

// ParameterTypes projects the parameter wire types in declaration order.
func (m MethodMetadata) ParameterTypes() []string {
	types := make([]string, len(m.Params))
	for i, p := range m.Params {
		types[i] = p.Type
	}
	return types
}

// Validate checks required fields and that parameter positions are 0..n-1
// in order.
func (m MethodMetadata) Validate() error {
	var result *multierror.Error
	if err := validate.Struct(m); err != nil {
		result = multierror.Append(result, err)
	}
	for i, p := range m.Params {
		if p.Index != i {
			result = multierror.Append(result, fmt.Errorf("param %d of %q declares position %d", i, m.Name, p.Index))
		}
	}
	return result.ErrorOrNil()
}

func (m MethodMetadata) clone() MethodMetadata {
	params := make([]ParameterMetadata, len(m.Params))
	copy(params, m.Params)
	return MethodMetadata{Name: m.Name, Params: params}
}
