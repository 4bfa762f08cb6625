// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// paramSep never appears in a Go type string.
const paramSep = "\x00"

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

// MethodIdentity identifies one method signature on one interface.
// It is comparable and compares structurally, so identities built
// independently for the same method are equal map keys.
type MethodIdentity struct {
	Interface string
	Method    string
	params    string
}

// NewMethodIdentity builds an identity from its parts.
func NewMethodIdentity(iface, method string, parameterTypes ...string) MethodIdentity {
	return MethodIdentity{
		Interface: iface,
		Method:    method,
		params:    strings.Join(parameterTypes, paramSep),
	}
}

// ParameterTypes returns the ordered local parameter type names.
func (m MethodIdentity) ParameterTypes() []string {
	if m.params == "" {
		return nil
	}
	return strings.Split(m.params, paramSep)
}

// IsZero reports whether m is the zero identity.
func (m MethodIdentity) IsZero() bool {
	return m == MethodIdentity{}
}

func (m MethodIdentity) String() string {
	return fmt.Sprintf("%s.%s(%s)", m.Interface, m.Method, strings.Join(m.ParameterTypes(), ", "))
}

// TypeName returns the qualified name of t ("pkg/path.Name"), or its type
// string when t is unnamed.
func TypeName(t reflect.Type) string {
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// IdentityOf returns the identity of method m declared on interface iface.
// A leading context.Context parameter is not part of the signature.
func IdentityOf(iface reflect.Type, m reflect.Method) MethodIdentity {
	return NewMethodIdentity(TypeName(iface), m.Name, signatureOf(m.Type, 0)...)
}

// signatureOf lists the parameter types of fn from index first, skipping a
// leading context.Context.
func signatureOf(fn reflect.Type, first int) []string {
	if fn.NumIn() > first && fn.In(first) == contextType {
		first++
	}
	params := make([]string, 0, fn.NumIn()-first)
	for i := first; i < fn.NumIn(); i++ {
		params = append(params, fn.In(i).String())
	}
	return params
}

// InterfaceOf returns the interface type pointed to by ptr, as in
// InterfaceOf((*UserService)(nil)).
func InterfaceOf(ptr any) (reflect.Type, error) {
	t := reflect.TypeOf(ptr)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Interface {
		return nil, fmt.Errorf("%w: %v", ErrNotInterface, t)
	}
	return t.Elem(), nil
}

// MethodsOf returns the identity of every method of iface keyed by method
// name. Go interfaces have no overloading, so names are unique.
func MethodsOf(iface reflect.Type) (map[string]MethodIdentity, error) {
	if iface == nil || iface.Kind() != reflect.Interface {
		return nil, fmt.Errorf("%w: %v", ErrNotInterface, iface)
	}
	methods := make(map[string]MethodIdentity, iface.NumMethod())
	for i := 0; i < iface.NumMethod(); i++ {
		m := iface.Method(i)
		methods[m.Name] = IdentityOf(iface, m)
	}
	return methods, nil
}
