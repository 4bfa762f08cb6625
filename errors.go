// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"errors"
	"fmt"
)

var (
	ErrNilFallback       = errors.New("rpcproxy: fallback invoker is nil")
	ErrNotInterface      = errors.New("rpcproxy: type is not an interface")
	ErrUnknownMethod     = errors.New("rpcproxy: unknown method")
	ErrArgumentCount     = errors.New("rpcproxy: argument count mismatch")
	ErrInvalidMetadata   = errors.New("rpcproxy: invalid method metadata")
	ErrDuplicateContract = errors.New("rpcproxy: contract already registered")
	ErrDuplicateMethod   = errors.New("rpcproxy: method already registered")
	ErrContractWrap      = errors.New("rpcproxy: contract wrapper does not implement contract")
	ErrInvalidConfig     = errors.New("rpcproxy: invalid configuration")
	ErrResultType        = errors.New("rpcproxy: result type mismatch")
	ErrNilInvoker        = errors.New("rpcproxy: invoker is nil")
)

// ArgumentCountError reports a call whose argument count differs from the
// registered parameter metadata.
type ArgumentCountError struct {
	Method MethodIdentity
	Want   int
	Got    int
}

func (e *ArgumentCountError) Error() string {
	return fmt.Sprintf("%s: %s wants %d args, got %d", ErrArgumentCount, e.Method, e.Want, e.Got)
}

func (e *ArgumentCountError) Is(target error) bool {
	return target == ErrArgumentCount
}
