// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinaryCodecPassesBytes(t *testing.T) {
	require := require.New(t)

	raw := []byte(`{"id":"42"}`)
	b, err := Binary.Encode(raw)
	require.NoError(err)
	require.Equal(raw, b)

	b, err = Binary.Encode(&raw)
	require.NoError(err)
	require.Equal(raw, b)

	b, err = Binary.Encode(User{ID: "42"})
	require.NoError(err)
	require.JSONEq(`{"id":"42","name":""}`, string(b))

	var out []byte
	require.NoError(Binary.Decode(raw, &out))
	require.Equal(raw, out)

	var user User
	require.NoError(Binary.Decode(raw, &user))
	require.Equal("42", user.ID)
}

func TestBinaryCodecOverZAP(t *testing.T) {
	require := require.New(t)

	server := startServer(t, func(s Server) {
		require.NoError(s.RegisterRaw("echo", func(_ context.Context, payload []byte) ([]byte, error) {
			return payload, nil
		}))
	})
	client := dialServer(t, server, WithCodec(Binary))

	// Pre-encoded payloads travel untouched.
	var reply []byte
	require.NoError(client.Call(context.Background(), "echo", []byte{0x00, 0xff}, &reply))
	require.Equal([]byte{0x00, 0xff}, reply)
}

func TestMsgpackCodec(t *testing.T) {
	require := require.New(t)

	req := &GenericRequest{
		ID:             "1",
		Service:        "users",
		Method:         "queryUser",
		ParameterTypes: []string{"java.lang.String"},
		Args:           []any{"42"},
	}
	b, err := Msgpack.Encode(req)
	require.NoError(err)

	var got GenericRequest
	require.NoError(Msgpack.Decode(b, &got))
	require.Equal(*req, got)

	var generic any
	require.NoError(Msgpack.Decode(b, &generic))
	require.IsType(map[string]any{}, generic)
}
