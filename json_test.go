// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/stretchr/testify/require"
)

func startJSONServer(t *testing.T, services GenericServices) *httptest.Server {
	t.Helper()
	handler, err := NewJSONServer(services)
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestJSONGenericRoundTrip(t *testing.T) {
	require := require.New(t)

	provider := &userProvider{}
	ts := startJSONServer(t, GenericServices{"users": provider})

	client, err := Dial(context.Background(), ts.URL, WithTransport(TransportJSON))
	require.NoError(err)
	defer client.Close()

	g := NewGenericClient(client, "users", WithEndpoint(JSONGenericEndpoint))
	ctx := WithAttachments(context.Background(), map[string]string{"tenant": "lux"})
	res, err := g.Invoke(ctx, "queryUser", []string{"java.lang.String"}, []any{"42"})
	require.NoError(err)
	require.Equal(map[string]any{"id": "42", "name": "generic"}, res)

	calls := provider.Calls()
	require.Len(calls, 1)
	require.Equal([]string{"java.lang.String"}, calls[0].types)
	require.Equal(map[string]string{"tenant": "lux"}, provider.Attachments()[0])

	_, err = g.Invoke(context.Background(), "fail", nil, nil)
	var rpcErr *json2.Error
	require.ErrorAs(err, &rpcErr)
	require.Equal("user store offline", rpcErr.Message)

	_, err = client.CallRaw(context.Background(), JSONGenericEndpoint, nil)
	require.Error(err)
}

func TestDialJSONRejectsNonHTTP(t *testing.T) {
	_, err := Dial(context.Background(), "127.0.0.1:9000", WithTransport(TransportJSON))
	require.Error(t, err)
}

func TestSendJSONRequestOptions(t *testing.T) {
	require := require.New(t)

	var gotHeader, gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Tenant")
		gotQuery = r.URL.Query().Get("chain")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":"ok","id":1}`))
	}))
	defer ts.Close()

	uri, err := url.Parse(ts.URL)
	require.NoError(err)

	var reply string
	err = SendJSONRequest(context.Background(), uri, "Svc.Method", nil, &reply,
		WithHeader("X-Tenant", "lux"),
		WithQueryParam("chain", "C"),
	)
	require.NoError(err)
	require.Equal("ok", reply)
	require.Equal("lux", gotHeader)
	require.Equal("C", gotQuery)
}

func TestSendJSONRequestStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	uri, err := url.Parse(ts.URL)
	require.NoError(t, err)
	var reply any
	err = SendJSONRequest(context.Background(), uri, "Svc.Method", nil, &reply)
	require.ErrorContains(t, err, "503")
}

func TestIsRetryableError(t *testing.T) {
	require := require.New(t)

	require.False(isRetryableError(nil))
	require.True(isRetryableError(errors.New("read: connection reset by peer")))
	require.True(isRetryableError(errors.New("unexpected EOF")))
	require.False(isRetryableError(errors.New("no such host")))
}

type UsersEndpoint struct{}

func (UsersEndpoint) GetUser(_ *http.Request, id *string, reply *User) error {
	*reply = User{ID: *id, Name: "http"}
	return nil
}

func TestHTTPTargeter(t *testing.T) {
	require := require.New(t)

	server, err := NewJSONServer(GenericServices{})
	require.NoError(err)
	require.NoError(server.RegisterService(UsersEndpoint{}, "Users"))
	ts := httptest.NewServer(server)
	defer ts.Close()

	stub, err := NewTargetStub(context.Background(), HTTPTargeter{}, ServiceTarget{
		Name:      "Users",
		URL:       ts.URL,
		Interface: userServiceType,
	})
	require.NoError(err)

	user, err := Call[*User](context.Background(), stub, "GetUser", "42")
	require.NoError(err)
	require.Equal(&User{ID: "42", Name: "http"}, user)

	_, err = HTTPTargeter{}.Target(context.Background(), ServiceTarget{Name: "Users", URL: "localhost:80"})
	require.Error(err)
}
