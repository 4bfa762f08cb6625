// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gorillarpc "github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"

	"github.com/luxfi/rpcproxy/log"
)

const (
	maxRetries    = 3
	retryBaseWait = 500 * time.Millisecond
)

// JSONGenericEndpoint is the JSON-RPC method a JSONEndpoint serves.
const JSONGenericEndpoint = "Generic.Invoke"

var errRawUnsupported = errors.New("json transport: raw calls are not supported")

func init() {
	registerTransport(TransportJSON, dialJSON, nil)
}

// newHTTPClient creates a fresh HTTP client with disabled connection reuse.
// This avoids EOF errors that can occur with connection pooling in complex
// process hierarchies.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DisableKeepAlives: true,
		},
	}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// isRetryableError checks if an error is transient and worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe")
}

// SendJSONRequest sends a JSON-RPC 2.0 request for method to uri and
// decodes the result into reply. A JSON-RPC error response is returned as
// *json2.Error.
func SendJSONRequest(
	ctx context.Context,
	uri *url.URL,
	method string,
	params interface{},
	reply interface{},
	options ...Option,
) error {
	log.Debugf("json: request method=%s uri=%s", method, uri)
	requestBodyBytes, err := json2.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}

	ops := NewOptions(options)
	uri.RawQuery = ops.queryParams.Encode()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			waitTime := retryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
		}

		// The body buffer is consumed by each attempt.
		request, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			uri.String(),
			bytes.NewBuffer(requestBodyBytes),
		)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		request.Header = ops.headers.Clone()
		request.Header.Set("Content-Type", "application/json")

		resp, err := newHTTPClient().Do(request)
		if err != nil {
			lastErr = err
			if isRetryableError(err) {
				log.Warnf("json: %s attempt %d failed: %v", method, attempt+1, err)
				continue
			}
			return fmt.Errorf("failed to issue request: %w", err)
		}
		if attempt > 0 {
			log.Infof("json: %s succeeded on attempt %d", method, attempt+1)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			CleanlyCloseBody(resp.Body)
			return fmt.Errorf("received status code: %d", resp.StatusCode)
		}

		err = json2.DecodeClientResponse(resp.Body, reply)
		CleanlyCloseBody(resp.Body)
		var rpcErr *json2.Error
		if errors.As(err, &rpcErr) {
			return rpcErr
		}
		if err != nil {
			return fmt.Errorf("failed to decode client response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("failed to issue request after %d retries: %w", maxRetries, lastErr)
}

// dialJSON creates a JSON-RPC client for an http(s) URL.
func dialJSON(_ context.Context, addr string, o *dialOptions) (Client, error) {
	uri, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("json dial: %w", err)
	}
	if uri.Scheme != "http" && uri.Scheme != "https" {
		return nil, fmt.Errorf("json dial: %q is not an http(s) URL", addr)
	}
	return &jsonClient{uri: uri, options: o.options}, nil
}

// jsonClient implements Client over JSON-RPC 2.0. It always speaks JSON.
type jsonClient struct {
	uri     *url.URL
	options []Option
}

func (c *jsonClient) Call(ctx context.Context, method string, args, reply interface{}) error {
	uri := *c.uri
	return SendJSONRequest(ctx, &uri, method, args, reply, c.options...)
}

func (c *jsonClient) CallRaw(context.Context, string, []byte) ([]byte, error) {
	return nil, errRawUnsupported
}

func (c *jsonClient) Notify(ctx context.Context, method string, args interface{}) error {
	var discard json.RawMessage
	return c.Call(ctx, method, args, &discard)
}

func (c *jsonClient) Close() error {
	return nil
}

// JSONEndpoint serves GenericRequests as the JSON-RPC method
// Generic.Invoke on a gorilla rpc server.
type JSONEndpoint struct {
	services GenericServices
}

// NewJSONEndpoint returns an endpoint for services.
func NewJSONEndpoint(services GenericServices) *JSONEndpoint {
	return &JSONEndpoint{services: services}
}

// Invoke is the Generic.Invoke JSON-RPC method.
func (e *JSONEndpoint) Invoke(r *http.Request, req *GenericRequest, reply *interface{}) error {
	res, err := e.services.handle(r.Context(), req)
	if err != nil {
		return err
	}
	*reply = res
	return nil
}

// NewJSONServer returns a JSON-RPC 2.0 HTTP handler serving services at
// Generic.Invoke.
func NewJSONServer(services GenericServices) (*gorillarpc.Server, error) {
	s := gorillarpc.NewServer()
	s.RegisterCodec(json2.NewCodec(), "application/json")
	if err := s.RegisterService(NewJSONEndpoint(services), "Generic"); err != nil {
		return nil, err
	}
	return s, nil
}
