package fieldio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Transport carries encoded discovery and poll requests to a server. It is
// only a pipe: at-least-once delivery is enough because polls are
// idempotent.
type Transport interface {
	Topology(ctx context.Context) ([]byte, error)
	Poll(ctx context.Context, req []byte) ([]byte, error)
}

// LocalTransport calls a Server in the same process, still going through the
// wire encoding.
type LocalTransport struct {
	Server *Server
}

// Topology implements Transport.
func (t LocalTransport) Topology(ctx context.Context) ([]byte, error) {
	return t.Server.HandleTopology(ctx)
}

// Poll implements Transport.
func (t LocalTransport) Poll(ctx context.Context, req []byte) ([]byte, error) {
	return t.Server.HandlePoll(ctx, req)
}

// HTTP endpoints served by the API.
const (
	TopologyPath = "/api/v1/fields/topology"
	PollPath     = "/api/v1/fields/poll"
)

// maxResponseBytes bounds a response body read into memory.
const maxResponseBytes = 16 << 20

// HTTPTransport talks to the core's REST API.
type HTTPTransport struct {
	// BaseURL is the server root, e.g. "http://core.local:8080".
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	// Client defaults to a client with a 10 second timeout.
	Client *http.Client
}

var defaultHTTPClient = &http.Client{Timeout: 10 * time.Second}

// Topology implements Transport.
func (t *HTTPTransport) Topology(ctx context.Context) ([]byte, error) {
	return t.do(ctx, http.MethodGet, TopologyPath, nil)
}

// Poll implements Transport. A 409 Conflict from the server maps to
// ErrDriverListStale.
func (t *HTTPTransport) Poll(ctx context.Context, req []byte) ([]byte, error) {
	return t.do(ctx, http.MethodPost, PollPath, req)
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := strings.TrimRight(t.BaseURL, "/") + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", ContentType)
	if body != nil {
		req.Header.Set("Content-Type", ContentType)
	}
	if t.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.Token)
	}

	client := t.Client
	if client == nil {
		client = defaultHTTPClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return data, nil
	case http.StatusConflict:
		return nil, ErrDriverListStale
	default:
		msg := strings.TrimSpace(string(data))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("%w: %s %s: status %d: %s", ErrTransport, method, path, resp.StatusCode, msg)
	}
}
