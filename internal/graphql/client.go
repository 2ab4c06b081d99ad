// Package graphql is a small GraphQL-over-HTTP client with WebSocket
// subscriptions (graphql-transport-ws).
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNoData = errors.New("graphql response has no data")

// EndpointResolver supplies the backend URL. Invalidate is called after a
// transport failure so the next call can locate the backend again.
type EndpointResolver interface {
	Endpoint(ctx context.Context) (string, error)
	Invalidate(ctx context.Context)
}

type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

type Error struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// ResponseError carries the errors array of a response.
type ResponseError struct {
	Errors []Error
}

func (e *ResponseError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ge := range e.Errors {
		msgs = append(msgs, ge.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graphql: unexpected status %d: %s", e.StatusCode, e.Body)
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []Error         `json:"errors"`
}

type tokenKey struct{}

// WithToken attaches a bearer token that Do and Subscribe forward.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}

type Client struct {
	resolver EndpointResolver
	http     *http.Client
}

func NewClient(resolver EndpointResolver, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{resolver: resolver, http: httpClient}
}

// Do executes req and decodes the data field into out (which may be nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	endpoint, err := c.resolver.Endpoint(ctx)
	if err != nil {
		return fmt.Errorf("resolve graphql endpoint: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode graphql request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if tok := tokenFrom(ctx); tok != "" {
		httpReq.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() == nil {
			c.resolver.Invalidate(ctx)
		}
		return fmt.Errorf("graphql request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("decode graphql response: %w", err)
	}
	if len(r.Errors) > 0 {
		return &ResponseError{Errors: r.Errors}
	}
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return ErrNoData
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("decode graphql data: %w", err)
	}
	return nil
}
