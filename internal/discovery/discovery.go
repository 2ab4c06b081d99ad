// Package discovery locates a live GraphQL backend by probing an ordered list
// of local ports. The winning port is remembered in process and in a
// storage.KV so later runs try it first.
package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"storefront-bff/internal/storage"
	"storefront-bff/internal/telemetry"
)

// CacheKey is where the last live port is stored.
const CacheKey = "graphql_port"

const maxProbeBody = 64 << 10

var probeBody = []byte(`{"query":"{ __typename }"}`)

type Options struct {
	Host        string
	Path        string
	Ports       []int
	DefaultPort int
	Timeout     time.Duration
	// Cache is optional.
	Cache  storage.KV
	Client *http.Client
}

type Result struct {
	Port     int    `json:"port"`
	URL      string `json:"url"`
	Fallback bool   `json:"fallback"`
	Cached   bool   `json:"cached"`
}

type Prober struct {
	opts   Options
	client *http.Client

	mu      sync.Mutex
	current *Result
}

func New(opts Options) *Prober {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Path == "" {
		opts.Path = "/graphql"
	}
	if !strings.HasPrefix(opts.Path, "/") {
		opts.Path = "/" + opts.Path
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 1500 * time.Millisecond
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Prober{opts: opts, client: client}
}

func (p *Prober) URL(port int) string {
	return fmt.Sprintf("http://%s:%d%s", p.opts.Host, port, p.opts.Path)
}

// Discover returns the in-process result if there is one; otherwise it tries
// the cached port, then each candidate in order, and finally falls back to
// the default port. Only a port that answered is written to the cache.
func (p *Prober) Discover(ctx context.Context) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		return *p.current
	}

	res := p.discover(ctx)
	if ctx.Err() != nil {
		// Probes were cut short; the result says nothing about the backend.
		return res
	}
	p.current = &res
	return res
}

func (p *Prober) discover(ctx context.Context) Result {
	cached, haveCached := p.cachedPort(ctx)
	if haveCached {
		if p.Probe(ctx, cached) {
			slog.Info("GraphQL endpoint found", "port", cached, "source", "cache")
			return Result{Port: cached, URL: p.URL(cached), Cached: true}
		}
		if ctx.Err() == nil {
			slog.Info("Cached GraphQL port is not answering", "port", cached)
		}
	}

	for _, port := range p.opts.Ports {
		if haveCached && port == cached {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if p.Probe(ctx, port) {
			slog.Info("GraphQL endpoint found", "port", port, "source", "probe")
			p.storePort(ctx, port)
			return Result{Port: port, URL: p.URL(port)}
		}
	}

	slog.Warn("No GraphQL endpoint answered, using default", "port", p.opts.DefaultPort)
	return Result{Port: p.opts.DefaultPort, URL: p.URL(p.opts.DefaultPort), Fallback: true}
}

// Probe sends one `{ __typename }` query to port and reports whether a
// GraphQL server answered. A response carrying only errors still counts.
func (p *Prober) Probe(ctx context.Context, port int) bool {
	live := p.probe(ctx, port)
	telemetry.ProbeResult(port, live)
	return live
}

func (p *Prober) probe(ctx context.Context, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL(port), bytes.NewReader(probeBody))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Debug("Probe failed", "port", port, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Debug("Probe got bad status", "port", port, "status", resp.StatusCode)
		return false
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProbeBody)).Decode(&body); err != nil {
		slog.Debug("Probe got non-GraphQL body", "port", port, "error", err)
		return false
	}
	_, hasData := body["data"]
	_, hasErrors := body["errors"]
	return hasData || hasErrors
}

// Invalidate forgets the discovered port both in process and in the cache.
func (p *Prober) Invalidate(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = nil
	if p.opts.Cache != nil {
		if err := p.opts.Cache.Delete(ctx, CacheKey); err != nil {
			slog.Warn("Failed to clear cached GraphQL port", "error", err)
		}
	}
}

// Refresh drops any remembered port and probes again.
func (p *Prober) Refresh(ctx context.Context) Result {
	p.Invalidate(ctx)
	return p.Discover(ctx)
}

// Endpoint satisfies graphql.EndpointResolver.
func (p *Prober) Endpoint(ctx context.Context) (string, error) {
	return p.Discover(ctx).URL, nil
}

func (p *Prober) cachedPort(ctx context.Context) (int, bool) {
	if p.opts.Cache == nil {
		return 0, false
	}
	b, err := p.opts.Cache.Get(ctx, CacheKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("Failed to read cached GraphQL port", "error", err)
		}
		return 0, false
	}
	port, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || port <= 0 || port > 65535 {
		slog.Warn("Discarding unreadable cached GraphQL port", "value", string(b))
		_ = p.opts.Cache.Delete(ctx, CacheKey)
		return 0, false
	}
	return port, true
}

func (p *Prober) storePort(ctx context.Context, port int) {
	if p.opts.Cache == nil {
		return
	}
	if err := p.opts.Cache.Set(ctx, CacheKey, []byte(strconv.Itoa(port)), 0); err != nil {
		slog.Warn("Failed to cache GraphQL port", "port", port, "error", err)
	}
}

// Locator reports where the backend currently is.
type Locator interface {
	Discover(ctx context.Context) Result
}

// Static is a resolver for an explicitly configured endpoint.
type Static string

func (s Static) Discover(context.Context) Result { return Result{URL: string(s)} }

func (s Static) Endpoint(context.Context) (string, error) { return string(s), nil }

func (s Static) Invalidate(context.Context) {}
