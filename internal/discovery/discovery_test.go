package discovery

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-bff/internal/storage"
)

type backend struct {
	port int
	hits atomic.Int32
}

func startBackend(t *testing.T, h http.HandlerFunc) *backend {
	t.Helper()
	b := &backend{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	b.port, err = strconv.Atoi(u.Port())
	require.NoError(t, err)
	return b
}

func graphQLServer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/graphql" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"data":{"__typename":"Query"}}`))
}

func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func newTestProber(ports []int, cache storage.KV) *Prober {
	return New(Options{
		Host:        "127.0.0.1",
		Ports:       ports,
		DefaultPort: 4000,
		Timeout:     500 * time.Millisecond,
		Cache:       cache,
	})
}

func TestDiscoverFirstLivePortWins(t *testing.T) {
	ctx := context.Background()
	dead := closedPort(t)
	notFound := startBackend(t, http.NotFound)
	html := startBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>dev server</html>"))
	})
	live := startBackend(t, graphQLServer)
	later := startBackend(t, graphQLServer)

	cache := storage.NewMemory()
	p := newTestProber([]int{dead, notFound.port, html.port, live.port, later.port}, cache)

	res := p.Discover(ctx)
	assert.Equal(t, live.port, res.Port)
	assert.False(t, res.Fallback)
	assert.False(t, res.Cached)
	assert.Equal(t, "http://127.0.0.1:"+strconv.Itoa(live.port)+"/graphql", res.URL)
	assert.Zero(t, later.hits.Load())

	stored, err := cache.Get(ctx, CacheKey)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(live.port), string(stored))

	// Second call is served in process.
	assert.Equal(t, res, p.Discover(ctx))
	assert.EqualValues(t, 1, live.hits.Load())
}

func TestDiscoverTriesCachedPortFirst(t *testing.T) {
	ctx := context.Background()
	first := startBackend(t, graphQLServer)
	second := startBackend(t, graphQLServer)

	cache := storage.NewMemory()
	require.NoError(t, cache.Set(ctx, CacheKey, []byte(strconv.Itoa(second.port)), 0))

	p := newTestProber([]int{first.port, second.port}, cache)
	res := p.Discover(ctx)

	assert.Equal(t, second.port, res.Port)
	assert.True(t, res.Cached)
	assert.Zero(t, first.hits.Load())
}

func TestDiscoverStaleCacheFallsThrough(t *testing.T) {
	ctx := context.Background()
	stale := closedPort(t)
	live := startBackend(t, graphQLServer)

	cache := storage.NewMemory()
	require.NoError(t, cache.Set(ctx, CacheKey, []byte(strconv.Itoa(stale)), 0))

	p := newTestProber([]int{stale, live.port}, cache)
	res := p.Discover(ctx)
	assert.Equal(t, live.port, res.Port)

	stored, err := cache.Get(ctx, CacheKey)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(live.port), string(stored))
}

func TestDiscoverFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	cache := storage.NewMemory()
	require.NoError(t, cache.Set(ctx, CacheKey, []byte("not-a-port"), 0))

	p := newTestProber([]int{closedPort(t)}, cache)
	res := p.Discover(ctx)

	assert.True(t, res.Fallback)
	assert.Equal(t, 4000, res.Port)

	_, err := cache.Get(ctx, CacheKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProbeAcceptsErrorsOnlyBody(t *testing.T) {
	b := startBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"introspection disabled"}]}`))
	})
	p := newTestProber(nil, nil)
	assert.True(t, p.Probe(context.Background(), b.port))
}

func TestProbeTimesOut(t *testing.T) {
	release := make(chan struct{})
	slow := startBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	p := New(Options{Host: "127.0.0.1", Timeout: 50 * time.Millisecond})
	start := time.Now()
	assert.False(t, p.Probe(context.Background(), slow.port))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRefreshReprobes(t *testing.T) {
	ctx := context.Background()
	live := startBackend(t, graphQLServer)
	cache := storage.NewMemory()
	p := newTestProber([]int{live.port}, cache)

	p.Discover(ctx)
	p.Invalidate(ctx)
	_, err := cache.Get(ctx, CacheKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	res := p.Refresh(ctx)
	assert.Equal(t, live.port, res.Port)
	assert.EqualValues(t, 2, live.hits.Load())
}

func TestStaticResolver(t *testing.T) {
	s := Static("http://api.example/graphql")
	u, err := s.Endpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://api.example/graphql", u)
}

func TestDiscoverCancelledContextIsNotRemembered(t *testing.T) {
	live := startBackend(t, graphQLServer)
	cache := storage.NewMemory()
	require.NoError(t, cache.Set(context.Background(), CacheKey, []byte(strconv.Itoa(live.port)), 0))
	p := newTestProber([]int{closedPort(t), live.port}, cache)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := p.Discover(ctx)
	assert.True(t, res.Fallback)

	res = p.Discover(context.Background())
	assert.Equal(t, live.port, res.Port)
	assert.False(t, res.Fallback)
	assert.True(t, res.Cached)

	b, err := cache.Get(context.Background(), CacheKey)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(live.port), string(b))
}
