package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"storefront-bff/internal/auth"
	"storefront-bff/internal/cart"
	"storefront-bff/internal/discovery"
	"storefront-bff/internal/graphql"
	"storefront-bff/internal/models"
	"storefront-bff/internal/storage"
)

const profileTTL = 30 * time.Second

// Backend is the part of services.ServiceClient the handlers use.
type Backend interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetRestaurants(ctx context.Context) ([]models.Restaurant, error)
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	GetMenu(ctx context.Context, restaurantID string) ([]models.MenuItem, error)
	GetOrders(ctx context.Context, userID string) ([]models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetRecommendations(ctx context.Context, userID string) ([]models.Restaurant, error)
}

// Cache is a KV that can also rate limit.
type Cache interface {
	storage.KV
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) bool
}

type Options struct {
	CacheTTL   time.Duration
	RateLimit  int
	RateWindow time.Duration
}

type Handler struct {
	svc     Backend
	cache   Cache
	carts   *cart.Service
	locator discovery.Locator
	opts    Options
	now     func() time.Time
}

func NewHandler(svc Backend, cache Cache, carts *cart.Service, locator discovery.Locator, opts Options) *Handler {
	return &Handler{
		svc:     svc,
		cache:   cache,
		carts:   carts,
		locator: locator,
		opts:    opts,
		now:     time.Now,
	}
}

// backendContext forwards the caller's token to the GraphQL backend.
func backendContext(r *http.Request) context.Context {
	ctx := r.Context()
	if tok := auth.Token(ctx); tok != "" {
		ctx = graphql.WithToken(ctx, tok)
	}
	return ctx
}

func requireUser(r *http.Request) (string, error) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		return "", ErrUnauthorized("")
	}
	return userID, nil
}

// cachedJSON serves key from the cache, or calls fetch and caches its JSON.
func (h *Handler) cachedJSON(ctx context.Context, key string, ttl time.Duration, fetch func() (any, error)) ([]byte, error) {
	if data, err := h.cache.Get(ctx, key); err == nil {
		slog.Debug("Cache HIT", "key", key)
		return data, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		slog.Warn("Cache read failed", "key", key, "error", err)
	}

	v, err := fetch()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := h.cache.Set(ctx, key, data, ttl); err != nil {
		slog.Warn("Cache write failed", "key", key, "error", err)
	}
	return data, nil
}

// clientIP accepts both host:port and the bare address middleware.RealIP
// leaves behind.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// HandleGetProfile aggregates everything the storefront home page needs.
// Only the user lookup is required; the other parts degrade to empty lists.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) error {
	id, err := requireUser(r)
	if err != nil {
		return err
	}

	ip := clientIP(r)
	if h.cache.IsRateLimited(r.Context(), ip, h.opts.RateLimit, h.opts.RateWindow) {
		slog.Warn("Rate limit exceeded", "ip", ip)
		return ErrTooManyRequests()
	}

	ctx := backendContext(r)
	start := h.now()
	cacheKey := fmt.Sprintf("profile:%s", id)

	data, err := h.cachedJSON(ctx, cacheKey, profileTTL, func() (any, error) {
		user, err := h.svc.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}

		var (
			g               errgroup.Group
			orders          []models.Order
			restaurants     []models.Restaurant
			recommendations []models.Restaurant
		)

		g.Go(func() error {
			res, err := h.svc.GetOrders(ctx, id)
			if err != nil {
				slog.Error("Orders fetch error", "user_id", id, "error", err)
				res = []models.Order{}
			}
			orders = res
			return nil
		})

		g.Go(func() error {
			res, err := h.svc.GetRestaurants(ctx)
			if err != nil {
				slog.Error("Restaurants error", "error", err)
				res = []models.Restaurant{}
			}
			restaurants = res
			return nil
		})

		g.Go(func() error {
			res, err := h.svc.GetRecommendations(ctx, id)
			if err != nil {
				slog.Warn("Recommendations fallback", "user_id", id, "error", err)
				res = []models.Restaurant{}
			}
			recommendations = res
			return nil
		})

		_ = g.Wait()

		return models.ProfileResponse{
			User:            user,
			Orders:          nonNil(orders),
			Restaurants:     nonNil(restaurants),
			Recommendations: nonNil(recommendations),
		}, nil
	})
	if err != nil {
		return err
	}

	slog.Info("Request processed", "user_id", id, "duration", time.Since(start))
	respondRaw(w, http.StatusOK, data)
	return nil
}

func (h *Handler) HandleGetRestaurants(w http.ResponseWriter, r *http.Request) error {
	ctx := backendContext(r)
	data, err := h.cachedJSON(ctx, "restaurants", h.opts.CacheTTL, func() (any, error) {
		rs, err := h.svc.GetRestaurants(ctx)
		return nonNil(rs), err
	})
	if err != nil {
		return err
	}
	respondRaw(w, http.StatusOK, data)
	return nil
}

func (h *Handler) HandleGetRestaurant(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, paramID)
	ctx := backendContext(r)
	data, err := h.cachedJSON(ctx, "restaurant:"+id, h.opts.CacheTTL, func() (any, error) {
		return h.svc.GetRestaurant(ctx, id)
	})
	if err != nil {
		return err
	}
	respondRaw(w, http.StatusOK, data)
	return nil
}

func (h *Handler) HandleGetMenu(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, paramID)
	ctx := backendContext(r)
	data, err := h.cachedJSON(ctx, "menu:"+id, h.opts.CacheTTL, func() (any, error) {
		items, err := h.svc.GetMenu(ctx, id)
		return nonNil(items), err
	})
	if err != nil {
		return err
	}
	respondRaw(w, http.StatusOK, data)
	return nil
}

func (h *Handler) HandleGetDiscovery(w http.ResponseWriter, r *http.Request) error {
	RespondWithJSON(w, http.StatusOK, h.locator.Discover(r.Context()))
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
