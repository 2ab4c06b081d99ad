package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront-bff/internal/auth"
	"storefront-bff/internal/telemetry"
)

const (
	apiBasePath         = "/api"
	restaurantsBasePath = "/restaurants"
	cartBasePath        = "/cart"
	ordersBasePath      = "/orders"
)

const (
	paramID     = "id"
	paramItemID = "itemID"
)

// SetupRoutes builds the gateway router. Everything under /api except
// /api/discovery needs a bearer token.
func SetupRoutes(h *Handler, authMiddleware *auth.Middleware) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.Middleware)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", handleHealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route(apiBasePath, func(r chi.Router) {
		r.Get("/discovery", MakeHandler(h.HandleGetDiscovery))

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.ValidateToken)

			r.Get("/profile", MakeHandler(h.HandleGetProfile))
			configureRestaurantRoutes(r, h)
			configureCartRoutes(r, h)
			configureOrderRoutes(r, h)
		})
	})

	return r
}

func pathWithParam(basePath string, paramName string) string {
	return basePath + "/{" + paramName + "}"
}

func configureRestaurantRoutes(r chi.Router, h *Handler) {
	r.Route(restaurantsBasePath, func(r chi.Router) {
		r.Get("/", MakeHandler(h.HandleGetRestaurants))
		r.Route(pathWithParam("", paramID), func(r chi.Router) {
			r.Get("/", MakeHandler(h.HandleGetRestaurant))
			r.Get("/menu", MakeHandler(h.HandleGetMenu))
		})
	})
}

func configureCartRoutes(r chi.Router, h *Handler) {
	r.Route(cartBasePath, func(r chi.Router) {
		r.Get("/", MakeHandler(h.HandleGetCart))
		r.Delete("/", MakeHandler(h.HandleClearCart))
		r.Post("/items", MakeHandler(h.HandleAddCartItem))
		r.Patch(pathWithParam("/items", paramItemID), MakeHandler(h.HandleUpdateCartItem))
		r.Delete(pathWithParam("/items", paramItemID), MakeHandler(h.HandleRemoveCartItem))
	})
}

func configureOrderRoutes(r chi.Router, h *Handler) {
	r.Route(ordersBasePath, func(r chi.Router) {
		r.Get("/", MakeHandler(h.HandleGetOrders))
		r.Post("/", MakeHandler(h.HandleCheckout))
		r.Route(pathWithParam("", paramID), func(r chi.Router) {
			r.Get("/", MakeHandler(h.HandleGetOrder))
			r.Get("/timeline", MakeHandler(h.HandleGetOrderTimeline))
		})
	})
}

func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(headerContentType, "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
