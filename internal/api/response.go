package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"storefront-bff/internal/cart"
	"storefront-bff/internal/graphql"
	"storefront-bff/internal/resilience"
	"storefront-bff/internal/services"
	"storefront-bff/internal/storage"
)

const (
	headerContentType   = "Content-Type"
	contentTypeJSONUTF8 = "application/json; charset=utf-8"
)

// AppHandler is a handler that reports failure by returning an error.
type AppHandler func(w http.ResponseWriter, r *http.Request) error

// MakeHandler adapts an AppHandler, turning a returned error into a JSON
// error response.
func MakeHandler(handler AppHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := handler(w, r)
		if err == nil {
			return
		}

		httpErr := classify(err)
		level := slog.LevelWarn
		if httpErr.Code >= 500 {
			level = slog.LevelError
		}
		slog.Log(r.Context(), level, "Request failed",
			"code", httpErr.Code,
			"msg", httpErr.Message,
			"error", err,
			"path", r.URL.Path,
			"method", r.Method,
		)

		RespondWithJSON(w, httpErr.Code, map[string]string{"error": httpErr.Message})
	}
}

// classify maps domain errors onto HTTP statuses.
func classify(err error) *HTTPError {
	var (
		httpErr *HTTPError
		gqlErr  *graphql.ResponseError
	)
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, services.ErrNotFound):
		return NewHTTPErrorWrap(http.StatusNotFound, msgNotFound, err)
	case errors.Is(err, cart.ErrInvalidQuantity):
		return NewHTTPErrorWrap(http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, cart.ErrItemNotInCart):
		return NewHTTPErrorWrap(http.StatusNotFound, err.Error(), err)
	case errors.Is(err, cart.ErrEmptyCart), errors.Is(err, cart.ErrItemUnavailable):
		return NewHTTPErrorWrap(http.StatusConflict, err.Error(), err)
	case errors.Is(err, resilience.ErrCircuitOpen):
		return NewHTTPErrorWrap(http.StatusServiceUnavailable, "Service temporarily unavailable", err)
	case errors.As(err, &gqlErr):
		return NewHTTPErrorWrap(http.StatusBadGateway, gqlErr.Error(), err)
	}
	return NewHTTPErrorWrap(http.StatusInternalServerError, msgInternalServer, err)
}

func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		w.Header().Set(headerContentType, contentTypeJSONUTF8)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal Server Error"}`))
		return
	}

	respondRaw(w, status, response)
}

func respondRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set(headerContentType, contentTypeJSONUTF8)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return ErrBadRequest("Invalid request payload: " + err.Error())
	}
	return nil
}
