package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"storefront-bff/internal/config"
	"storefront-bff/internal/graphql"
	"storefront-bff/internal/models"
	"storefront-bff/internal/resilience"
)

var ErrNotFound = errors.New("not found")

const (
	retryAttempts = 3
	retryDelay    = 500 * time.Millisecond
)

type PlaceOrderInput struct {
	UserID          string             `json:"-"`
	RestaurantID    string             `json:"restaurantId"`
	Items           []models.OrderItem `json:"items"`
	DeliveryAddress string             `json:"deliveryAddress,omitempty"`
}

// ServiceClient is the gateway's view of the backend: GraphQL for the
// storefront data and the REST recommendation service.
type ServiceClient struct {
	gql               *graphql.Client
	client            *http.Client
	recommendationURL string
	recommendationCB  *resilience.CircuitBreaker
}

func NewServiceClient(cfg *config.Config, gql *graphql.Client) *ServiceClient {
	return &ServiceClient{
		gql: gql,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		recommendationURL: cfg.RecommendationServiceURL,
		recommendationCB:  resilience.NewCircuitBreaker("recommendations", 3, 10*time.Second),
	}
}

// query runs a read with retries. GraphQL-level errors and 4xx responses
// are not retried.
func (s *ServiceClient) query(ctx context.Context, query string, vars map[string]any, out any) error {
	return resilience.Retry(ctx, retryAttempts, retryDelay, func() error {
		err := s.gql.Do(ctx, graphql.Request{Query: query, Variables: vars}, out)
		if err == nil {
			return nil
		}
		var rerr *graphql.ResponseError
		var serr *graphql.StatusError
		switch {
		case errors.As(err, &rerr), errors.Is(err, graphql.ErrNoData):
			return resilience.Permanent(err)
		case errors.As(err, &serr) && serr.StatusCode < 500:
			return resilience.Permanent(err)
		}
		return err
	})
}

func (s *ServiceClient) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var data struct {
		User *models.User `json:"user"`
	}
	if err := s.query(ctx, queryUser, map[string]any{"id": userID}, &data); err != nil {
		return nil, err
	}
	if data.User == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return data.User, nil
}

func (s *ServiceClient) GetRestaurants(ctx context.Context) ([]models.Restaurant, error) {
	var data struct {
		Restaurants []models.Restaurant `json:"restaurants"`
	}
	if err := s.query(ctx, queryRestaurants, nil, &data); err != nil {
		return nil, err
	}
	return data.Restaurants, nil
}

func (s *ServiceClient) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	var data struct {
		Restaurant *models.Restaurant `json:"restaurant"`
	}
	if err := s.query(ctx, queryRestaurant, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.Restaurant == nil {
		return nil, fmt.Errorf("restaurant %s: %w", id, ErrNotFound)
	}
	return data.Restaurant, nil
}

func (s *ServiceClient) GetMenu(ctx context.Context, restaurantID string) ([]models.MenuItem, error) {
	var data struct {
		MenuItems []models.MenuItem `json:"menuItems"`
	}
	if err := s.query(ctx, queryMenu, map[string]any{"restaurantId": restaurantID}, &data); err != nil {
		return nil, err
	}
	return data.MenuItems, nil
}

func (s *ServiceClient) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	var data struct {
		MenuItem *models.MenuItem `json:"menuItem"`
	}
	if err := s.query(ctx, queryMenuItem, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.MenuItem == nil {
		return nil, fmt.Errorf("menu item %s: %w", id, ErrNotFound)
	}
	return data.MenuItem, nil
}

func (s *ServiceClient) GetOrders(ctx context.Context, userID string) ([]models.Order, error) {
	var data struct {
		Orders []models.Order `json:"orders"`
	}
	if err := s.query(ctx, queryOrders, map[string]any{"userId": userID}, &data); err != nil {
		return nil, err
	}
	return data.Orders, nil
}

func (s *ServiceClient) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var data struct {
		Order *models.Order `json:"order"`
	}
	if err := s.query(ctx, queryOrder, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.Order == nil {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return data.Order, nil
}

// PlaceOrder submits the order once; a fresh idempotency key lets the
// backend drop duplicates if the client resubmits after a lost response.
func (s *ServiceClient) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*models.Order, error) {
	items := make([]map[string]any, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, map[string]any{"menuItemId": it.MenuItemID, "quantity": it.Quantity})
	}
	input := map[string]any{
		"userId":           in.UserID,
		"restaurantId":     in.RestaurantID,
		"items":            items,
		"clientMutationId": uuid.NewString(),
	}
	if in.DeliveryAddress != "" {
		input["deliveryAddress"] = in.DeliveryAddress
	}

	var data struct {
		PlaceOrder *models.Order `json:"placeOrder"`
	}
	req := graphql.Request{Query: mutationPlaceOrder, Variables: map[string]any{"input": input}}
	if err := s.gql.Do(ctx, req, &data); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if data.PlaceOrder == nil {
		return nil, fmt.Errorf("place order: %w", graphql.ErrNoData)
	}
	return data.PlaceOrder, nil
}

// WatchOrder subscribes to updates for orderID and calls fn for each one
// until the stream ends, fn returns an error, or ctx is done.
func (s *ServiceClient) WatchOrder(ctx context.Context, orderID string, fn func(models.Order) error) error {
	sub, err := s.gql.Subscribe(ctx, graphql.Request{
		Query:     subscriptionOrderUpdated,
		Variables: map[string]any{"id": orderID},
	})
	if err != nil {
		return err
	}
	defer sub.Close()

	for ev := range sub.Events() {
		if ev.Err != nil {
			return ev.Err
		}
		var data struct {
			OrderUpdated *models.Order `json:"orderUpdated"`
		}
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return fmt.Errorf("decode order update: %w", err)
		}
		if data.OrderUpdated == nil {
			continue
		}
		if err := fn(*data.OrderUpdated); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *ServiceClient) fetchJSON(ctx context.Context, url string, target any) error {
	return resilience.Retry(ctx, retryAttempts, retryDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return resilience.Permanent(err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error: %d", resp.StatusCode)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return resilience.Permanent(fmt.Errorf("bad status code: %d", resp.StatusCode))
		}

		return json.NewDecoder(resp.Body).Decode(target)
	})
}

// GetRecommendations asks the optional recommendation service. With no
// service configured the list is empty.
func (s *ServiceClient) GetRecommendations(ctx context.Context, userID string) ([]models.Restaurant, error) {
	if s.recommendationURL == "" {
		return []models.Restaurant{}, nil
	}
	url := fmt.Sprintf("%s/recommendations/%s", s.recommendationURL, userID)

	result, err := s.recommendationCB.Execute(func() (any, error) {
		var recs []models.Restaurant
		if err := s.fetchJSON(ctx, url, &recs); err != nil {
			return nil, err
		}
		return recs, nil
	})

	if err != nil {
		return nil, err
	}

	return result.([]models.Restaurant), nil
}
