package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storefront-bff/internal/models"
	"storefront-bff/internal/services"
	"storefront-bff/internal/storage"
)

// Catalog resolves menu items and restaurants for the cart.
type Catalog interface {
	GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error)
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, in services.PlaceOrderInput) (*models.Order, error)
}

// Service keeps one cart per user in a storage.KV and writes it back after
// every mutation.
type Service struct {
	kv      storage.KV
	ttl     time.Duration
	catalog Catalog
	orders  OrderPlacer
	now     func() time.Time

	locks sync.Map // userID -> *sync.Mutex
}

func NewService(kv storage.KV, ttl time.Duration, catalog Catalog, orders OrderPlacer) *Service {
	return &Service{
		kv:      kv,
		ttl:     ttl,
		catalog: catalog,
		orders:  orders,
		now:     time.Now,
	}
}

func key(userID string) string { return "cart:" + userID }

func (s *Service) lock(userID string) func() {
	m, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Get returns the stored cart. Anything unreadable comes back as an empty
// cart.
func (s *Service) Get(ctx context.Context, userID string) *Cart {
	c := New()
	err := storage.GetJSON(ctx, s.kv, key(userID), c)
	switch {
	case err == nil:
		c.normalize()
		return c
	case errors.Is(err, storage.ErrNotFound):
	default:
		slog.Warn("Cart unreadable, starting empty", "user_id", userID, "error", err)
	}
	return New()
}

func (s *Service) save(ctx context.Context, userID string, c *Cart) error {
	if c.Empty() {
		if err := s.kv.Delete(ctx, key(userID)); err != nil {
			return fmt.Errorf("delete cart: %w", err)
		}
		return nil
	}
	c.UpdatedAt = s.now().UTC()
	if err := storage.SetJSON(ctx, s.kv, key(userID), c, s.ttl); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, userID string, fn func(c *Cart) error) (*Cart, error) {
	unlock := s.lock(userID)
	defer unlock()

	c := s.Get(ctx, userID)
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.save(ctx, userID, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddItem looks itemID up in the catalog and adds qty of it.
func (s *Service) AddItem(ctx context.Context, userID, itemID string, qty int) (*Cart, error) {
	if qty <= 0 || qty > MaxQuantity {
		return nil, ErrInvalidQuantity
	}
	item, err := s.catalog.GetMenuItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("look up menu item: %w", err)
	}
	if !item.Available {
		return nil, ErrItemUnavailable
	}

	return s.mutate(ctx, userID, func(c *Cart) error {
		before := c.RestaurantID
		switched, err := c.Add(*item, qty)
		if err != nil {
			return err
		}
		if switched {
			slog.Info("Cart switched restaurant", "user_id", userID, "from", before, "to", item.RestaurantID)
		}
		if c.RestaurantName == "" {
			if r, err := s.catalog.GetRestaurant(ctx, item.RestaurantID); err == nil {
				c.RestaurantName = r.Name
			} else {
				slog.Debug("Restaurant name lookup failed", "restaurant_id", item.RestaurantID, "error", err)
			}
		}
		return nil
	})
}

func (s *Service) UpdateQuantity(ctx context.Context, userID, itemID string, qty int) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.SetQuantity(itemID, qty)
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		if !c.Remove(itemID) {
			return ErrItemNotInCart
		}
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	_, err := s.mutate(ctx, userID, func(c *Cart) error {
		c.Clear()
		return nil
	})
	return err
}

// Checkout places an order for the cart's contents and empties the cart once
// the backend has accepted it.
func (s *Service) Checkout(ctx context.Context, userID, deliveryAddress string) (*models.Order, error) {
	unlock := s.lock(userID)
	defer unlock()

	c := s.Get(ctx, userID)
	if c.Empty() {
		return nil, ErrEmptyCart
	}

	order, err := s.orders.PlaceOrder(ctx, services.PlaceOrderInput{
		UserID:          userID,
		RestaurantID:    c.RestaurantID,
		Items:           c.OrderItems(),
		DeliveryAddress: deliveryAddress,
	})
	if err != nil {
		return nil, err
	}

	c.Clear()
	if err := s.save(ctx, userID, c); err != nil {
		slog.Error("Order placed but cart not cleared", "user_id", userID, "order_id", order.ID, "error", err)
	}
	slog.Info("Order placed", "user_id", userID, "order_id", order.ID, "restaurant_id", order.RestaurantID)
	return order, nil
}
