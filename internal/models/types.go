package models

import (
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Restaurant struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Address     string  `json:"address,omitempty"`
	Cuisine     string  `json:"cuisine,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	IsOpen      bool    `json:"isOpen"`
}

type MenuItem struct {
	ID           string  `json:"id"`
	RestaurantID string  `json:"restaurantId"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Price        float64 `json:"price"`
	Category     string  `json:"category,omitempty"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	Available    bool    `json:"available"`
}

type OrderItem struct {
	MenuItemID string  `json:"menuItemId"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
}

type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"userId"`
	RestaurantID    string      `json:"restaurantId"`
	Items           []OrderItem `json:"items"`
	Total           float64     `json:"total"`
	Status          OrderStatus `json:"status"`
	DeliveryAddress string      `json:"deliveryAddress,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

type ProfileResponse struct {
	User            *User        `json:"user"`
	Orders          []Order      `json:"orders"`
	Restaurants     []Restaurant `json:"restaurants"`
	Recommendations []Restaurant `json:"recommendations"`
}

// OrderStatus is the backend's order state. Values are upper snake case.
type OrderStatus string

const (
	StatusPending        OrderStatus = "PENDING"
	StatusConfirmed      OrderStatus = "CONFIRMED"
	StatusPreparing      OrderStatus = "PREPARING"
	StatusReady          OrderStatus = "READY"
	StatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	StatusDelivered      OrderStatus = "DELIVERED"
	StatusCancelled      OrderStatus = "CANCELLED"
)

// Lifecycle lists the statuses an order moves through, in order.
// StatusCancelled is a side exit and is not part of it.
var Lifecycle = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusOutForDelivery,
	StatusDelivered,
}

var statusLabels = map[OrderStatus]string{
	StatusPending:        "Order placed",
	StatusConfirmed:      "Confirmed by restaurant",
	StatusPreparing:      "Preparing",
	StatusReady:          "Ready for pickup",
	StatusOutForDelivery: "Out for delivery",
	StatusDelivered:      "Delivered",
	StatusCancelled:      "Cancelled",
}

// ParseOrderStatus accepts any case and "-" or " " as word separators.
func ParseOrderStatus(s string) (OrderStatus, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	st := OrderStatus(norm)
	if _, ok := statusLabels[st]; !ok {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

func (s OrderStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Index returns the position of s in Lifecycle, or -1.
func (s OrderStatus) Index() int {
	for i, st := range Lifecycle {
		if st == s {
			return i
		}
	}
	return -1
}

func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}
