package domain

import (
	"strings"
	"time"
)

// GuestUserID marks orders placed without a signed-in account.
const GuestUserID = "guest"

// OrderStatus tracks fulfilment. Checkout only ever writes OrderStatusPending;
// later transitions belong to order management.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus normalises a stored status, treating unknown values as pending.
func ParseOrderStatus(raw string) OrderStatus {
	switch status := OrderStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return status
	default:
		return OrderStatusPending
	}
}

// CustomerInfo is the checkout form. It lives only as long as the checkout session.
type CustomerInfo struct {
	Name    string
	Email   string
	Phone   string
	Address string
	Notes   string
}

// OrderItem is an immutable copy of a cart line taken at submit time.
type OrderItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	Price       int64
}

// Order is written exactly once per successful checkout.
type Order struct {
	ID          string
	OrderCode   string
	UserID      string
	Customer    CustomerInfo
	Items       []OrderItem
	TotalAmount int64
	Status      OrderStatus
	CreatedAt   time.Time
}

// ItemCount returns the number of units across all items.
func (o Order) ItemCount() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}
