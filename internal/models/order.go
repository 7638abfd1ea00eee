package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	StatusPaymentPending OrderStatus = "payment_pending"
	StatusPending        OrderStatus = "pending"
	StatusPaid           OrderStatus = "paid"
	StatusFailed         OrderStatus = "failed"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusReady          OrderStatus = "ready"
	StatusComplete       OrderStatus = "complete"
	StatusCancelled      OrderStatus = "cancelled"
)

var allStatuses = []OrderStatus{
	StatusPaymentPending,
	StatusPending,
	StatusPaid,
	StatusFailed,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusComplete,
	StatusCancelled,
}

// ParseOrderStatus maps both stored names ("payment_pending") and display
// names ("Payment Pending", "PREPARING") onto the canonical stored value.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	for _, s := range allStatuses {
		if string(s) == normalized {
			return s, nil
		}
	}
	return "", fmt.Errorf("unrecognized order status %q", raw)
}

// IsTerminal reports whether no further kitchen transition is expected.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusCancelled || s == StatusFailed
}

// KitchenMayProceed is true for the two equivalent entry states of the kitchen flow.
func (s OrderStatus) KitchenMayProceed() bool {
	return s == StatusPending || s == StatusPaid
}

// DisplayName is the customer-facing label.
func (s OrderStatus) DisplayName() string {
	switch s {
	case StatusPaymentPending:
		return "Payment Pending"
	case StatusPending:
		return "Pending"
	case StatusPaid:
		return "Paid"
	case StatusFailed:
		return "Payment Failed"
	case StatusConfirmed:
		return "Confirmed"
	case StatusPreparing:
		return "Preparing"
	case StatusReady:
		return "Ready"
	case StatusComplete:
		return "Complete"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

var forward = map[OrderStatus][]OrderStatus{
	StatusPaymentPending: {StatusPaid, StatusFailed},
	StatusPending:        {StatusConfirmed, StatusPreparing},
	StatusPaid:           {StatusConfirmed, StatusPreparing},
	StatusConfirmed:      {StatusPreparing},
	StatusPreparing:      {StatusReady},
	StatusReady:          {StatusComplete},
}

// CanTransition reports whether to is a forward move from "from" in the
// lifecycle graph. Cancellation is reachable from every non-terminal state.
func CanTransition(from, to OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	for _, next := range forward[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CartItem is one entry of the cart snapshot captured at order creation.
type CartItem struct {
	MenuItemID int64   `json:"id" binding:"required,gt=0"`
	Quantity   int     `json:"qty" binding:"required,gt=0"`
	UnitPrice  float64 `json:"price" binding:"gte=0"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID               string      `json:"id" bun:"id,pk"`
	RestaurantID     string      `json:"restaurant_id" bun:"restaurant_id,notnull"`
	TableID          string      `json:"table_id" bun:"table_id,notnull"`
	TrackCode        string      `json:"track_code" bun:"track_code,notnull,unique"`
	TotalAmount      float64     `json:"total_amount" bun:"total_amount,notnull"`
	Status           OrderStatus `json:"status" bun:"status,notnull"`
	EstimatedMinutes *int        `json:"estimated_minutes,omitempty" bun:"estimated_minutes"`
	Prepaid          bool        `json:"prepaid" bun:"prepaid,notnull"`
	CartSnapshot     []CartItem  `json:"cart_snapshot,omitempty" bun:"cart_snapshot,type:json,nullzero"`
	UPILink          *string     `json:"upi_link,omitempty" bun:"upi_link"`
	PaymentQR        *string     `json:"payment_qr,omitempty" bun:"payment_qr"`
	CreatedAt        time.Time   `json:"created_at" bun:"created_at,notnull"`
	StatusChangedAt  time.Time   `json:"status_changed_at" bun:"status_changed_at,notnull"`
}

type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID         string  `json:"id" bun:"id,pk"`
	OrderID    string  `json:"order_id" bun:"order_id,notnull"`
	MenuItemID int64   `json:"menu_item_id" bun:"menu_item_id,notnull"`
	Quantity   int     `json:"quantity" bun:"quantity,notnull"`
	UnitPrice  float64 `json:"unit_price" bun:"unit_price,notnull"`
}

// OrderDetail is the staff view of an order.
type OrderDetail struct {
	Order   *Order         `json:"order"`
	Items   []*OrderItem   `json:"items"`
	History []*StatusEvent `json:"history"`
}

type CreateOrderRequest struct {
	RestaurantID string     `json:"restaurant_id" binding:"required"`
	TableID      string     `json:"table_id" binding:"required"`
	Cart         []CartItem `json:"cart" binding:"required,min=1,dive"`
	Total        float64    `json:"total" binding:"gte=0"`
	Prepaid      bool       `json:"prepaid"`
}

type UpdateStatusRequest struct {
	Status           string `json:"status" binding:"required"`
	Note             string `json:"note" binding:"max=500"`
	EstimatedMinutes *int   `json:"estimated_minutes" binding:"omitempty,gte=0,lte=600"`
}

// StatusResponse is the only shape the public tracking endpoint exposes.
type StatusResponse struct {
	Status OrderStatus `json:"status"`
}
