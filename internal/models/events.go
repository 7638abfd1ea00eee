package models

import (
	"time"

	"github.com/uptrace/bun"
)

// StatusEvent is an append-only audit row, one per status write.
type StatusEvent struct {
	bun.BaseModel `bun:"table:status_events"`

	ID        string      `json:"id" bun:"id,pk"`
	OrderID   string      `json:"order_id" bun:"order_id,notnull"`
	Status    OrderStatus `json:"status" bun:"status,notnull"`
	Note      *string     `json:"note,omitempty" bun:"note"`
	CreatedAt time.Time   `json:"created_at" bun:"created_at,notnull"`
}

type PushSubscription struct {
	bun.BaseModel `bun:"table:push_subscriptions"`

	Endpoint  string    `json:"endpoint" bun:"endpoint,pk"`
	OrderID   string    `json:"order_id" bun:"order_id,notnull"`
	P256dh    string    `json:"p256dh" bun:"p256dh,notnull"`
	Auth      string    `json:"auth" bun:"auth,notnull"`
	CreatedAt time.Time `json:"created_at" bun:"created_at,notnull"`
}

type SubscriptionKeys struct {
	P256dh string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

type BrowserSubscription struct {
	Endpoint string           `json:"endpoint" binding:"required,url"`
	Keys     SubscriptionKeys `json:"keys" binding:"required"`
}

type SubscribeRequest struct {
	OrderID      string              `json:"orderId" binding:"required"`
	Subscription BrowserSubscription `json:"subscription" binding:"required"`
}

type NotifyRequest struct {
	OrderID string `json:"orderId" binding:"required"`
	Title   string `json:"title" binding:"required"`
	Body    string `json:"body"`
	URL     string `json:"url"`
}

// PushMessage is the JSON payload delivered to the browser.
type PushMessage struct {
	Title string          `json:"title"`
	Body  string          `json:"body"`
	Data  PushMessageData `json:"data"`
}

type PushMessageData struct {
	URL string `json:"url,omitempty"`
}

// DeliveryResult is the per-subscription outcome of one fan-out.
type DeliveryResult struct {
	Endpoint  string `json:"endpoint"`
	Delivered bool   `json:"delivered"`
	Removed   bool   `json:"removed"`
	Error     string `json:"error,omitempty"`
}

// OrderEvent is published after a committed status change and consumed by
// the notification dispatcher.
type OrderEvent struct {
	Type      string      `json:"type"`
	OrderID   string      `json:"order_id"`
	TrackCode string      `json:"track_code"`
	Status    OrderStatus `json:"status"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	URL       string      `json:"url"`
	Timestamp time.Time   `json:"timestamp"`
}
