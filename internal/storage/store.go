package storage

import (
	"context"
	"errors"
	"time"

	"qr-ordering/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotClaimable means a payment link exists but is used or expired.
	ErrNotClaimable = errors.New("payment link not claimable")
	// ErrConstraint covers foreign-key and similar integrity violations.
	ErrConstraint = errors.New("constraint violation")
)

// Store is the order store used by the core services. Tenant isolation is
// also enforced by the services; implementations must not rely on callers
// having done so.
type Store interface {
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	GetRestaurantByOwner(ctx context.Context, ownerID string) (*models.Restaurant, error)

	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetOrderByTrackCode(ctx context.Context, code string) (*models.Order, error)
	ListOrdersByRestaurant(ctx context.Context, restaurantID string, limit, offset int) ([]*models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	// UpdateOrderStatus writes only status, status_changed_at and
	// estimated_minutes, leaving payment columns to their own writers.
	UpdateOrderStatus(ctx context.Context, order *models.Order) error
	// DeleteOrder removes the order and any of its items. Only used as
	// compensation for a failed creation.
	DeleteOrder(ctx context.Context, id string) error

	InsertOrderItems(ctx context.Context, items []*models.OrderItem) error
	HasOrderItems(ctx context.Context, orderID string) (bool, error)
	ListOrderItems(ctx context.Context, orderID string) ([]*models.OrderItem, error)

	AppendStatusEvent(ctx context.Context, event *models.StatusEvent) error
	ListStatusEvents(ctx context.Context, orderID string) ([]*models.StatusEvent, error)

	CreatePaymentLink(ctx context.Context, link *models.PaymentLink) error
	GetPaymentLink(ctx context.Context, token string) (*models.PaymentLink, error)
	// ClaimPaymentLink flips used to true only if the link is unused and
	// unexpired at now, as one atomic operation. Returns ErrNotClaimable
	// when no row qualified.
	ClaimPaymentLink(ctx context.Context, token string, now time.Time) (*models.PaymentLink, error)

	UpsertPushSubscription(ctx context.Context, sub *models.PushSubscription) error
	ListPushSubscriptions(ctx context.Context, orderID string) ([]*models.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error

	HealthCheck(ctx context.Context) error
	Close() error
}
