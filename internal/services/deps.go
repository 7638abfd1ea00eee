package services

import (
	"context"
	"time"

	"qr-ordering/internal/models"
)

// EventPublisher queues order events for the notification dispatcher.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error
}

type QRRenderer interface {
	Render(ctx context.Context, link string) (string, error)
}

type PushSender interface {
	Send(ctx context.Context, sub *models.PushSubscription, msg *models.PushMessage) error
}

// RedemptionGuard is a fast cross-instance claim on a link token. The
// store's conditional update remains the authoritative check.
type RedemptionGuard interface {
	ClaimToken(ctx context.Context, token string, ttl time.Duration) (bool, error)
}
