package services

import (
	"context"
	"fmt"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/models"
)

// notificationFor derives the push title, body and tracking url for a
// status. A staff note replaces the default body.
func notificationFor(order *models.Order, note string) (title, body, url string) {
	switch order.Status {
	case models.StatusPaid:
		title, body = "Payment received", "We have received your payment. The kitchen will start shortly."
	case models.StatusFailed:
		title, body = "Payment failed", "Your payment could not be completed. Please try again."
	case models.StatusConfirmed:
		title, body = "Order confirmed", "The restaurant has confirmed your order."
	case models.StatusPreparing:
		title, body = "Your order is being prepared", "The kitchen has started on your order."
	case models.StatusReady:
		title, body = "Order ready", "Your order is ready."
	case models.StatusComplete:
		title, body = "Order complete", "Thanks for dining with us!"
	case models.StatusCancelled:
		title, body = "Order cancelled", "Your order has been cancelled."
	default:
		title, body = "Order update", "Your order is now "+order.Status.DisplayName()+"."
	}
	if note != "" {
		body = note
	}
	return title, body, "/track/" + order.TrackCode
}

// publishStatusChange queues the notification for a committed transition.
// Failures are logged only.
func publishStatusChange(ctx context.Context, publisher EventPublisher, log *logger.Logger, order *models.Order, note string) {
	if publisher == nil {
		return
	}
	title, body, url := notificationFor(order, note)
	event := &models.OrderEvent{
		Type:      EventStatusChanged,
		OrderID:   order.ID,
		TrackCode: order.TrackCode,
		Status:    order.Status,
		Title:     title,
		Body:      body,
		URL:       url,
		Timestamp: order.StatusChangedAt,
	}

	if err := publisher.PublishOrderEvent(ctx, event); err != nil {
		log.Error("KAFKA", fmt.Sprintf("Failed to publish %s for order %s: %v", event.Type, order.ID, err))
		log.LogProcess("FALLBACK", fmt.Sprintf("Order %s is %s despite notification failure", order.ID, order.Status))
		return
	}
	log.LogOrder("NOTIFY", order.ID, fmt.Sprintf("Queued %q", title))
}
