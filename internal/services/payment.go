package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/models"
	"qr-ordering/internal/storage"
)

// PaymentService confirms provider payment callbacks against orders.
type PaymentService struct {
	store     storage.Store
	publisher EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

func NewPaymentService(store storage.Store, publisher EventPublisher, log *logger.Logger) *PaymentService {
	return &PaymentService{
		store:     store,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// ConfirmPayment applies one webhook delivery. Safe to repeat: an order that
// is already paid, or a failure already recorded, is acknowledged untouched,
// and items are only inserted when none exist yet. An item insert failure is returned so the provider
// retries.
func (s *PaymentService) ConfirmPayment(ctx context.Context, payload *models.WebhookPayload) (*models.ConfirmationResult, error) {
	if payload == nil || strings.TrimSpace(payload.OrderID) == "" || strings.TrimSpace(payload.PaymentStatus) == "" {
		return nil, fmt.Errorf("%w: orderId and paymentStatus are required", ErrValidation)
	}
	s.log.LogPayment("WEBHOOK", payload.OrderID, fmt.Sprintf("Received status %s (txn %s)", payload.PaymentStatus, payload.ProviderTxnID))

	order, err := s.store.GetOrder(ctx, payload.OrderID)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.LogPayment("NOT_FOUND", payload.OrderID, "Webhook for unknown order")
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if order.Status == models.StatusPaid || order.Prepaid {
		s.log.LogPayment("DUPLICATE", order.ID, "Order already paid, acknowledging without changes")
		return &models.ConfirmationResult{OrderID: order.ID, Status: order.Status, AlreadyProcessed: true}, nil
	}
	if order.Status == models.StatusFailed && payload.PaymentStatus != models.PaymentSuccess {
		s.log.LogPayment("DUPLICATE", order.ID, "Failure already recorded, acknowledging without changes")
		return &models.ConfirmationResult{OrderID: order.ID, Status: order.Status, AlreadyProcessed: true}, nil
	}
	if order.Status != models.StatusPaymentPending {
		s.log.LogPayment("REJECTED", order.ID, fmt.Sprintf("Order is %s, not awaiting payment", order.Status))
		return nil, ErrOrderNotPayable
	}

	if payload.PaymentStatus != models.PaymentSuccess {
		return s.markFailed(ctx, order, payload)
	}

	if err := s.materializeItems(ctx, order); err != nil {
		return nil, err
	}

	order.Status = models.StatusPaid
	order.Prepaid = true
	order.CartSnapshot = nil
	order.StatusChangedAt = s.now().UTC()
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		s.log.Error("PAYMENT", fmt.Sprintf("Failed to mark order %s paid: %v", order.ID, err))
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	note := "Payment confirmed"
	if payload.ProviderTxnID != "" {
		note += " (txn " + payload.ProviderTxnID + ")"
	}
	if err := appendStatusEvent(ctx, s.store, order, note, s.now()); err != nil {
		// The order is committed as paid; the delivery still succeeds.
		s.log.Error("PAYMENT", fmt.Sprintf("Order %s paid but audit event not written: %v", order.ID, err))
	}
	s.log.LogPayment("PAID", order.ID, note)

	publishStatusChange(ctx, s.publisher, s.log, order, "")
	return &models.ConfirmationResult{OrderID: order.ID, Status: order.Status}, nil
}

// materializeItems turns the cart snapshot into order_items unless a prior
// delivery already did.
func (s *PaymentService) materializeItems(ctx context.Context, order *models.Order) error {
	exists, err := s.store.HasOrderItems(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to check order items: %w", err)
	}
	if exists {
		s.log.LogPayment("ITEMS_EXIST", order.ID, "Items already materialized, skipping insert")
		return nil
	}
	if len(order.CartSnapshot) == 0 {
		s.log.Warn("PAYMENT", fmt.Sprintf("Order %s has no cart snapshot to materialize", order.ID))
		return nil
	}

	if err := s.store.InsertOrderItems(ctx, itemsFromCart(order.ID, order.CartSnapshot)); err != nil {
		s.log.Error("PAYMENT", fmt.Sprintf("CRITICAL: order %s paid but items not inserted: %v", order.ID, err))
		return fmt.Errorf("%w: %w", ErrItemMaterialization, err)
	}
	s.log.LogPayment("ITEMS", order.ID, fmt.Sprintf("Materialized %d items", len(order.CartSnapshot)))
	return nil
}

func (s *PaymentService) markFailed(ctx context.Context, order *models.Order, payload *models.WebhookPayload) (*models.ConfirmationResult, error) {
	order.Status = models.StatusFailed
	order.StatusChangedAt = s.now().UTC()
	if err := s.store.UpdateOrderStatus(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	note := "Payment failed: gateway reported " + payload.PaymentStatus
	if payload.ProviderTxnID != "" {
		note += " (txn " + payload.ProviderTxnID + ")"
	}
	if err := appendStatusEvent(ctx, s.store, order, note, s.now()); err != nil {
		return nil, err
	}
	s.log.LogPayment("FAILED", order.ID, note)

	publishStatusChange(ctx, s.publisher, s.log, order, "")
	return &models.ConfirmationResult{OrderID: order.ID, Status: order.Status}, nil
}
