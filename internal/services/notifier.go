package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/models"
	"qr-ordering/internal/push"
	"qr-ordering/internal/storage"
)

// Dispatcher fans a push message out to every subscription of an order.
// Each delivery is attempted once and isolated from the others.
type Dispatcher struct {
	store  storage.Store
	sender PushSender
	log    *logger.Logger
}

func NewDispatcher(store storage.Store, sender PushSender, log *logger.Logger) *Dispatcher {
	return &Dispatcher{store: store, sender: sender, log: log}
}

// Notify returns one result per subscription, in subscription order. Only a
// failure to list subscriptions is returned as an error.
func (d *Dispatcher) Notify(ctx context.Context, orderID string, msg *models.PushMessage) ([]models.DeliveryResult, error) {
	subs, err := d.store.ListPushSubscriptions(ctx, orderID)
	if err != nil {
		d.log.Error("PUSH", fmt.Sprintf("Failed to load subscriptions for order %s: %v", orderID, err))
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		d.log.LogPush("SKIP", orderID, "No subscriptions")
		return []models.DeliveryResult{}, nil
	}

	results := make([]models.DeliveryResult, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *models.PushSubscription) {
			defer wg.Done()
			results[i] = d.deliver(ctx, sub, msg)
		}(i, sub)
	}
	wg.Wait()

	delivered := 0
	for _, r := range results {
		if r.Delivered {
			delivered++
		}
	}
	d.log.LogPush("FANOUT", orderID, fmt.Sprintf("Delivered %d/%d", delivered, len(results)))
	return results, nil
}

func (d *Dispatcher) deliver(ctx context.Context, sub *models.PushSubscription, msg *models.PushMessage) (result models.DeliveryResult) {
	result.Endpoint = sub.Endpoint
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("PUSH", fmt.Sprintf("Panic delivering to %s: %v", sub.Endpoint, r))
			result.Delivered = false
			result.Error = fmt.Sprint(r)
		}
	}()

	err := d.sender.Send(ctx, sub, msg)
	if err == nil {
		result.Delivered = true
		return result
	}
	result.Error = err.Error()

	if !errors.Is(err, push.ErrSubscriptionGone) {
		d.log.Warn("PUSH", fmt.Sprintf("Delivery to %s for order %s failed: %v", sub.Endpoint, sub.OrderID, err))
		return result
	}

	if delErr := d.store.DeletePushSubscription(ctx, sub.Endpoint); delErr != nil {
		d.log.Error("PUSH", fmt.Sprintf("Failed to prune subscription %s: %v", sub.Endpoint, delErr))
		return result
	}
	result.Removed = true
	d.log.LogPush("PRUNED", sub.OrderID, "Removed expired subscription "+sub.Endpoint)
	return result
}

// Subscribe binds a browser subscription to an order, replacing any row
// for the same endpoint.
func (d *Dispatcher) Subscribe(ctx context.Context, req *models.SubscribeRequest) error {
	if req.OrderID == "" || req.Subscription.Endpoint == "" ||
		req.Subscription.Keys.P256dh == "" || req.Subscription.Keys.Auth == "" {
		return fmt.Errorf("%w: orderId, endpoint and keys are required", ErrValidation)
	}

	if _, err := d.store.GetOrder(ctx, req.OrderID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to load order: %w", err)
	}

	sub := &models.PushSubscription{
		Endpoint:  req.Subscription.Endpoint,
		OrderID:   req.OrderID,
		P256dh:    req.Subscription.Keys.P256dh,
		Auth:      req.Subscription.Keys.Auth,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.store.UpsertPushSubscription(ctx, sub); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	d.log.LogPush("SUBSCRIBED", req.OrderID, sub.Endpoint)
	return nil
}

// HandleOrderEvent is the outbox consumer: it turns a queued status event
// into a fan-out.
func (d *Dispatcher) HandleOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	_, err := d.Notify(ctx, event.OrderID, &models.PushMessage{
		Title: event.Title,
		Body:  event.Body,
		Data:  models.PushMessageData{URL: event.URL},
	})
	return err
}
