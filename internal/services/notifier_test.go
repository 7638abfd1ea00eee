package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"qr-ordering/internal/models"
	"qr-ordering/internal/push"
	"qr-ordering/internal/storage"
)

func seedSubscriptions(t *testing.T, store storage.Store, orderID string, endpoints ...string) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i, ep := range endpoints {
		require.NoError(t, store.UpsertPushSubscription(context.Background(), &models.PushSubscription{
			Endpoint:  ep,
			OrderID:   orderID,
			P256dh:    "key",
			Auth:      "auth",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
}

func endpoint(ep string) interface{} {
	return mock.MatchedBy(func(sub *models.PushSubscription) bool { return sub.Endpoint == ep })
}

func TestNotify_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	seedSubscriptions(t, store, "o1", "https://push/1", "https://push/2", "https://push/3")

	msg := &models.PushMessage{Title: "Order ready", Body: "Come get it", Data: models.PushMessageData{URL: "/track/ABCD2345"}}
	sender := new(MockSender)
	sender.On("Send", mock.Anything, endpoint("https://push/1"), msg).Return(nil).Once()
	sender.On("Send", mock.Anything, endpoint("https://push/2"), msg).Return(errors.New("context deadline exceeded")).Once()
	sender.On("Send", mock.Anything, endpoint("https://push/3"), msg).Return(nil).Once()

	results, err := NewDispatcher(store, sender, testLogger()).Notify(ctx, "o1", msg)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Delivered)
	assert.False(t, results[1].Delivered)
	assert.False(t, results[1].Removed)
	assert.Contains(t, results[1].Error, "deadline")
	assert.True(t, results[2].Delivered)

	subs, err := store.ListPushSubscriptions(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, subs, 3, "non-gone failures keep the subscription")
	sender.AssertExpectations(t)
}

func TestNotify_PrunesGoneSubscriptions(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	seedSubscriptions(t, store, "o1", "https://push/1", "https://push/2", "https://push/3")

	sender := new(MockSender)
	sender.On("Send", mock.Anything, endpoint("https://push/1"), mock.Anything).Return(nil)
	sender.On("Send", mock.Anything, endpoint("https://push/2"), mock.Anything).Return(fmt.Errorf("%w: status 410", push.ErrSubscriptionGone))
	sender.On("Send", mock.Anything, endpoint("https://push/3"), mock.Anything).Return(errors.New("500 from push service"))

	results, err := NewDispatcher(store, sender, testLogger()).Notify(ctx, "o1", &models.PushMessage{Title: "Update"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[1].Removed)
	assert.False(t, results[2].Removed)

	subs, err := store.ListPushSubscriptions(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "https://push/1", subs[0].Endpoint)
	assert.Equal(t, "https://push/3", subs[1].Endpoint)
}

func TestNotify_PanickingSenderIsContained(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	seedSubscriptions(t, store, "o1", "https://push/1", "https://push/2")

	sender := new(MockSender)
	sender.On("Send", mock.Anything, endpoint("https://push/1"), mock.Anything).Return(nil)
	sender.On("Send", mock.Anything, endpoint("https://push/2"), mock.Anything).Run(func(mock.Arguments) {
		panic("nil map write")
	}).Return(nil)

	results, err := NewDispatcher(store, sender, testLogger()).Notify(ctx, "o1", &models.PushMessage{Title: "Update"})
	require.NoError(t, err)
	assert.True(t, results[0].Delivered)
	assert.False(t, results[1].Delivered)
	assert.Equal(t, "nil map write", results[1].Error)
}

func TestNotify_InfrastructureFailure(t *testing.T) {
	store := &faultyStore{InMemoryStore: newStore(), listSubsErr: errors.New("too many connections")}
	sender := new(MockSender)

	_, err := NewDispatcher(store, sender, testLogger()).Notify(context.Background(), "o1", &models.PushMessage{Title: "x"})
	assert.ErrorContains(t, err, "too many connections")
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotify_NoSubscriptions(t *testing.T) {
	results, err := NewDispatcher(newStore(), new(MockSender), testLogger()).Notify(context.Background(), "o1", &models.PushMessage{Title: "x"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	order := pendingOrder(t, store)
	d := NewDispatcher(store, new(MockSender), testLogger())

	req := &models.SubscribeRequest{
		OrderID: order.ID,
		Subscription: models.BrowserSubscription{
			Endpoint: "https://fcm.googleapis.com/fcm/send/abc",
			Keys:     models.SubscriptionKeys{P256dh: "p1", Auth: "a1"},
		},
	}
	require.NoError(t, d.Subscribe(ctx, req))

	req.Subscription.Keys = models.SubscriptionKeys{P256dh: "p2", Auth: "a2"}
	require.NoError(t, d.Subscribe(ctx, req))

	subs, err := store.ListPushSubscriptions(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1, "re-subscribing upserts by endpoint")
	assert.Equal(t, "p2", subs[0].P256dh)

	req.OrderID = "missing"
	assert.ErrorIs(t, d.Subscribe(ctx, req), ErrOrderNotFound)

	assert.ErrorIs(t, d.Subscribe(ctx, &models.SubscribeRequest{OrderID: order.ID}), ErrValidation)
}

func TestHandleOrderEvent(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	seedSubscriptions(t, store, "o1", "https://push/1")

	sender := new(MockSender)
	sender.On("Send", mock.Anything, mock.Anything, &models.PushMessage{
		Title: "Order ready",
		Body:  "Your order is ready.",
		Data:  models.PushMessageData{URL: "/track/ABCD2345"},
	}).Return(nil).Once()

	err := NewDispatcher(store, sender, testLogger()).HandleOrderEvent(ctx, &models.OrderEvent{
		Type:    EventStatusChanged,
		OrderID: "o1",
		Status:  models.StatusReady,
		Title:   "Order ready",
		Body:    "Your order is ready.",
		URL:     "/track/ABCD2345",
	})
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestStatusChangeReachesSubscribers(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	sender := new(MockSender)
	dispatcher := NewDispatcher(store, sender, testLogger())

	// In-process outbox, as the mock-mode producer wires it.
	publisher := new(MockPublisher)
	publisher.On("PublishOrderEvent", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		_ = dispatcher.HandleOrderEvent(args.Get(0).(context.Context), args.Get(1).(*models.OrderEvent))
	})

	orders := NewOrderService(store, publisher, nil, "Restaurant", testLogger())
	order, err := orders.CreateOrder(ctx, tableRequest("r-a"))
	require.NoError(t, err)
	seedSubscriptions(t, store, order.ID, "https://push/phone")

	sender.On("Send", mock.Anything, endpoint("https://push/phone"), mock.MatchedBy(func(m *models.PushMessage) bool {
		return m.Title == "Your order is being prepared" && m.Body == "started cooking"
	})).Return(errors.New("push service unavailable")).Once()

	_, err = orders.UpdateStatus(ctx, principalA, order.ID, &models.UpdateStatusRequest{Status: "preparing", Note: "started cooking"})
	require.NoError(t, err, "a failed push never fails the transition")

	stored, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, stored.Status)
	sender.AssertExpectations(t)
}
