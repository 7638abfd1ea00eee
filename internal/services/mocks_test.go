package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/models"
	"qr-ordering/internal/storage"
)

const (
	ownerA = "owner-a"
	ownerB = "owner-b"
)

var (
	principalA = &models.Principal{UserID: ownerA}
	principalB = &models.Principal{UserID: ownerB}
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, sub *models.PushSubscription, msg *models.PushMessage) error {
	args := m.Called(ctx, sub, msg)
	return args.Error(0)
}

type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, link string) (string, error) {
	args := m.Called(ctx, link)
	return args.String(0), args.Error(1)
}

type MockGuard struct {
	mock.Mock
}

func (m *MockGuard) ClaimToken(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, token, ttl)
	return args.Bool(0), args.Error(1)
}

// faultyStore injects failures into selected store calls.
type faultyStore struct {
	*storage.InMemoryStore
	insertItemsErr error
	hasItemsErr    error
	listSubsErr    error
	claimErr       error
}

func (f *faultyStore) InsertOrderItems(ctx context.Context, items []*models.OrderItem) error {
	if f.insertItemsErr != nil {
		return f.insertItemsErr
	}
	return f.InMemoryStore.InsertOrderItems(ctx, items)
}

func (f *faultyStore) HasOrderItems(ctx context.Context, orderID string) (bool, error) {
	if f.hasItemsErr != nil {
		return false, f.hasItemsErr
	}
	return f.InMemoryStore.HasOrderItems(ctx, orderID)
}

func (f *faultyStore) ListPushSubscriptions(ctx context.Context, orderID string) ([]*models.PushSubscription, error) {
	if f.listSubsErr != nil {
		return nil, f.listSubsErr
	}
	return f.InMemoryStore.ListPushSubscriptions(ctx, orderID)
}

func (f *faultyStore) ClaimPaymentLink(ctx context.Context, token string, now time.Time) (*models.PaymentLink, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return f.InMemoryStore.ClaimPaymentLink(ctx, token, now)
}

// newStore seeds two restaurants: r-a (menu items 5, 6) owned by owner-a and
// r-b (menu item 7) owned by owner-b.
func newStore() *storage.InMemoryStore {
	s := storage.NewInMemoryStore()
	s.SeedRestaurant(&models.Restaurant{ID: "r-a", OwnerID: ownerA, Name: "Cafe A", Slug: "cafe-a", UPIID: "cafea@upi"}, 5, 6)
	s.SeedRestaurant(&models.Restaurant{ID: "r-b", OwnerID: ownerB, Name: "Bistro B", Slug: "bistro-b", UPIID: "bistrob@upi"}, 7)
	return s
}

func quietPublisher() *MockPublisher {
	p := new(MockPublisher)
	p.On("PublishOrderEvent", mock.Anything, mock.Anything).Return(nil).Maybe()
	return p
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testLogger() *logger.Logger {
	return logger.Discard()
}

func prepaidRequest(restaurantID string) *models.CreateOrderRequest {
	return &models.CreateOrderRequest{
		RestaurantID: restaurantID,
		TableID:      "T-4",
		Cart:         []models.CartItem{{MenuItemID: 5, UnitPrice: 12.99, Quantity: 2}},
		Total:        25.98,
		Prepaid:      true,
	}
}

func tableRequest(restaurantID string, items ...models.CartItem) *models.CreateOrderRequest {
	if len(items) == 0 {
		items = []models.CartItem{{MenuItemID: 5, UnitPrice: 10, Quantity: 1}, {MenuItemID: 6, UnitPrice: 4.5, Quantity: 2}}
	}
	return &models.CreateOrderRequest{
		RestaurantID: restaurantID,
		TableID:      "T-1",
		Cart:         items,
	}
}
