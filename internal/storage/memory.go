package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"qr-ordering/internal/models"
)

// InMemoryStore backs local development and tests. It mirrors the MySQL
// constraints the services rely on: unique track codes, the order_items
// foreign keys and the conditional payment link claim.
type InMemoryStore struct {
	mutex         sync.RWMutex
	restaurants   map[string]*models.Restaurant
	menuItems     map[int64]string
	orders        map[string]*models.Order
	items         map[string][]*models.OrderItem
	events        map[string][]*models.StatusEvent
	links         map[string]*models.PaymentLink
	subscriptions map[string]*models.PushSubscription
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		restaurants:   make(map[string]*models.Restaurant),
		menuItems:     make(map[int64]string),
		orders:        make(map[string]*models.Order),
		items:         make(map[string][]*models.OrderItem),
		events:        make(map[string][]*models.StatusEvent),
		links:         make(map[string]*models.PaymentLink),
		subscriptions: make(map[string]*models.PushSubscription),
	}
}

// SeedRestaurant registers a restaurant and the menu item ids it serves.
func (s *InMemoryStore) SeedRestaurant(r *models.Restaurant, menuItemIDs ...int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cp := *r
	s.restaurants[r.ID] = &cp
	for _, id := range menuItemIDs {
		s.menuItems[id] = r.ID
	}
}

func copyOrder(o *models.Order) *models.Order {
	cp := *o
	if o.CartSnapshot != nil {
		cp.CartSnapshot = append([]models.CartItem(nil), o.CartSnapshot...)
	}
	return &cp
}

func (s *InMemoryStore) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	r, ok := s.restaurants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) GetRestaurantByOwner(ctx context.Context, ownerID string) (*models.Restaurant, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, r := range s.restaurants {
		if r.OwnerID == ownerID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("%w: order %s", ErrDuplicate, order.ID)
	}
	for _, o := range s.orders {
		if o.TrackCode == order.TrackCode {
			return fmt.Errorf("%w: track code %s", ErrDuplicate, order.TrackCode)
		}
	}
	if _, ok := s.restaurants[order.RestaurantID]; !ok {
		return fmt.Errorf("%w: restaurant %s", ErrConstraint, order.RestaurantID)
	}
	s.orders[order.ID] = copyOrder(order)
	return nil
}

func (s *InMemoryStore) UpdateOrderStatus(ctx context.Context, order *models.Order) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored, ok := s.orders[order.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Status = order.Status
	stored.StatusChangedAt = order.StatusChangedAt
	stored.EstimatedMinutes = nil
	if order.EstimatedMinutes != nil {
		minutes := *order.EstimatedMinutes
		stored.EstimatedMinutes = &minutes
	}
	return nil
}

func (s *InMemoryStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOrder(o), nil
}

func (s *InMemoryStore) GetOrderByTrackCode(ctx context.Context, code string) (*models.Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, o := range s.orders {
		if o.TrackCode == code {
			return copyOrder(o), nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) ListOrdersByRestaurant(ctx context.Context, restaurantID string, limit, offset int) ([]*models.Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var all []*models.Order
	for _, o := range s.orders {
		if o.RestaurantID == restaurantID {
			all = append(all, copyOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []*models.Order{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *InMemoryStore) UpdateOrder(ctx context.Context, order *models.Order) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.orders[order.ID]; !ok {
		return ErrNotFound
	}
	s.orders[order.ID] = copyOrder(order)
	return nil
}

func (s *InMemoryStore) DeleteOrder(ctx context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.items, id)
	delete(s.orders, id)
	return nil
}

func (s *InMemoryStore) InsertOrderItems(ctx context.Context, items []*models.OrderItem) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// All-or-nothing, like a multi-row INSERT.
	for _, it := range items {
		if _, ok := s.orders[it.OrderID]; !ok {
			return fmt.Errorf("%w: order %s", ErrConstraint, it.OrderID)
		}
		if _, ok := s.menuItems[it.MenuItemID]; !ok {
			return fmt.Errorf("%w: menu item %d", ErrConstraint, it.MenuItemID)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: quantity %d", ErrConstraint, it.Quantity)
		}
	}
	for _, it := range items {
		cp := *it
		s.items[it.OrderID] = append(s.items[it.OrderID], &cp)
	}
	return nil
}

func (s *InMemoryStore) HasOrderItems(ctx context.Context, orderID string) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.items[orderID]) > 0, nil
}

func (s *InMemoryStore) ListOrderItems(ctx context.Context, orderID string) ([]*models.OrderItem, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]*models.OrderItem, 0, len(s.items[orderID]))
	for _, it := range s.items[orderID] {
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) AppendStatusEvent(ctx context.Context, event *models.StatusEvent) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cp := *event
	s.events[event.OrderID] = append(s.events[event.OrderID], &cp)
	return nil
}

func (s *InMemoryStore) ListStatusEvents(ctx context.Context, orderID string) ([]*models.StatusEvent, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]*models.StatusEvent, 0, len(s.events[orderID]))
	for _, e := range s.events[orderID] {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) CreatePaymentLink(ctx context.Context, link *models.PaymentLink) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.links[link.Token]; exists {
		return fmt.Errorf("%w: token", ErrDuplicate)
	}
	cp := *link
	s.links[link.Token] = &cp
	return nil
}

func (s *InMemoryStore) GetPaymentLink(ctx context.Context, token string) (*models.PaymentLink, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	link, ok := s.links[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *link
	return &cp, nil
}

func (s *InMemoryStore) ClaimPaymentLink(ctx context.Context, token string, now time.Time) (*models.PaymentLink, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	link, ok := s.links[token]
	if !ok || link.Used || !link.ExpiresAt.After(now) {
		return nil, ErrNotClaimable
	}
	link.Used = true
	cp := *link
	return &cp, nil
}

func (s *InMemoryStore) UpsertPushSubscription(ctx context.Context, sub *models.PushSubscription) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cp := *sub
	if existing, ok := s.subscriptions[sub.Endpoint]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	s.subscriptions[sub.Endpoint] = &cp
	return nil
}

func (s *InMemoryStore) ListPushSubscriptions(ctx context.Context, orderID string) ([]*models.PushSubscription, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []*models.PushSubscription
	for _, sub := range s.subscriptions {
		if sub.OrderID == orderID {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.subscriptions, endpoint)
	return nil
}

func (s *InMemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
