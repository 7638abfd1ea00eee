package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/models"
	"qr-ordering/internal/storage"
	"qr-ordering/internal/utils"
)

const (
	trackCodeAttempts = 5
	defaultPageSize   = 50
	maxPageSize       = 200

	EventStatusChanged = "order.status_changed"
)

// OrderService is the order lifecycle engine. Staff mutations take the
// calling principal explicitly and re-check restaurant ownership.
type OrderService struct {
	store     storage.Store
	publisher EventPublisher
	qr        QRRenderer
	payeeName string
	log       *logger.Logger
	now       func() time.Time
}

func NewOrderService(store storage.Store, publisher EventPublisher, qr QRRenderer, payeeName string, log *logger.Logger) *OrderService {
	return &OrderService{
		store:     store,
		publisher: publisher,
		qr:        qr,
		payeeName: payeeName,
		log:       log,
		now:       time.Now,
	}
}

func validateCart(req *models.CreateOrderRequest) (float64, error) {
	if req.RestaurantID == "" || req.TableID == "" {
		return 0, fmt.Errorf("%w: restaurant and table are required", ErrValidation)
	}
	if len(req.Cart) == 0 {
		return 0, fmt.Errorf("%w: cart is empty", ErrValidation)
	}

	var sum float64
	for i, it := range req.Cart {
		if it.MenuItemID <= 0 {
			return 0, fmt.Errorf("%w: cart[%d] has no menu item", ErrValidation, i)
		}
		if it.Quantity <= 0 {
			return 0, fmt.Errorf("%w: cart[%d] quantity must be positive", ErrValidation, i)
		}
		if it.UnitPrice < 0 {
			return 0, fmt.Errorf("%w: cart[%d] price must not be negative", ErrValidation, i)
		}
		sum += it.UnitPrice * float64(it.Quantity)
	}

	total := req.Total
	if total == 0 {
		total = math.Round(sum*100) / 100
	}
	if total <= 0 {
		return 0, fmt.Errorf("%w: total must be positive", ErrValidation)
	}
	return total, nil
}

// CreateOrder places a prepaid checkout order (payment_pending, cart kept as
// a snapshot, UPI link attached) or a pay-on-table order (pending, items
// inserted immediately).
func (s *OrderService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error) {
	total, err := validateCart(req)
	if err != nil {
		return nil, err
	}

	restaurant, err := s.store.GetRestaurant(ctx, req.RestaurantID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRestaurantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load restaurant: %w", err)
	}

	now := s.now().UTC()
	order := &models.Order{
		ID:              utils.GenerateUUID(),
		RestaurantID:    restaurant.ID,
		TableID:         req.TableID,
		TotalAmount:     total,
		Status:          models.StatusPending,
		CreatedAt:       now,
		StatusChangedAt: now,
	}
	if req.Prepaid {
		order.Status = models.StatusPaymentPending
		order.CartSnapshot = append([]models.CartItem(nil), req.Cart...)
	}

	if err := s.insertWithTrackCode(ctx, order); err != nil {
		return nil, err
	}
	s.log.LogOrder("CREATE", order.ID, fmt.Sprintf("Order %s created at table %s with status %s, total %.2f",
		order.TrackCode, order.TableID, order.Status, order.TotalAmount))

	if !req.Prepaid {
		if err := s.store.InsertOrderItems(ctx, itemsFromCart(order.ID, req.Cart)); err != nil {
			s.log.Error("ORDER", fmt.Sprintf("Failed to insert items for order %s, rolling back: %v", order.ID, err))
			if delErr := s.store.DeleteOrder(ctx, order.ID); delErr != nil {
				s.log.Error("ORDER", fmt.Sprintf("Rollback of order %s failed: %v", order.ID, delErr))
			}
			return nil, fmt.Errorf("%w: %w", ErrItemMaterialization, err)
		}
		return order, nil
	}

	s.attachPaymentLink(ctx, order, restaurant)
	return order, nil
}

func (s *OrderService) insertWithTrackCode(ctx context.Context, order *models.Order) error {
	for attempt := 1; attempt <= trackCodeAttempts; attempt++ {
		code, err := utils.GenerateTrackCode()
		if err != nil {
			return fmt.Errorf("failed to generate tracking code: %w", err)
		}
		order.TrackCode = code

		err = s.store.CreateOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrDuplicate) {
			return fmt.Errorf("failed to create order: %w", err)
		}
		s.log.Warn("ORDER", fmt.Sprintf("Tracking code collision on attempt %d", attempt))
	}
	return fmt.Errorf("failed to create order: no unique tracking code after %d attempts", trackCodeAttempts)
}

// attachPaymentLink stores the UPI link and, best effort, the rendered QR.
func (s *OrderService) attachPaymentLink(ctx context.Context, order *models.Order, restaurant *models.Restaurant) {
	if restaurant.UPIID == "" {
		s.log.Warn("PAYMENT", fmt.Sprintf("Restaurant %s has no UPI handle, order %s left without payment link", restaurant.ID, order.ID))
		return
	}

	payee := restaurant.Name
	if payee == "" {
		payee = s.payeeName
	}
	link := BuildUPILink(restaurant.UPIID, payee, order.TotalAmount, "Order "+order.TrackCode)
	order.UPILink = &link

	if s.qr != nil {
		ref, err := s.qr.Render(ctx, link)
		if err != nil {
			s.log.Warn("PAYMENT", fmt.Sprintf("QR rendering failed for order %s: %v", order.ID, err))
		} else {
			order.PaymentQR = &ref
		}
	}

	if err := s.store.UpdateOrder(ctx, order); err != nil {
		s.log.Error("PAYMENT", fmt.Sprintf("Failed to store payment link for order %s: %v", order.ID, err))
		return
	}
	s.log.LogPayment("LINK", order.ID, "UPI payment link attached")
}

func itemsFromCart(orderID string, cart []models.CartItem) []*models.OrderItem {
	items := make([]*models.OrderItem, 0, len(cart))
	for _, c := range cart {
		items = append(items, &models.OrderItem{
			ID:         utils.GenerateUUID(),
			OrderID:    orderID,
			MenuItemID: c.MenuItemID,
			Quantity:   c.Quantity,
			UnitPrice:  c.UnitPrice,
		})
	}
	return items
}

// GetStatusByTrackCode backs the public tracking endpoint.
func (s *OrderService) GetStatusByTrackCode(ctx context.Context, code string) (models.OrderStatus, error) {
	order, err := s.store.GetOrderByTrackCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load order: %w", err)
	}
	return order.Status, nil
}

func (s *OrderService) restaurantFor(ctx context.Context, principal *models.Principal) (*models.Restaurant, error) {
	if principal == nil || principal.UserID == "" {
		return nil, ErrUnauthorized
	}
	restaurant, err := s.store.GetRestaurantByOwner(ctx, principal.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve restaurant: %w", err)
	}
	return restaurant, nil
}

// ownedOrder loads an order only if it belongs to the principal's restaurant.
func (s *OrderService) ownedOrder(ctx context.Context, principal *models.Principal, orderID string) (*models.Order, error) {
	restaurant, err := s.restaurantFor(ctx, principal)
	if err != nil {
		return nil, err
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.RestaurantID != restaurant.ID {
		s.log.LogSecurity("TENANT_MISMATCH", fmt.Sprintf("user %s requested order %s of another restaurant", principal.UserID, orderID))
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// UpdateStatus applies a staff transition: status write, audit event, then
// a queued notification whose failure never fails the call. Off-graph
// moves are logged, not rejected.
func (s *OrderService) UpdateStatus(ctx context.Context, principal *models.Principal, orderID string, req *models.UpdateStatusRequest) (*models.Order, error) {
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}

	order, err := s.ownedOrder(ctx, principal, orderID)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(order.Status, status) {
		s.log.Warn("ORDER", fmt.Sprintf("Off-graph transition %s -> %s requested for order %s", order.Status, status, order.ID))
	}

	order.Status = status
	order.StatusChangedAt = s.now().UTC()
	if req.EstimatedMinutes != nil {
		minutes := *req.EstimatedMinutes
		order.EstimatedMinutes = &minutes
	}
	if err := s.store.UpdateOrderStatus(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	if err := s.appendEvent(ctx, order, req.Note); err != nil {
		return nil, err
	}
	s.log.LogOrder("STATUS", order.ID, fmt.Sprintf("Status set to %s by %s", status, principal.UserID))

	publishStatusChange(ctx, s.publisher, s.log, order, req.Note)
	return order, nil
}

func (s *OrderService) appendEvent(ctx context.Context, order *models.Order, note string) error {
	return appendStatusEvent(ctx, s.store, order, note, s.now())
}

func appendStatusEvent(ctx context.Context, store storage.Store, order *models.Order, note string, at time.Time) error {
	event := &models.StatusEvent{
		ID:        utils.GenerateUUID(),
		OrderID:   order.ID,
		Status:    order.Status,
		CreatedAt: at.UTC(),
	}
	if note != "" {
		event.Note = &note
	}
	if err := store.AppendStatusEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to append status event: %w", err)
	}
	return nil
}

// ListOrders returns the principal's restaurant orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, principal *models.Principal, limit, offset int) ([]*models.Order, error) {
	restaurant, err := s.restaurantFor(ctx, principal)
	if errors.Is(err, ErrOrderNotFound) {
		return []*models.Order{}, nil
	}
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	orders, err := s.store.ListOrdersByRestaurant(ctx, restaurant.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) GetOrderDetail(ctx context.Context, principal *models.Principal, orderID string) (*models.OrderDetail, error) {
	order, err := s.ownedOrder(ctx, principal, orderID)
	if err != nil {
		return nil, err
	}

	items, err := s.store.ListOrderItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	history, err := s.store.ListStatusEvents(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return &models.OrderDetail{Order: order, Items: items, History: history}, nil
}
