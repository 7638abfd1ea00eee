package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/models"
	"qr-ordering/internal/storage"
	"qr-ordering/internal/utils"
)

const redeemPath = "/api/v1/pay/"

// MagicLinkService issues and redeems single-use checkout links.
type MagicLinkService struct {
	store   storage.Store
	guard   RedemptionGuard
	baseURL string
	ttl     time.Duration
	log     *logger.Logger
	now     func() time.Time
}

// NewMagicLinkService builds the issuer. guard may be nil.
func NewMagicLinkService(store storage.Store, guard RedemptionGuard, baseURL string, ttl time.Duration, log *logger.Logger) *MagicLinkService {
	return &MagicLinkService{
		store:   store,
		guard:   guard,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		log:     log,
		now:     time.Now,
	}
}

// Issue creates a link for an order still awaiting payment. requestOrigin
// is used when no public base URL is configured.
func (s *MagicLinkService) Issue(ctx context.Context, orderID, requestOrigin string) (*models.IssuedLink, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.Status != models.StatusPaymentPending {
		return nil, ErrOrderNotPayable
	}

	token, err := utils.GenerateLinkToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now().UTC()
	link := &models.PaymentLink{
		ID:        utils.GenerateUUID(),
		OrderID:   order.ID,
		Token:     token,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.CreatePaymentLink(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to store payment link: %w", err)
	}
	s.log.LogPayment("LINK_ISSUED", order.ID, fmt.Sprintf("Magic link valid until %s", link.ExpiresAt.Format(time.RFC3339)))

	base := s.baseURL
	if base == "" {
		base = strings.TrimRight(requestOrigin, "/")
	}
	return &models.IssuedLink{URL: base + redeemPath + token, ExpiresAt: link.ExpiresAt}, nil
}

// Redeem validates the token and spends it before returning the checkout
// destination. Every check that can reject runs before the token is spent.
func (s *MagicLinkService) Redeem(ctx context.Context, token string) (*models.Redemption, error) {
	if token == "" {
		return nil, ErrLinkNotFound
	}
	now := s.now().UTC()

	link, err := s.store.GetPaymentLink(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment link: %w", err)
	}
	if link.Used {
		return nil, ErrLinkUsed
	}
	if !link.ExpiresAt.After(now) {
		return nil, ErrLinkExpired
	}

	order, err := s.store.GetOrder(ctx, link.OrderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.Status != models.StatusPaymentPending {
		return nil, ErrOrderNotPayable
	}
	restaurant, err := s.store.GetRestaurant(ctx, order.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load restaurant: %w", err)
	}

	if s.guard != nil {
		won, err := s.guard.ClaimToken(ctx, token, link.ExpiresAt.Sub(now))
		if err != nil {
			s.log.Warn("PAYMENT", fmt.Sprintf("Redemption guard unavailable for order %s: %v", order.ID, err))
		} else if !won {
			s.log.LogSecurity("LINK_REPLAY", fmt.Sprintf("concurrent redemption of link for order %s", order.ID))
			return nil, ErrLinkUsed
		}
	}

	if _, err := s.store.ClaimPaymentLink(ctx, token, now); err != nil {
		if errors.Is(err, storage.ErrNotClaimable) {
			s.log.LogSecurity("LINK_REPLAY", fmt.Sprintf("link for order %s claimed by another request", order.ID))
			return nil, ErrLinkUsed
		}
		s.log.Error("PAYMENT", fmt.Sprintf("Failed to mark link used for order %s, redirecting anyway: %v", order.ID, err))
	}
	s.log.LogPayment("LINK_REDEEMED", order.ID, "Magic link redeemed")

	return &models.Redemption{
		OrderID:     order.ID,
		TrackCode:   order.TrackCode,
		CheckoutURL: s.checkoutURL(restaurant.Slug, order.TrackCode),
	}, nil
}

func (s *MagicLinkService) checkoutURL(slug, trackCode string) string {
	return s.baseURL + "/r/" + url.PathEscape(slug) + "/checkout?track=" + url.QueryEscape(trackCode)
}
