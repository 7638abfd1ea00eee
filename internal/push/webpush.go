package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"qr-ordering/internal/config"
	"qr-ordering/internal/logger"
	"qr-ordering/internal/models"
)

// ErrSubscriptionGone means the push service no longer knows the endpoint
// (HTTP 404 or 410) and the subscription should be deleted.
var ErrSubscriptionGone = errors.New("push subscription gone")

// WebPushSender delivers VAPID-signed, encrypted Web Push messages.
type WebPushSender struct {
	cfg    config.PushConfig
	client webpush.HTTPClient
	log    *logger.Logger
}

const defaultSendTimeout = 10 * time.Second

// NewWebPushSender bounds every delivery by cfg.Timeout so one slow push
// service cannot stall a fan-out.
func NewWebPushSender(cfg config.PushConfig, log *logger.Logger) *WebPushSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &WebPushSender{cfg: cfg, client: &http.Client{Timeout: timeout}, log: log}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (s *WebPushSender) WithHTTPClient(c webpush.HTTPClient) *WebPushSender {
	s.client = c
	return s
}

func (s *WebPushSender) Send(ctx context.Context, sub *models.PushSubscription, msg *models.PushMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             s.cfg.TTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrSubscriptionGone, resp.StatusCode)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		s.log.LogPush("SENT", sub.OrderID, fmt.Sprintf("Delivered to %s (%d)", sub.Endpoint, resp.StatusCode))
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("push service returned %d: %s", resp.StatusCode, string(body))
}
