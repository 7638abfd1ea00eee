package poller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/models"
)

var ErrUnknownOrder = errors.New("no order with that tracking code")

// Poller mirrors what the checkout page does while payment is outstanding:
// fetch the public status on a fixed interval and stop at the first status
// other than payment_pending.
type Poller struct {
	client   *resty.Client
	interval time.Duration
	log      *logger.Logger
}

func New(baseURL string, interval time.Duration, log *logger.Logger) *Poller {
	return &Poller{
		client:   resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")).SetTimeout(5 * time.Second),
		interval: interval,
		log:      log,
	}
}

// Status performs one fetch of the public status endpoint.
func (p *Poller) Status(ctx context.Context, trackCode string) (models.OrderStatus, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&models.StatusResponse{}).
		Get("/api/v1/orders/track/" + url.PathEscape(trackCode) + "/status")
	if err != nil {
		return "", fmt.Errorf("status request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return "", ErrUnknownOrder
	}
	if resp.IsError() {
		return "", fmt.Errorf("status endpoint returned %d", resp.StatusCode())
	}
	return resp.Result().(*models.StatusResponse).Status, nil
}

// WaitForPayment polls until the order leaves payment_pending and returns
// the new status. Transient failures are logged and the next tick retries;
// an unknown tracking code or a cancelled context ends the wait.
func (p *Poller) WaitForPayment(ctx context.Context, trackCode string) (models.OrderStatus, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		status, err := p.Status(ctx, trackCode)
		switch {
		case errors.Is(err, ErrUnknownOrder):
			return "", err
		case err != nil:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			p.log.Warn("POLLER", fmt.Sprintf("Status check for %s failed: %v", trackCode, err))
		case status != models.StatusPaymentPending:
			p.log.LogOrder("POLLED", trackCode, "Status changed to "+string(status))
			return status, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// TrackingPath is where the customer lands once payment settles.
func TrackingPath(trackCode string) string {
	return "/track/" + url.PathEscape(trackCode)
}
