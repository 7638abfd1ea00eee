package qr

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const fallbackRenderer = "https://api.qrserver.com/v1/create-qr-code/"

type renderRequest struct {
	Text string `json:"text"`
	Size int    `json:"size"`
}

type renderResponse struct {
	QR    string `json:"qr"`
	URL   string `json:"url"`
	Error string `json:"error"`
}

// ErrNoRenderer means neither a rendering function nor the public fallback
// is configured.
var ErrNoRenderer = errors.New("no qr renderer configured")

// Client renders payment QR codes through an external rendering function.
// The public renderer, which receives the full UPI link, is used only when
// publicFallback is set.
type Client struct {
	httpClient     *resty.Client
	functionURL    string
	publicFallback bool
}

func NewClient(functionURL string, publicFallback bool) *Client {
	return &Client{
		httpClient:     resty.New().SetTimeout(5 * time.Second),
		functionURL:    strings.TrimSpace(functionURL),
		publicFallback: publicFallback,
	}
}

// Render returns an image reference, either a data URI or an https URL.
func (c *Client) Render(ctx context.Context, link string) (string, error) {
	if link == "" {
		return "", errors.New("empty link")
	}
	if c.functionURL == "" {
		if !c.publicFallback {
			return "", ErrNoRenderer
		}
		return fallbackRenderer + "?size=300x300&data=" + url.QueryEscape(link), nil
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(renderRequest{Text: link, Size: 300}).
		SetResult(&renderResponse{}).
		Post(c.functionURL)
	if err != nil {
		return "", fmt.Errorf("qr function call failed: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", fmt.Errorf("qr function non-2xx: %d", resp.StatusCode())
	}

	out := resp.Result().(*renderResponse)
	switch {
	case out.QR != "":
		return out.QR, nil
	case out.URL != "":
		return out.URL, nil
	case out.Error != "":
		return "", fmt.Errorf("qr function error: %s", out.Error)
	}
	return "", errors.New("qr function returned no image")
}
