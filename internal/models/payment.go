package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PaymentSuccess is the provider sentinel for a captured payment.
const PaymentSuccess = "SUCCESS"

// WebhookPayload is what the payment provider posts on payment outcome.
type WebhookPayload struct {
	OrderID       string `json:"orderId" binding:"required"`
	PaymentStatus string `json:"paymentStatus" binding:"required"`
	ProviderTxnID string `json:"provider_txn_id"`
}

// PaymentLink is a single-use, time-boxed checkout token.
type PaymentLink struct {
	bun.BaseModel `bun:"table:payment_links"`

	ID        string    `json:"id" bun:"id,pk"`
	OrderID   string    `json:"order_id" bun:"order_id,notnull"`
	Token     string    `json:"token" bun:"token,notnull,unique"`
	ExpiresAt time.Time `json:"expires_at" bun:"expires_at,notnull"`
	Used      bool      `json:"used" bun:"used,notnull"`
	CreatedAt time.Time `json:"created_at" bun:"created_at,notnull"`
}

// ConfirmationResult is the webhook outcome. AlreadyProcessed marks a
// duplicate delivery that changed nothing.
type ConfirmationResult struct {
	OrderID          string      `json:"order_id"`
	Status           OrderStatus `json:"status"`
	AlreadyProcessed bool        `json:"already_processed"`
}

type IssuedLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Redemption is where a redeemed magic link sends the customer.
type Redemption struct {
	OrderID     string `json:"order_id"`
	TrackCode   string `json:"track_code"`
	CheckoutURL string `json:"checkout_url"`
}

type Restaurant struct {
	bun.BaseModel `bun:"table:restaurants"`

	ID      string `json:"id" bun:"id,pk"`
	OwnerID string `json:"owner_id" bun:"owner_id,notnull"`
	Name    string `json:"name" bun:"name,notnull"`
	Slug    string `json:"slug" bun:"slug,notnull,unique"`
	UPIID   string `json:"upi_id" bun:"upi_id"`
}

// Principal is an authenticated staff user. A nil *Principal means a
// public or system caller.
type Principal struct {
	UserID string
}
