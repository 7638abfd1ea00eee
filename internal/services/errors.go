package services

import "errors"

var (
	// ErrOrderNotFound is also returned when the order belongs to another
	// restaurant, so callers cannot probe for foreign orders.
	ErrOrderNotFound       = errors.New("order not found or you do not have permission")
	ErrRestaurantNotFound  = errors.New("restaurant not found")
	ErrInvalidStatus       = errors.New("unrecognized order status")
	ErrValidation          = errors.New("invalid request")
	ErrOrderNotPayable     = errors.New("order is not awaiting payment")
	ErrLinkNotFound        = errors.New("payment link not found")
	ErrLinkUsed            = errors.New("payment link already used")
	ErrLinkExpired         = errors.New("payment link expired")
	ErrItemMaterialization = errors.New("failed to materialize order items")
	ErrUnauthorized        = errors.New("authentication required")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
)
