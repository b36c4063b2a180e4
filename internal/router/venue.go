package router

import (
	"context"
	"time"
)

// Order sides on the venue wire.
const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"
)

// Order is the normalized order handed to a venue implementation.
// ClientOrderID is the idempotency token derived from the alert id; venues
// that support it must tag the outgoing order with it so a retry after a
// lost response cannot fill twice.
type Order struct {
	ClientOrderID string
	Symbol        string
	Side          string
	Entry         float64
	Stop          float64
	Units         float64
}

// Fill is a venue's structured response to a placed order.
type Fill struct {
	VenueOrderID string
	Price        float64
	Units        float64
	Raw          string
	CreateTime   time.Time
}

// Venue is the minimal surface a venue implementation must provide.
type Venue interface {
	Name() string
	PlaceOrder(ctx context.Context, order Order) (*Fill, error)
}
