package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaperVenue simulates execution without contacting any exchange. Orders
// fill at their entry price.
type PaperVenue struct {
	mu     sync.Mutex
	placed []Order
}

var _ Venue = (*PaperVenue)(nil)

// NewPaperVenue creates an in-memory paper venue.
func NewPaperVenue() *PaperVenue {
	return &PaperVenue{}
}

func (p *PaperVenue) Name() string { return "paper" }

// PlaceOrder records the order and returns a simulated fill.
func (p *PaperVenue) PlaceOrder(ctx context.Context, order Order) (*Fill, error) {
	if order.Units <= 0 {
		return nil, Terminalf("units must be > 0, got %g", order.Units)
	}

	p.mu.Lock()
	p.placed = append(p.placed, order)
	p.mu.Unlock()

	id := uuid.New().String()
	return &Fill{
		VenueOrderID: id,
		Price:        order.Entry,
		Units:        order.Units,
		Raw:          fmt.Sprintf(`{"paper":true,"order_id":%q,"symbol":%q}`, id, order.Symbol),
		CreateTime:   time.Now().UTC(),
	}, nil
}

// Placed returns a copy of all simulated orders, oldest first.
func (p *PaperVenue) Placed() []Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Order, len(p.placed))
	copy(out, p.placed)
	return out
}
