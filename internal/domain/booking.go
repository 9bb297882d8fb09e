package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Booking is the artifact a successful commit hands to the external booking
// ledger. Once it is handed off, this subsystem's responsibility ends.
type Booking struct {
	ID          string          `json:"id"`
	ShowingID   int             `json:"showing_id"`
	SeatIDs     []int           `json:"seat_ids"`
	OwnerID     string          `json:"owner_id"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Fence       int64           `json:"fence"`
	CommittedAt time.Time       `json:"committed_at"`
}

func NewBooking(showingID int, seats []Seat, ownerID string, fence int64, committedAt time.Time) Booking {
	seatIDs := make([]int, len(seats))
	total := decimal.Zero

	for i, seat := range seats {
		seatIDs[i] = seat.ID
		total = total.Add(seat.Price)
	}

	return Booking{
		ID:          uuid.New().String(),
		ShowingID:   showingID,
		SeatIDs:     seatIDs,
		OwnerID:     ownerID,
		TotalPrice:  total,
		Fence:       fence,
		CommittedAt: committedAt,
	}
}

// BookingLedger receives booking artifacts for durable storage and
// downstream ticket generation. The write happens after the seat-state
// transition is finalized, never inside a seat critical section.
type BookingLedger interface {
	Append(ctx context.Context, booking Booking) error
}
