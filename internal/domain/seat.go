package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusOccupied  SeatStatus = "occupied"
)

type SeatCategory string

const (
	SeatCategoryStandard SeatCategory = "standard"
	SeatCategoryPremium  SeatCategory = "premium"
	SeatCategorySuite    SeatCategory = "suite"
)

type Seat struct {
	ID       int
	Row      int
	Col      int
	Category SeatCategory
	Price    decimal.Decimal
	Status   SeatStatus
}

// SeatRegistry is the durable source of truth for a showing's seat set.
// MarkOccupied is its only mutator and must be atomic across the whole seat
// set it is given: either every seat flips to occupied or none does.
type SeatRegistry interface {
	ListSeats(ctx context.Context, showingID int) ([]Seat, error)
	GetStatus(ctx context.Context, showingID, seatID int) (SeatStatus, error)

	// MarkOccupied flips the given seats to occupied. The fence is the
	// highest hold version in the committing set and is recorded on the
	// flipped rows so stale commits are detectable after the fact.
	// Returns ErrSeatOccupied if any seat is already occupied and
	// ErrRecordNotFound for an unknown showing or seat, with no partial
	// effect in either case.
	MarkOccupied(ctx context.Context, showingID int, seatIDs []int, fence int64) error
}
