package domain

import (
	"context"
	"time"
)

// Hold is a time-bounded exclusive claim on one seat by one owner. At most
// one active hold may exist per seat; an occupied seat never has one.
type Hold struct {
	ShowingID  int       `json:"showing_id"`
	SeatID     int       `json:"seat_id"`
	OwnerID    string    `json:"owner_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Version    int64     `json:"version"`
	Extensions int       `json:"extensions"`
}

// Expired reports whether the hold's TTL has passed. Every reader must make
// this check itself instead of trusting the reaper to have run.
func (h Hold) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// LockTable maps seats to active holds. TryAcquire is an atomic
// check-and-set per seat: two racing calls for the same seat yield exactly
// one hold. Granularity is per seat, never per showing.
type LockTable interface {
	// TryAcquire creates a hold if the seat has none. Returns ErrSeatHeld
	// when another owner already holds the seat.
	TryAcquire(ctx context.Context, showingID, seatID int, ownerID string, ttl time.Duration) (*Hold, error)

	// Release removes the caller's hold. Returns ErrNotOwner when the seat
	// is held by someone else and ErrHoldNotFound when there is no hold.
	Release(ctx context.Context, showingID, seatID int, ownerID string) error

	// Extend resets the hold's expiry to now+ttl. Returns ErrNotOwner for a
	// foreign hold and ErrHoldExpired when the hold's TTL has already
	// passed; the caller must treat the latter as never having held the seat.
	Extend(ctx context.Context, showingID, seatID int, ownerID string, ttl time.Duration) (*Hold, error)

	// Peek returns the active hold for a seat, or nil when there is none.
	// A past-expiry hold is reported as absent.
	Peek(ctx context.Context, showingID, seatID int) (*Hold, error)

	// CommitOwned atomically verifies that every listed seat carries a
	// non-expired hold owned by ownerID and removes them. All-or-nothing:
	// if any seat fails the check, no hold is touched and a
	// CommitConflictError naming the lost seats is returned.
	CommitOwned(ctx context.Context, showingID int, seatIDs []int, ownerID string) ([]Hold, error)

	// Restore reinstates previously removed holds with their original
	// expiry. Used to undo CommitOwned when the registry flip fails.
	Restore(ctx context.Context, holds []Hold) error

	// ReapExpired removes every hold whose expiry has passed and returns
	// them so the freed seats can be republished. Reaping an already
	// removed hold is a no-op.
	ReapExpired(ctx context.Context, now time.Time) ([]Hold, error)
}
