package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/seatwise/seat-reservation-system/internal/domain"
)

// Coordinator is the public entry point for hold, extend, release and
// commit operations. It is the sole writer of hold and seat-status
// transitions; the registry, lock table and broadcaster only act when told.
type Coordinator struct {
	registry      domain.SeatRegistry
	locks         domain.LockTable
	broadcaster   *Broadcaster
	ledger        domain.BookingLedger
	logger        *slog.Logger
	ttl           time.Duration
	maxExtensions int
	now           func() time.Time
}

func NewCoordinator(
	registry domain.SeatRegistry,
	locks domain.LockTable,
	broadcaster *Broadcaster,
	ledger domain.BookingLedger,
	logger *slog.Logger,
	ttl time.Duration,
	maxExtensions int) *Coordinator {

	return &Coordinator{
		registry:      registry,
		locks:         locks,
		broadcaster:   broadcaster,
		ledger:        ledger,
		logger:        logger,
		ttl:           ttl,
		maxExtensions: maxExtensions,
		now:           time.Now,
	}
}

// HoldSet is the result of a fully satisfied hold call.
type HoldSet struct {
	ShowingID int
	Holds     []domain.Hold
	ExpiresAt time.Time
}

// SeatView is one seat of the authoritative seat map: the registry row
// merged with the live lock state.
type SeatView struct {
	domain.Seat
	State domain.SeatState
}

// Hold acquires every requested seat or none of them. If any seat is
// denied, the acquires that succeeded in this call are released before a
// HoldConflictError is returned, so the caller never ends up holding a
// subset of what it asked for.
func (c *Coordinator) Hold(ctx context.Context, showingID int, seatIDs []int, ownerID string) (*HoldSet, error) {
	seatIDs = dedupe(seatIDs)
	if len(seatIDs) == 0 {
		return nil, errors.New("no seats requested")
	}

	seats, err := c.seatsByID(ctx, showingID, seatIDs)
	if err != nil {
		return nil, err
	}

	var (
		granted []domain.Hold
		holdErr error
	)

	// Acquires and the delta announcing them run as one sequenced unit so
	// the published Seq matches the order the seats actually changed hands.
	c.broadcaster.Sequence(showingID, func() {
		var denied []domain.SeatDenial

		for _, seatID := range seatIDs {
			if seats[seatID].Status == domain.SeatStatusOccupied {
				denied = append(denied, domain.SeatDenial{SeatID: seatID, Reason: domain.DenialReasonOccupied})
				continue
			}

			hold, err := c.locks.TryAcquire(ctx, showingID, seatID, ownerID, c.ttl)
			if err != nil {
				if errors.Is(err, domain.ErrSeatHeld) {
					denied = append(denied, domain.SeatDenial{SeatID: seatID, Reason: domain.DenialReasonHeld})
					continue
				}

				c.rollback(ctx, granted, ownerID)
				granted = nil
				holdErr = fmt.Errorf("acquiring seat %d: %w", seatID, err)

				return
			}

			granted = append(granted, *hold)
		}

		if len(denied) > 0 {
			c.rollback(ctx, granted, ownerID)
			granted = nil
			holdErr = &domain.HoldConflictError{Denied: denied}

			return
		}

		c.broadcaster.Publish(showingID, seatIDs, domain.SeatStateHeld)
	})

	if holdErr != nil {
		return nil, holdErr
	}

	return &HoldSet{
		ShowingID: showingID,
		Holds:     granted,
		ExpiresAt: granted[0].ExpiresAt,
	}, nil
}

// rollback releases the holds acquired earlier in the same call. Only those
// holds are touched; anything the owner held before the call stays put.
func (c *Coordinator) rollback(ctx context.Context, granted []domain.Hold, ownerID string) {
	for _, hold := range granted {
		err := c.locks.Release(ctx, hold.ShowingID, hold.SeatID, ownerID)
		if err != nil && !errors.Is(err, domain.ErrHoldNotFound) {
			c.logger.Error("failed to roll back seat hold",
				"showing_id", hold.ShowingID, "seat_id", hold.SeatID, "error", err)
		}
	}
}

// ExtendHold resets the TTL of every listed seat the caller still holds.
// Seats that were lost in the meantime are reported in an
// ExtendConflictError; extensions that succeeded are not rolled back.
func (c *Coordinator) ExtendHold(ctx context.Context, showingID int, seatIDs []int, ownerID string) ([]domain.Hold, error) {
	seatIDs = dedupe(seatIDs)

	var (
		extended []domain.Hold
		failed   []domain.SeatDenial
	)

	for _, seatID := range seatIDs {
		if c.maxExtensions > 0 {
			hold, err := c.locks.Peek(ctx, showingID, seatID)
			if err != nil {
				return extended, fmt.Errorf("inspecting hold on seat %d: %w", seatID, err)
			}

			if hold != nil && hold.OwnerID == ownerID && hold.Extensions >= c.maxExtensions {
				failed = append(failed, domain.SeatDenial{SeatID: seatID, Reason: domain.DenialReasonLimit})
				continue
			}
		}

		hold, err := c.locks.Extend(ctx, showingID, seatID, ownerID, c.ttl)
		switch {
		case err == nil:
			extended = append(extended, *hold)
		case errors.Is(err, domain.ErrHoldNotFound), errors.Is(err, domain.ErrHoldExpired):
			failed = append(failed, domain.SeatDenial{SeatID: seatID, Reason: domain.DenialReasonExpired})
		case errors.Is(err, domain.ErrNotOwner):
			failed = append(failed, domain.SeatDenial{SeatID: seatID, Reason: domain.DenialReasonNotOwner})
		default:
			return extended, fmt.Errorf("extending hold on seat %d: %w", seatID, err)
		}
	}

	if len(failed) > 0 {
		return extended, &domain.ExtendConflictError{Failed: failed}
	}

	return extended, nil
}

// Release frees the listed seats the caller holds. Seats the caller does
// not hold are skipped silently; releasing them is an idempotent no-op.
func (c *Coordinator) Release(ctx context.Context, showingID int, seatIDs []int, ownerID string) error {
	seatIDs = dedupe(seatIDs)

	var relErr error

	c.broadcaster.Sequence(showingID, func() {
		var released []int

		for _, seatID := range seatIDs {
			err := c.locks.Release(ctx, showingID, seatID, ownerID)
			switch {
			case err == nil:
				released = append(released, seatID)
			case errors.Is(err, domain.ErrHoldNotFound), errors.Is(err, domain.ErrNotOwner):
				// Not ours or already gone, nothing to do.
			default:
				relErr = fmt.Errorf("releasing seat %d: %w", seatID, err)
				return
			}
		}

		c.broadcaster.Publish(showingID, released, domain.SeatStateAvailable)
	})

	return relErr
}

// Commit converts the caller's holds on the listed seats into a Booking.
// The lock table validates ownership and expiry and removes the holds in
// one atomic step; only then does the registry flip the seats to occupied.
// If validation fails, no seat is marked occupied and no hold is touched.
func (c *Coordinator) Commit(ctx context.Context, showingID int, seatIDs []int, ownerID string) (*domain.Booking, error) {
	seatIDs = dedupe(seatIDs)
	if len(seatIDs) == 0 {
		return nil, errors.New("no seats requested")
	}

	seats, err := c.seatsByID(ctx, showingID, seatIDs)
	if err != nil {
		return nil, err
	}

	var (
		fence     int64
		commitErr error
	)

	// Sequencing the whole validate-remove-flip-publish chain keeps the
	// occupied delta ahead of any held delta a racing acquire could emit.
	c.broadcaster.Sequence(showingID, func() {
		holds, err := c.locks.CommitOwned(ctx, showingID, seatIDs, ownerID)
		if err != nil {
			commitErr = err
			return
		}

		for _, hold := range holds {
			if hold.Version > fence {
				fence = hold.Version
			}
		}

		if err := c.registry.MarkOccupied(ctx, showingID, seatIDs, fence); err != nil {
			// The registry refused the flip, so reinstate the holds: the
			// caller keeps what it had and may retry.
			if restoreErr := c.locks.Restore(ctx, holds); restoreErr != nil {
				c.logger.Error("failed to restore holds after registry conflict",
					"showing_id", showingID, "error", restoreErr)
			}

			commitErr = fmt.Errorf("marking seats occupied: %w", err)

			return
		}

		c.broadcaster.Publish(showingID, seatIDs, domain.SeatStateOccupied)
	})

	if commitErr != nil {
		return nil, commitErr
	}

	committed := make([]domain.Seat, len(seatIDs))
	for i, seatID := range seatIDs {
		committed[i] = seats[seatID]
	}

	booking := domain.NewBooking(showingID, committed, ownerID, fence, c.now())

	// The ledger write happens after the seat-state transition is final; a
	// downstream failure must not undo the commit.
	if err := c.ledger.Append(ctx, booking); err != nil {
		c.logger.Error("failed to hand booking off to ledger", "booking_id", booking.ID, "error", err)
	}

	return &booking, nil
}

// SeatMap returns the full seat map of a showing with live states.
func (c *Coordinator) SeatMap(ctx context.Context, showingID int) ([]SeatView, error) {
	seats, err := c.registry.ListSeats(ctx, showingID)
	if err != nil {
		return nil, err
	}

	views := make([]SeatView, len(seats))

	for i, seat := range seats {
		views[i] = SeatView{Seat: seat, State: domain.SeatStateAvailable}

		if seat.Status == domain.SeatStatusOccupied {
			views[i].State = domain.SeatStateOccupied
			continue
		}

		hold, err := c.locks.Peek(ctx, showingID, seat.ID)
		if err != nil {
			return nil, err
		}

		if hold != nil {
			views[i].State = domain.SeatStateHeld
		}
	}

	return views, nil
}

// Snapshot returns the showing's seat states together with the broadcast
// sequence watermark. The watermark is read before the state so that a
// subscriber applying every delta with a greater sequence number can never
// miss a transition; duplicates are harmless because applying a delta is an
// idempotent state assignment.
func (c *Coordinator) Snapshot(ctx context.Context, showingID int) (map[int]domain.SeatState, uint64, error) {
	seq := c.broadcaster.Seq(showingID)

	views, err := c.SeatMap(ctx, showingID)
	if err != nil {
		return nil, 0, err
	}

	states := make(map[int]domain.SeatState, len(views))
	for _, view := range views {
		states[view.ID] = view.State
	}

	return states, seq, nil
}

func (c *Coordinator) seatsByID(ctx context.Context, showingID int, seatIDs []int) (map[int]domain.Seat, error) {
	seats, err := c.registry.ListSeats(ctx, showingID)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]domain.Seat, len(seats))
	for _, seat := range seats {
		byID[seat.ID] = seat
	}

	for _, seatID := range seatIDs {
		if _, ok := byID[seatID]; !ok {
			return nil, fmt.Errorf("seat %d: %w", seatID, domain.ErrRecordNotFound)
		}
	}

	return byID, nil
}

func dedupe(seatIDs []int) []int {
	seen := make(map[int]bool, len(seatIDs))
	out := seatIDs[:0:0]

	for _, id := range seatIDs {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	return out
}
