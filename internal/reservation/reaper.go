package reservation

import (
	"context"
	"log/slog"
	"time"

	"github.com/seatwise/seat-reservation-system/internal/domain"
)

// Reaper guarantees that no hold outlives its TTL by more than one reap
// interval. It is a liveness optimization only: every lock table read also
// checks expiry itself, so a late reaper can never cause a safety violation.
type Reaper struct {
	locks       domain.LockTable
	broadcaster *Broadcaster
	interval    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func NewReaper(locks domain.LockTable, broadcaster *Broadcaster, interval time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		locks:       locks,
		broadcaster: broadcaster,
		interval:    interval,
		logger:      logger,
		now:         time.Now,
	}
}

// Run reaps expired holds until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("seat hold reaper started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("seat hold reaper stopped")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *Reaper) reap(ctx context.Context) {
	reaped, err := r.locks.ReapExpired(ctx, r.now())
	if err != nil {
		r.logger.Error("failed to reap expired seat holds", "error", err)
		return
	}

	if len(reaped) == 0 {
		return
	}

	freedByShowing := make(map[int][]int)
	for _, hold := range reaped {
		freedByShowing[hold.ShowingID] = append(freedByShowing[hold.ShowingID], hold.SeatID)
	}

	for showingID, seatIDs := range freedByShowing {
		r.broadcaster.Sequence(showingID, func() {
			// The sweep ran outside the showing's ordering stage, so a seat
			// may have been retaken since. Skip any seat carrying a live hold
			// again; its held delta must not be contradicted.
			freed := make([]int, 0, len(seatIDs))

			for _, seatID := range seatIDs {
				hold, err := r.locks.Peek(ctx, showingID, seatID)
				if err != nil {
					r.logger.Error("failed to re-check reaped seat hold",
						"showing_id", showingID, "seat_id", seatID, "error", err)
					continue
				}

				if hold == nil {
					freed = append(freed, seatID)
				}
			}

			r.broadcaster.Publish(showingID, freed, domain.SeatStateAvailable)
		})

		r.logger.Info("released expired seat holds", "showing_id", showingID, "seats", len(seatIDs))
	}
}
