package ledger

import (
	"context"
	"log/slog"

	"github.com/seatwise/seat-reservation-system/internal/domain"
)

// LogBookingLedger records bookings in the structured log. It is the
// fallback for deployments without a broker and keeps dev mode runnable.
type LogBookingLedger struct {
	logger *slog.Logger
}

func NewLogBookingLedger(logger *slog.Logger) *LogBookingLedger {
	return &LogBookingLedger{logger: logger}
}

func (l *LogBookingLedger) Append(ctx context.Context, booking domain.Booking) error {
	l.logger.Info("booking confirmed",
		"booking_id", booking.ID,
		"showing_id", booking.ShowingID,
		"seat_ids", booking.SeatIDs,
		"owner_id", booking.OwnerID,
		"total_price", booking.TotalPrice.String(),
		"committed_at", booking.CommittedAt,
	)

	return nil
}
