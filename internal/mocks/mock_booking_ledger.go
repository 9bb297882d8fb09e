package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/seatwise/seat-reservation-system/internal/domain"
)

type MockBookingLedger struct {
	mock.Mock
}

func (m *MockBookingLedger) Append(ctx context.Context, booking domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}
