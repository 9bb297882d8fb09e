package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/seatwise/seat-reservation-system/internal/domain"
)

type MockSeatRegistry struct {
	mock.Mock
}

func (m *MockSeatRegistry) ListSeats(ctx context.Context, showingID int) ([]domain.Seat, error) {
	args := m.Called(ctx, showingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Seat), args.Error(1)
}

func (m *MockSeatRegistry) GetStatus(ctx context.Context, showingID, seatID int) (domain.SeatStatus, error) {
	args := m.Called(ctx, showingID, seatID)
	return args.Get(0).(domain.SeatStatus), args.Error(1)
}

func (m *MockSeatRegistry) MarkOccupied(ctx context.Context, showingID int, seatIDs []int, fence int64) error {
	args := m.Called(ctx, showingID, seatIDs, fence)
	return args.Error(0)
}
