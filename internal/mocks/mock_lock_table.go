package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/seatwise/seat-reservation-system/internal/domain"
)

type MockLockTable struct {
	mock.Mock
}

func (m *MockLockTable) TryAcquire(
	ctx context.Context,
	showingID, seatID int,
	ownerID string,
	ttl time.Duration) (*domain.Hold, error) {

	args := m.Called(ctx, showingID, seatID, ownerID, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Hold), args.Error(1)
}

func (m *MockLockTable) Release(ctx context.Context, showingID, seatID int, ownerID string) error {
	args := m.Called(ctx, showingID, seatID, ownerID)
	return args.Error(0)
}

func (m *MockLockTable) Extend(
	ctx context.Context,
	showingID, seatID int,
	ownerID string,
	ttl time.Duration) (*domain.Hold, error) {

	args := m.Called(ctx, showingID, seatID, ownerID, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Hold), args.Error(1)
}

func (m *MockLockTable) Peek(ctx context.Context, showingID, seatID int) (*domain.Hold, error) {
	args := m.Called(ctx, showingID, seatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Hold), args.Error(1)
}

func (m *MockLockTable) CommitOwned(
	ctx context.Context,
	showingID int,
	seatIDs []int,
	ownerID string) ([]domain.Hold, error) {

	args := m.Called(ctx, showingID, seatIDs, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Hold), args.Error(1)
}

func (m *MockLockTable) Restore(ctx context.Context, holds []domain.Hold) error {
	args := m.Called(ctx, holds)
	return args.Error(0)
}

func (m *MockLockTable) ReapExpired(ctx context.Context, now time.Time) ([]domain.Hold, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Hold), args.Error(1)
}
