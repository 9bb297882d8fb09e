package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/seatwise/seat-reservation-system/internal/domain"
)

// MemorySeatRegistry keeps the seat registry in process memory. It exists
// for single-node dev mode and for tests that need a fresh registry per
// case; it honors the same atomicity contract as the postgres registry.
type MemorySeatRegistry struct {
	mu       sync.RWMutex
	showings map[int]map[int]domain.Seat
	fences   map[seatRef]int64
}

type seatRef struct {
	showingID int
	seatID    int
}

func NewMemorySeatRegistry() *MemorySeatRegistry {
	return &MemorySeatRegistry{
		showings: make(map[int]map[int]domain.Seat),
		fences:   make(map[seatRef]int64),
	}
}

// Provision installs a showing's seat map. Seats start available unless the
// given seat says otherwise.
func (m *MemorySeatRegistry) Provision(showingID int, seats []domain.Seat) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := make(map[int]domain.Seat, len(seats))
	for _, seat := range seats {
		if seat.Status == "" {
			seat.Status = domain.SeatStatusAvailable
		}
		byID[seat.ID] = seat
	}

	m.showings[showingID] = byID
}

func (m *MemorySeatRegistry) ListSeats(ctx context.Context, showingID int) ([]domain.Seat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID, ok := m.showings[showingID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	seats := make([]domain.Seat, 0, len(byID))
	for _, seat := range byID {
		seats = append(seats, seat)
	}

	sort.Slice(seats, func(i, j int) bool {
		if seats[i].Row != seats[j].Row {
			return seats[i].Row < seats[j].Row
		}
		return seats[i].Col < seats[j].Col
	})

	return seats, nil
}

func (m *MemorySeatRegistry) GetStatus(ctx context.Context, showingID, seatID int) (domain.SeatStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seat, err := m.seatLocked(showingID, seatID)
	if err != nil {
		return "", err
	}

	return seat.Status, nil
}

func (m *MemorySeatRegistry) MarkOccupied(ctx context.Context, showingID int, seatIDs []int, fence int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate the whole set before mutating anything so a failure never
	// leaves a torn write.
	for _, seatID := range seatIDs {
		seat, err := m.seatLocked(showingID, seatID)
		if err != nil {
			return err
		}

		if seat.Status == domain.SeatStatusOccupied {
			return fmt.Errorf("seat %d: %w", seatID, domain.ErrSeatOccupied)
		}
	}

	for _, seatID := range seatIDs {
		seat := m.showings[showingID][seatID]
		seat.Status = domain.SeatStatusOccupied
		m.showings[showingID][seatID] = seat
		m.fences[seatRef{showingID, seatID}] = fence
	}

	return nil
}

func (m *MemorySeatRegistry) seatLocked(showingID, seatID int) (domain.Seat, error) {
	byID, ok := m.showings[showingID]
	if !ok {
		return domain.Seat{}, domain.ErrRecordNotFound
	}

	seat, ok := byID[seatID]
	if !ok {
		return domain.Seat{}, fmt.Errorf("seat %d: %w", seatID, domain.ErrRecordNotFound)
	}

	return seat, nil
}
