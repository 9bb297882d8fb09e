package reservation

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seatwise/seat-reservation-system/internal/domain"
)

// MemoryLockTable is the in-process lock table. Mutual exclusion is per
// seat: every seat has its own entry mutex, so callers racing for different
// seats of the same showing never block each other.
type MemoryLockTable struct {
	mu      sync.RWMutex
	entries map[seatKey]*seatEntry
	version atomic.Int64
	now     func() time.Time
}

type seatKey struct {
	showingID int
	seatID    int
}

type seatEntry struct {
	mu   sync.Mutex
	hold *domain.Hold
}

func NewMemoryLockTable() *MemoryLockTable {
	return &MemoryLockTable{
		entries: make(map[seatKey]*seatEntry),
		now:     time.Now,
	}
}

func (t *MemoryLockTable) entry(key seatKey) *seatEntry {
	t.mu.RLock()
	e, ok := t.entries[key]
	t.mu.RUnlock()

	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok = t.entries[key]; !ok {
		e = &seatEntry{}
		t.entries[key] = e
	}

	return e
}

func (t *MemoryLockTable) TryAcquire(
	ctx context.Context,
	showingID, seatID int,
	ownerID string,
	ttl time.Duration) (*domain.Hold, error) {

	e := t.entry(seatKey{showingID, seatID})

	e.mu.Lock()
	defer e.mu.Unlock()

	now := t.now()

	if e.hold != nil && !e.hold.Expired(now) {
		return nil, domain.ErrSeatHeld
	}

	hold := &domain.Hold{
		ShowingID:  showingID,
		SeatID:     seatID,
		OwnerID:    ownerID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
		Version:    t.version.Add(1),
	}
	e.hold = hold

	copied := *hold

	return &copied, nil
}

func (t *MemoryLockTable) Release(ctx context.Context, showingID, seatID int, ownerID string) error {
	e := t.entry(seatKey{showingID, seatID})

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hold == nil || e.hold.Expired(t.now()) {
		e.hold = nil
		return domain.ErrHoldNotFound
	}

	if e.hold.OwnerID != ownerID {
		return domain.ErrNotOwner
	}

	e.hold = nil

	return nil
}

func (t *MemoryLockTable) Extend(
	ctx context.Context,
	showingID, seatID int,
	ownerID string,
	ttl time.Duration) (*domain.Hold, error) {

	e := t.entry(seatKey{showingID, seatID})

	e.mu.Lock()
	defer e.mu.Unlock()

	now := t.now()

	if e.hold == nil {
		return nil, domain.ErrHoldNotFound
	}

	if e.hold.Expired(now) {
		e.hold = nil
		return nil, domain.ErrHoldExpired
	}

	if e.hold.OwnerID != ownerID {
		return nil, domain.ErrNotOwner
	}

	// Extension resets the TTL from now, it does not add to the original expiry.
	e.hold.ExpiresAt = now.Add(ttl)
	e.hold.Extensions++

	copied := *e.hold

	return &copied, nil
}

func (t *MemoryLockTable) Peek(ctx context.Context, showingID, seatID int) (*domain.Hold, error) {
	e := t.entry(seatKey{showingID, seatID})

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hold == nil || e.hold.Expired(t.now()) {
		return nil, nil
	}

	copied := *e.hold

	return &copied, nil
}

// CommitOwned locks every requested seat entry in key order, verifies each
// hold is live and owned by the caller, and removes them together. On any
// failed check no hold is touched.
func (t *MemoryLockTable) CommitOwned(
	ctx context.Context,
	showingID int,
	seatIDs []int,
	ownerID string) ([]domain.Hold, error) {

	sorted := make([]int, len(seatIDs))
	copy(sorted, seatIDs)
	sort.Ints(sorted)

	entries := make([]*seatEntry, len(sorted))
	for i, seatID := range sorted {
		entries[i] = t.entry(seatKey{showingID, seatID})
	}

	for _, e := range entries {
		e.mu.Lock()
	}
	defer func() {
		for _, e := range entries {
			e.mu.Unlock()
		}
	}()

	now := t.now()

	var lost []domain.SeatDenial
	for i, e := range entries {
		switch {
		case e.hold == nil || e.hold.Expired(now):
			lost = append(lost, domain.SeatDenial{SeatID: sorted[i], Reason: domain.DenialReasonExpired})
		case e.hold.OwnerID != ownerID:
			lost = append(lost, domain.SeatDenial{SeatID: sorted[i], Reason: domain.DenialReasonNotOwner})
		}
	}

	if len(lost) > 0 {
		return nil, &domain.CommitConflictError{Lost: lost}
	}

	removed := make([]domain.Hold, len(entries))
	for i, e := range entries {
		removed[i] = *e.hold
		e.hold = nil
	}

	return removed, nil
}

func (t *MemoryLockTable) Restore(ctx context.Context, holds []domain.Hold) error {
	for _, hold := range holds {
		e := t.entry(seatKey{hold.ShowingID, hold.SeatID})

		e.mu.Lock()
		if e.hold == nil {
			restored := hold
			e.hold = &restored
		}
		e.mu.Unlock()
	}

	return nil
}

func (t *MemoryLockTable) ReapExpired(ctx context.Context, now time.Time) ([]domain.Hold, error) {
	t.mu.RLock()
	snapshot := make([]*seatEntry, 0, len(t.entries))
	for _, e := range t.entries {
		snapshot = append(snapshot, e)
	}
	t.mu.RUnlock()

	var reaped []domain.Hold

	for _, e := range snapshot {
		e.mu.Lock()
		if e.hold != nil && e.hold.Expired(now) {
			reaped = append(reaped, *e.hold)
			e.hold = nil
		}
		e.mu.Unlock()
	}

	return reaped, nil
}
