package reservation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/seatwise/seat-reservation-system/internal/domain"
)

const defaultSubscriberBuffer = 64

// Broadcaster fans seat-state deltas out to every subscriber of a showing.
// Deltas for one showing are totally ordered by a sequence number; writers
// run their state change and its Publish inside one Sequence call, which is
// what makes the sequence order agree with the per-seat mutation order.
// Publishing never blocks on a subscriber.
type Broadcaster struct {
	mu       sync.RWMutex
	showings map[int]*showingFeed
	buffer   int
	logger   *slog.Logger
}

type showingFeed struct {
	// stage serializes state mutations with the Publish that announces
	// them; without it a later mutation could grab an earlier Seq.
	stage sync.Mutex

	mu   sync.Mutex
	seq  uint64
	subs map[*Subscription]struct{}
}

// Subscription delivers a showing's deltas in publish order on C. The
// channel is closed when the subscriber falls too far behind or Close is
// called; a closed subscriber must resubscribe and snapshot again.
type Subscription struct {
	C    <-chan domain.SeatDelta
	ch   chan domain.SeatDelta
	feed *showingFeed
	once sync.Once
}

func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		showings: make(map[int]*showingFeed),
		buffer:   defaultSubscriberBuffer,
		logger:   logger,
	}
}

func (b *Broadcaster) feed(showingID int) *showingFeed {
	b.mu.RLock()
	f, ok := b.showings[showingID]
	b.mu.RUnlock()

	if ok {
		return f
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if f, ok = b.showings[showingID]; !ok {
		f = &showingFeed{subs: make(map[*Subscription]struct{})}
		b.showings[showingID] = f
	}

	return f
}

func (b *Broadcaster) Subscribe(showingID int) *Subscription {
	f := b.feed(showingID)

	sub := &Subscription{
		ch:   make(chan domain.SeatDelta, b.buffer),
		feed: f,
	}
	sub.C = sub.ch

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	return sub
}

func (s *Subscription) Close() {
	s.feed.mu.Lock()
	s.detachLocked()
	s.feed.mu.Unlock()
}

// detachLocked removes the subscription from its feed and closes the
// channel. Callers must hold the feed mutex.
func (s *Subscription) detachLocked() {
	if _, ok := s.feed.subs[s]; !ok {
		return
	}

	delete(s.feed.subs, s)
	s.once.Do(func() { close(s.ch) })
}

// Sequence runs fn under the showing's ordering stage. Every seat-state
// mutation and the Publish announcing it run inside one Sequence call, so
// two operations racing for the same seat can never publish their deltas
// in the reverse of the order their mutations took effect.
func (b *Broadcaster) Sequence(showingID int, fn func()) {
	f := b.feed(showingID)

	f.stage.Lock()
	defer f.stage.Unlock()

	fn()
}

// Publish emits one delta for the given seats and their new state. It is
// called after the underlying state change is durable, never before, and
// always from inside the Sequence call that performed the change.
func (b *Broadcaster) Publish(showingID int, seatIDs []int, state domain.SeatState) {
	if len(seatIDs) == 0 {
		return
	}

	f := b.feed(showingID)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	delta := domain.SeatDelta{
		ShowingID: showingID,
		SeatIDs:   seatIDs,
		State:     state,
		Seq:       f.seq,
		Timestamp: time.Now(),
	}

	for sub := range f.subs {
		select {
		case sub.ch <- delta:
		default:
			// A full buffer means the subscriber stopped reading. Cut it
			// loose so it resubscribes from a fresh snapshot.
			sub.detachLocked()
			b.logger.Warn("dropped slow seat-delta subscriber", "showing_id", showingID)
		}
	}
}

// Seq returns the showing's current sequence number. A snapshot taken after
// reading Seq is consistent with every delta whose Seq is greater. Reading
// the sequence of a showing nothing has published to does not allocate a
// feed for it.
func (b *Broadcaster) Seq(showingID int) uint64 {
	b.mu.RLock()
	f, ok := b.showings[showingID]
	b.mu.RUnlock()

	if !ok {
		return 0
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.seq
}
