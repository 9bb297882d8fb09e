package domain

import "time"

// SeatState is the authoritative per-seat view derived from the seat
// registry and the lock table together.
type SeatState string

const (
	SeatStateAvailable SeatState = "available"
	SeatStateHeld      SeatState = "held"
	SeatStateOccupied  SeatState = "occupied"
)

// SeatDelta is one seat-state change event. Seq is a per-showing monotonic
// sequence number; subscribers apply a delta only when its Seq is greater
// than the watermark of the snapshot they started from.
type SeatDelta struct {
	ShowingID int       `json:"showing_id"`
	SeatIDs   []int     `json:"seat_ids"`
	State     SeatState `json:"state"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}
