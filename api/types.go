// Package api defines the request and response types of the seat
// reservation HTTP surface.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Message   string       `json:"message"`
	RequestId string       `json:"requestId,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Seats     []DeniedSeat `json:"seats,omitempty"`
}

type DeniedSeat struct {
	SeatId int    `json:"seatId"`
	Reason string `json:"reason"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	RequestId        string            `json:"requestId,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
	ValidationErrors []ValidationError `json:"validationErrors"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type SeatMapResponse struct {
	ShowingId int       `json:"showingId"`
	SeatRows  []SeatRow `json:"seatRows"`
}

type SeatRow struct {
	Row   int    `json:"row"`
	Seats []Seat `json:"seats"`
}

type Seat struct {
	Id       int             `json:"id"`
	Row      int             `json:"row"`
	Column   int             `json:"column"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	State    string          `json:"state"`
}

type SeatSetRequest struct {
	SeatIdList []int `json:"seatIdList" validate:"required,min=1,max=10,dive,min=1"`
}

type HoldResponse struct {
	ShowingId int        `json:"showingId"`
	Seats     []HeldSeat `json:"seats"`
	ExpiresAt time.Time  `json:"expiresAt"`
	HoldTime  int        `json:"holdTime"`
}

type HeldSeat struct {
	Id        int       `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
	Version   int64     `json:"version"`
}

type ExtendHoldResponse struct {
	ShowingId int        `json:"showingId"`
	Seats     []HeldSeat `json:"seats"`
}

type BookingResponse struct {
	BookingId   string          `json:"bookingId"`
	ShowingId   int             `json:"showingId"`
	SeatIds     []int           `json:"seatIds"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	CommittedAt time.Time       `json:"committedAt"`
}

// SnapshotEvent is the first SSE event on a seat stream. Subscribers apply
// only deltas with a sequence number greater than Seq.
type SnapshotEvent struct {
	ShowingId int            `json:"showingId"`
	Seq       uint64         `json:"seq"`
	Seats     map[int]string `json:"seats"`
}

type DeltaEvent struct {
	ShowingId int       `json:"showingId"`
	SeatIds   []int     `json:"seatIds"`
	State     string    `json:"state"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}
