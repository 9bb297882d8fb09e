package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrSeatHeld       = errors.New("seat is held by another session")
	ErrSeatOccupied   = errors.New("seat is already occupied")
	ErrHoldNotFound   = errors.New("no active hold on seat")
	ErrNotOwner       = errors.New("hold is owned by another session")
	ErrHoldExpired    = errors.New("hold has expired")
)

// DenialReason distinguishes "held by someone else" from "already occupied"
// so the caller can surface an accurate message.
type DenialReason string

const (
	DenialReasonHeld     DenialReason = "held"
	DenialReasonOccupied DenialReason = "occupied"
	DenialReasonExpired  DenialReason = "expired"
	DenialReasonNotOwner DenialReason = "not_owner"
	DenialReasonLimit    DenialReason = "extension_limit"
)

type SeatDenial struct {
	SeatID int
	Reason DenialReason
}

// HoldConflictError reports an all-or-nothing hold that was rolled back.
// Granted seats were released before this error was returned, so the caller
// holds none of the requested set.
type HoldConflictError struct {
	Denied []SeatDenial
}

func (e *HoldConflictError) Error() string {
	return fmt.Sprintf("%d of the requested seats could not be held", len(e.Denied))
}

// ExtendConflictError reports the seats an extend call could not renew.
// Successfully extended seats keep their new expiry; extension is not
// atomic across the set.
type ExtendConflictError struct {
	Failed []SeatDenial
}

func (e *ExtendConflictError) Error() string {
	return fmt.Sprintf("%d of the held seats could not be extended", len(e.Failed))
}

// CommitConflictError reports a commit that validated against a seat whose
// hold was lost. No seat was marked occupied and no hold was touched.
type CommitConflictError struct {
	Lost []SeatDenial
}

func (e *CommitConflictError) Error() string {
	return fmt.Sprintf("commit failed, %d seat(s) no longer held", len(e.Lost))
}
