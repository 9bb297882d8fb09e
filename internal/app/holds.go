package app

import (
	"errors"
	"net/http"

	"github.com/seatwise/seat-reservation-system/api"
	"github.com/seatwise/seat-reservation-system/internal/domain"
)

// CreateHoldHandler acquires a hold on every requested seat, or none of
// them: a denial on any seat rolls the rest back before responding.
func (app *Application) CreateHoldHandler(w http.ResponseWriter, r *http.Request, showingID int) {
	logger := app.logger

	input, ok := app.readSeatSet(w, r)
	if !ok {
		return
	}

	holdSet, err := app.coordinator.Hold(r.Context(), showingID, input.SeatIdList, app.ownerID(r))
	if err != nil {
		var conflict *domain.HoldConflictError

		switch {
		case errors.As(err, &conflict):
			logger.Warn("hold request denied", "showing_id", showingID, "denied_seats", len(conflict.Denied))
			app.seatConflictResponse(w, r, http.StatusConflict, ErrSeatsConflict, conflict.Denied)
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	resp := api.HoldResponse{
		ShowingId: showingID,
		Seats:     toApiHeldSeats(holdSet.Holds),
		ExpiresAt: holdSet.ExpiresAt,
		HoldTime:  int(app.config.Hold.TTL.Seconds()),
	}

	err = app.writeJSON(w, http.StatusCreated, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// ExtendHoldHandler resets the TTL of the caller's holds. Seats the caller
// lost are reported in a conflict response; successful extensions stick.
func (app *Application) ExtendHoldHandler(w http.ResponseWriter, r *http.Request, showingID int) {
	input, ok := app.readSeatSet(w, r)
	if !ok {
		return
	}

	extended, err := app.coordinator.ExtendHold(r.Context(), showingID, input.SeatIdList, app.ownerID(r))
	if err != nil {
		var conflict *domain.ExtendConflictError

		switch {
		case errors.As(err, &conflict):
			app.seatConflictResponse(w, r, http.StatusConflict, ErrHoldLost, conflict.Failed)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	resp := api.ExtendHoldResponse{
		ShowingId: showingID,
		Seats:     toApiHeldSeats(extended),
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// ReleaseHoldHandler frees the caller's holds. Releasing a seat the caller
// does not hold is a no-op, so the call always succeeds.
func (app *Application) ReleaseHoldHandler(w http.ResponseWriter, r *http.Request, showingID int) {
	input, ok := app.readSeatSet(w, r)
	if !ok {
		return
	}

	err := app.coordinator.Release(r.Context(), showingID, input.SeatIdList, app.ownerID(r))
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CommitHoldHandler converts the caller's holds into a booking. The commit
// is all-or-nothing: a conflict on any seat leaves every hold untouched.
func (app *Application) CommitHoldHandler(w http.ResponseWriter, r *http.Request, showingID int) {
	logger := app.logger

	input, ok := app.readSeatSet(w, r)
	if !ok {
		return
	}

	booking, err := app.coordinator.Commit(r.Context(), showingID, input.SeatIdList, app.ownerID(r))
	if err != nil {
		var conflict *domain.CommitConflictError

		switch {
		case errors.As(err, &conflict):
			logger.Warn("commit rejected, holds lost", "showing_id", showingID, "lost_seats", len(conflict.Lost))
			app.seatConflictResponse(w, r, http.StatusConflict, ErrHoldLost, conflict.Lost)
		case errors.Is(err, domain.ErrSeatOccupied):
			app.seatConflictResponse(w, r, http.StatusConflict, ErrSeatsConflict, nil)
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	resp := api.BookingResponse{
		BookingId:   booking.ID,
		ShowingId:   booking.ShowingID,
		SeatIds:     booking.SeatIDs,
		TotalPrice:  booking.TotalPrice,
		CommittedAt: booking.CommittedAt,
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) readSeatSet(w http.ResponseWriter, r *http.Request) (api.SeatSetRequest, bool) {
	var input api.SeatSetRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return input, false
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return input, false
	}

	return input, true
}

func toApiHeldSeats(holds []domain.Hold) []api.HeldSeat {
	seats := make([]api.HeldSeat, len(holds))

	for i, hold := range holds {
		seats[i] = api.HeldSeat{
			Id:        hold.SeatID,
			ExpiresAt: hold.ExpiresAt,
			Version:   hold.Version,
		}
	}

	return seats
}
