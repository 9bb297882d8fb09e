package app

import (
	"errors"
	"net/http"

	"github.com/seatwise/seat-reservation-system/api"
	"github.com/seatwise/seat-reservation-system/internal/domain"
	"github.com/seatwise/seat-reservation-system/internal/reservation"
)

func (app *Application) GetSeatMapByShowing(w http.ResponseWriter, r *http.Request, showingID int) {
	views, err := app.coordinator.SeatMap(r.Context(), showingID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			app.notFoundResponse(w, r)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	if len(views) == 0 {
		app.notFoundResponse(w, r)
		return
	}

	resp := api.SeatMapResponse{
		ShowingId: showingID,
		SeatRows:  toSeatRows(views),
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toSeatRows(views []reservation.SeatView) []api.SeatRow {
	// Seats come pre-sorted by row and column, so one pass groups them.
	var seatRows []api.SeatRow
	currentRow := api.SeatRow{Row: views[0].Row}

	for _, v := range views {
		if v.Row != currentRow.Row {
			seatRows = append(seatRows, currentRow)
			currentRow = api.SeatRow{Row: v.Row}
		}

		currentRow.Seats = append(currentRow.Seats, api.Seat{
			Id:       v.ID,
			Row:      v.Row,
			Column:   v.Col,
			Category: string(v.Category),
			Price:    v.Price,
			State:    string(v.State),
		})
	}

	seatRows = append(seatRows, currentRow)

	return seatRows
}
