package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/seatwise/seat-reservation-system/api"
	"github.com/seatwise/seat-reservation-system/internal/domain"
	appvalidator "github.com/seatwise/seat-reservation-system/internal/validator"
)

const (
	ErrInternalServer = "The server encountered a problem and could not process your request"
	ErrSeatsConflict  = "Some of the selected seats are no longer available"
	ErrHoldLost       = "Your seat selection has expired, please select your seats again"
)

func (app *Application) logError(r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.Error(err.Error(), "method", method, "uri", uri)
}

// The errorResponse() method is a generic helper for sending JSON-formatted error
// messages to the client with a given status code.
func (app *Application) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	app.seatConflictResponse(w, r, status, message, nil)
}

func (app *Application) seatConflictResponse(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	message string,
	denied []domain.SeatDenial) {

	resp := api.ErrorResponse{
		Message:   message,
		RequestId: middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
	}

	for _, d := range denied {
		resp.Seats = append(resp.Seats, api.DeniedSeat{SeatId: d.SeatID, Reason: string(d.Reason)})
	}

	err := app.writeJSON(w, status, resp, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(500)
	}
}

func (app *Application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)

	app.errorResponse(w, r, http.StatusInternalServerError, ErrInternalServer)
}

func (app *Application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "The requested resource not found"
	app.errorResponse(w, r, http.StatusNotFound, message)
}

func (app *Application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (app *Application) failedValidationResponse(w http.ResponseWriter, r *http.Request, err error) {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.ValidationErrorResponse{
		Message:   "Validation failed",
		RequestId: middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
	}

	for _, vErr := range validationErrors {
		resp.ValidationErrors = append(resp.ValidationErrors, api.ValidationError{
			Field: vErr.Field(),
			Issue: appvalidator.ValidationMessage(vErr),
		})
	}

	writeErr := app.writeJSON(w, http.StatusUnprocessableEntity, resp, nil)
	if writeErr != nil {
		app.logError(r, writeErr)
		w.WriteHeader(500)
	}
}
