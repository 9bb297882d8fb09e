package app

import (
	"net/http"

	"github.com/seatwise/seat-reservation-system/api"
)

func (app *Application) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthcheckResponse{
		Status: "UP",
		SystemInfo: api.SystemInfo{
			Version:     version,
			Environment: app.config.Env,
		},
	}

	app.writeJSON(w, http.StatusOK, resp, nil)
}
