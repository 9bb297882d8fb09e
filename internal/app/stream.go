package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/seatwise/seat-reservation-system/api"
	"github.com/seatwise/seat-reservation-system/internal/domain"
)

const streamHeartbeatInterval = 15 * time.Second

// StreamSeatUpdates serves a showing's seat states over SSE: one snapshot
// event carrying the full state map and its sequence watermark, then every
// delta in publish order. The showing is validated before the subscription
// is registered so requests for unknown showings never allocate broadcaster
// state. The subscription is then registered before the snapshot is taken so
// no transition can fall between the two; deltas at or below the watermark
// are already reflected in the snapshot and are skipped.
func (app *Application) StreamSeatUpdates(w http.ResponseWriter, r *http.Request, showingID int) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		app.serverErrorResponse(w, r, fmt.Errorf("response writer does not support streaming"))
		return
	}

	if _, err := app.registry.ListSeats(r.Context(), showingID); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			app.notFoundResponse(w, r)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	sub := app.broadcaster.Subscribe(showingID)
	defer sub.Close()

	states, seq, err := app.coordinator.Snapshot(r.Context(), showingID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	snapshot := api.SnapshotEvent{
		ShowingId: showingID,
		Seq:       seq,
		Seats:     make(map[int]string, len(states)),
	}
	for seatID, state := range states {
		snapshot.Seats[seatID] = string(state)
	}

	if err := writeSSE(w, "snapshot", snapshot); err != nil {
		app.logError(r, err)
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case delta, open := <-sub.C:
			if !open {
				// Dropped for falling behind; the client reconnects and
				// starts over from a fresh snapshot.
				return
			}

			if delta.Seq <= seq {
				continue
			}

			event := api.DeltaEvent{
				ShowingId: delta.ShowingID,
				SeatIds:   delta.SeatIDs,
				State:     string(delta.State),
				Seq:       delta.Seq,
				Timestamp: delta.Timestamp,
			}

			if err := writeSSE(w, "delta", event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)

	return err
}
