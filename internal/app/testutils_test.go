package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/shopspring/decimal"

	"github.com/seatwise/seat-reservation-system/api"
	"github.com/seatwise/seat-reservation-system/internal/domain"
	"github.com/seatwise/seat-reservation-system/internal/ledger"
	"github.com/seatwise/seat-reservation-system/internal/repository"
	"github.com/seatwise/seat-reservation-system/internal/reservation"
	appvalidator "github.com/seatwise/seat-reservation-system/internal/validator"
)

// testFixture bundles an Application with the in-memory components its
// handlers are wired to, so tests can seed and inspect state directly.
type testFixture struct {
	app      *Application
	registry *repository.MemorySeatRegistry
	locks    *reservation.MemoryLockTable
}

func newTestApplication() *testFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := repository.NewMemorySeatRegistry()
	registry.Provision(1, []domain.Seat{
		{ID: 1, Row: 1, Col: 1, Category: domain.SeatCategoryStandard, Price: decimal.NewFromInt(10)},
		{ID: 2, Row: 1, Col: 2, Category: domain.SeatCategoryStandard, Price: decimal.NewFromInt(10)},
		{ID: 3, Row: 2, Col: 1, Category: domain.SeatCategoryPremium, Price: decimal.NewFromInt(15)},
	})

	locks := reservation.NewMemoryLockTable()
	broadcaster := reservation.NewBroadcaster(logger)
	coordinator := reservation.NewCoordinator(
		registry, locks, broadcaster, ledger.NewLogBookingLedger(logger), logger, time.Minute, 0)

	app := &Application{
		config: Config{
			Env:  "test",
			Hold: HoldConfig{TTL: time.Minute},
		},
		logger:         logger,
		validator:      appvalidator.NewValidator(),
		sessionManager: scs.New(),
		registry:       registry,
		coordinator:    coordinator,
		broadcaster:    broadcaster,
	}

	return &testFixture{app: app, registry: registry, locks: locks}
}

// withSession loads a session into the request context so ownerID resolves.
// Pass an empty token for a fresh session; the returned token can be reused
// to act as the same caller across requests.
func withSession(t *testing.T, app *Application, r *http.Request, token string) (*http.Request, string) {
	t.Helper()

	ctx, err := app.sessionManager.Load(r.Context(), token)
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}

	if app.sessionManager.Token(ctx) == "" {
		app.sessionManager.Put(ctx, SessionKeyGuest.String(), true)

		if _, _, err := app.sessionManager.Commit(ctx); err != nil {
			t.Fatalf("failed to commit session: %v", err)
		}
	}

	r = r.WithContext(ctx)

	return r, app.sessionManager.Token(ctx)
}

func executeRequest(t *testing.T, method, url string, body any) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(jsonData)
	}

	r := httptest.NewRequest(method, url, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	return w, r
}

func checkErrorResponse(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantErrMessage string) {
	t.Helper()

	if wantStatus >= 200 && wantStatus < 300 {
		return
	}

	switch wantStatus {
	case http.StatusUnprocessableEntity:
		var validationResp api.ValidationErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&validationResp); err != nil {
			t.Fatalf("Failed to decode validation error response: %v", err)
		}

		errorSet := make(map[string]bool)
		for _, vErr := range validationResp.ValidationErrors {
			errorSet[vErr.Issue] = true
		}

		if wantErrMessage != "" && !errorSet[wantErrMessage] {
			t.Errorf("Expected validation error message '%s' not found in response", wantErrMessage)
		}

	default:
		var errorResp api.ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&errorResp); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}

		if wantErrMessage != "" && errorResp.Message != wantErrMessage {
			t.Errorf("Error message = %v, want %v", errorResp.Message, wantErrMessage)
		}
	}
}
