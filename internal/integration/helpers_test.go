package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func prepareRequest(method, path string, body io.Reader, headers map[string]string, cookies []http.Cookie) (*http.Request, error) {
	req := httptest.NewRequest(method, path, body)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	for _, c := range cookies {
		req.AddCookie(&c)
	}

	return req, nil
}

func compareResponse(t *testing.T, body io.Reader, expectedResponse string) {
	var actual map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&actual))

	var expected map[string]any
	require.NoError(t, json.Unmarshal([]byte(expectedResponse), &expected))

	// ignore indeterministic fields while comparing
	opts := cmpopts.IgnoreMapEntries(func(k string, _ any) bool {
		return k == "timestamp" || k == "requestId" || k == "expiresAt" ||
			k == "committedAt" || k == "bookingId" || k == "version"
	})

	if diff := cmp.Diff(expected, actual, opts); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

// newSessionClient returns an HTTP client with a cookie jar, so consecutive
// requests act as one session. Each client is one hold owner.
func newSessionClient(t testing.TB) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &http.Client{Jar: jar}
}

// seedShowing inserts a showing with a two-row seat map and returns the
// showing ID together with the seat IDs in row-column order.
func seedShowing(t testing.TB, app *TestApp) (int, []int) {
	t.Helper()

	ctx := context.Background()

	var showingID int
	err := app.DB.QueryRow(ctx,
		`INSERT INTO showings (title, starts_at)
		 VALUES ('Test Showing', now() + interval '1 day')
		 RETURNING id`).Scan(&showingID)
	require.NoError(t, err)

	seatSpecs := []struct {
		row, col int
		category string
		price    string
	}{
		{1, 1, "standard", "10.00"},
		{1, 2, "standard", "10.00"},
		{2, 1, "premium", "15.00"},
		{2, 2, "suite", "25.00"},
	}

	seatIDs := make([]int, 0, len(seatSpecs))
	for _, spec := range seatSpecs {
		var seatID int
		err := app.DB.QueryRow(ctx,
			`INSERT INTO seats (showing_id, seat_row, seat_col, category, price)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			showingID, spec.row, spec.col, spec.category, spec.price).Scan(&seatID)
		require.NoError(t, err)

		seatIDs = append(seatIDs, seatID)
	}

	return showingID, seatIDs
}

func seatStatus(t testing.TB, app *TestApp, showingID, seatID int) string {
	t.Helper()

	var status string
	err := app.DB.QueryRow(context.Background(),
		`SELECT status FROM seats WHERE showing_id = $1 AND id = $2`,
		showingID, seatID).Scan(&status)
	require.NoError(t, err)

	return status
}
