package integration_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seatwise/seat-reservation-system/internal/app"
)

// TestApp wraps the wired application together with a raw DB handle so
// tests can seed showings and inspect seat rows directly.
type TestApp struct {
	App *app.Application
	DB  *pgxpool.Pool
}

func newTestApp(cfg app.Config) (*TestApp, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	application, err := app.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	db, err := pgxpool.New(context.Background(), cfg.DB.DSN)
	if err != nil {
		application.Close()
		return nil, err
	}

	application.StartReaper(context.Background())

	return &TestApp{
		App: application,
		DB:  db,
	}, nil
}

func (a *TestApp) Close() {
	if a == nil {
		return
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.App != nil {
		a.App.Close()
	}
}
