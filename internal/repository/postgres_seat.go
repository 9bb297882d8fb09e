package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seatwise/seat-reservation-system/internal/domain"
)

type PostgresSeatRegistry struct {
	db *pgxpool.Pool
}

func NewPostgresSeatRegistry(db *pgxpool.Pool) *PostgresSeatRegistry {
	return &PostgresSeatRegistry{
		db: db,
	}
}

func (p *PostgresSeatRegistry) ListSeats(ctx context.Context, showingID int) ([]domain.Seat, error) {
	query := `
		SELECT id, seat_row, seat_col, category, price, status
		FROM seats
		WHERE showing_id = $1
		ORDER BY seat_row, seat_col
	`

	rows, err := p.db.Query(ctx, query, showingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []domain.Seat

	for rows.Next() {
		var seat domain.Seat

		err = rows.Scan(
			&seat.ID,
			&seat.Row,
			&seat.Col,
			&seat.Category,
			&seat.Price,
			&seat.Status,
		)
		if err != nil {
			return nil, err
		}

		seats = append(seats, seat)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(seats) == 0 {
		return nil, domain.ErrRecordNotFound
	}

	return seats, nil
}

func (p *PostgresSeatRegistry) GetStatus(ctx context.Context, showingID, seatID int) (domain.SeatStatus, error) {
	query := `
		SELECT status
		FROM seats
		WHERE showing_id = $1 AND id = $2
	`

	var status domain.SeatStatus

	err := p.db.QueryRow(ctx, query, showingID, seatID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrRecordNotFound
		}

		return "", err
	}

	return status, nil
}

// MarkOccupied flips the whole seat set to occupied in one transaction. The
// UPDATE only matches rows still available, so a row-count mismatch means at
// least one seat was occupied concurrently and the transaction rolls back
// with no partial effect.
func (p *PostgresSeatRegistry) MarkOccupied(ctx context.Context, showingID int, seatIDs []int, fence int64) error {
	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			UPDATE seats
			SET status = 'occupied', occupied_fence = $3, updated_at = NOW()
			WHERE showing_id = $1 AND id = ANY($2) AND status = 'available'
		`

		tag, err := tx.Exec(ctx, query, showingID, seatIDs, fence)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
				return domain.ErrRecordNotFound
			}

			return err
		}

		if int(tag.RowsAffected()) != len(seatIDs) {
			flipped := tag.RowsAffected()

			// Distinguish unknown seats from occupied ones for the caller.
			var known int
			err = tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM seats WHERE showing_id = $1 AND id = ANY($2)`,
				showingID, seatIDs).Scan(&known)
			if err != nil {
				return err
			}

			if known != len(seatIDs) {
				return fmt.Errorf("%d of %d seats unknown: %w", len(seatIDs)-known, len(seatIDs), domain.ErrRecordNotFound)
			}

			return fmt.Errorf("%d of %d seats not available: %w", int64(len(seatIDs))-flipped, len(seatIDs), domain.ErrSeatOccupied)
		}

		return nil
	})
}

func runInTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	var txOptions pgx.TxOptions

	tx, err := db.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}

	err = fn(tx)
	if err == nil {
		return tx.Commit(ctx)
	}

	rollbackErr := tx.Rollback(ctx)
	if rollbackErr != nil {
		return errors.Join(err, rollbackErr)
	}

	return err
}
