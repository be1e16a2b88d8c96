package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"flightbook/internal/errs"
	"flightbook/internal/models"
)

const draftColumns = `id, user_id, flight_id, data, status, created_at, updated_at`

func (db *DB) PutDraft(ctx context.Context, draft *models.BookingDraft) error {
	query := `INSERT INTO booking_drafts (` + draftColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  user_id = excluded.user_id,
                  flight_id = excluded.flight_id,
                  data = excluded.data,
                  status = excluded.status,
                  updated_at = excluded.updated_at`

	_, err := db.ExecContext(ctx, query,
		draft.ID,
		draft.UserID,
		draft.FlightID,
		[]byte(draft.Data),
		string(draft.Status),
		toNanos(draft.CreatedAt),
		toNanos(draft.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to put booking draft %s: %w", draft.ID, err)
	}
	return nil
}

func (db *DB) GetDraft(ctx context.Context, id string) (*models.BookingDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM booking_drafts WHERE id = ?`
	draft, err := scanDraft(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking draft %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking draft %s: %w", id, err)
	}
	return draft, nil
}

func (db *DB) GetDraftsByUser(ctx context.Context, userID string) ([]*models.BookingDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM booking_drafts WHERE user_id = ? ORDER BY seq ASC`
	return db.queryDrafts(ctx, query, userID)
}

func (db *DB) GetDraftsByStatus(ctx context.Context, status models.DraftStatus) ([]*models.BookingDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM booking_drafts WHERE status = ? ORDER BY seq ASC`
	return db.queryDrafts(ctx, query, string(status))
}

func (db *DB) DeleteDraft(ctx context.Context, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM booking_drafts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete booking draft %s: %w", id, err)
	}
	return nil
}

func (db *DB) queryDrafts(ctx context.Context, query string, args ...interface{}) ([]*models.BookingDraft, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query booking drafts: %w", err)
	}
	defer rows.Close()

	drafts := make([]*models.BookingDraft, 0)
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking draft: %w", err)
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate booking drafts: %w", err)
	}
	return drafts, nil
}

func scanDraft(row rowScanner) (*models.BookingDraft, error) {
	var (
		d                    models.BookingDraft
		status               string
		data                 []byte
		createdAt, updatedAt int64
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.FlightID, &data, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.Data = data
	d.Status = models.DraftStatus(status)
	d.CreatedAt = fromNanos(createdAt)
	d.UpdatedAt = fromNanos(updatedAt)
	return &d, nil
}
