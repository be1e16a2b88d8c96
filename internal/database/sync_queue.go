package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"flightbook/internal/errs"
	"flightbook/internal/models"
)

const queueColumns = `id, type, action, data, timestamp, retry_count, status, last_error, updated_at, expires_at`

// Put inserts or replaces a queue item by id. Replacing keeps the original
// insertion position.
func (db *DB) Put(ctx context.Context, item *models.QueueItem) error {
	query := `INSERT INTO queue_items (` + queueColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  type = excluded.type,
                  action = excluded.action,
                  data = excluded.data,
                  timestamp = excluded.timestamp,
                  retry_count = excluded.retry_count,
                  status = excluded.status,
                  last_error = excluded.last_error,
                  updated_at = excluded.updated_at,
                  expires_at = excluded.expires_at`

	var expiresAt sql.NullInt64
	if item.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: item.ExpiresAt.UnixNano(), Valid: true}
	}

	_, err := db.ExecContext(ctx, query,
		item.ID,
		string(item.Type),
		string(item.Action),
		[]byte(item.Data),
		toNanos(item.Timestamp),
		item.RetryCount,
		string(item.Status),
		item.LastError,
		toNanos(item.UpdatedAt),
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put queue item %s: %w", item.ID, err)
	}
	return nil
}

func (db *DB) Get(ctx context.Context, id string) (*models.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_items WHERE id = ?`
	item, err := scanQueueItem(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("queue item %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue item %s: %w", id, err)
	}
	return item, nil
}

func (db *DB) GetAll(ctx context.Context) ([]*models.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_items ORDER BY seq ASC`
	return db.queryQueueItems(ctx, query)
}

// GetByIndex returns items whose status or type equals value, in insertion order.
func (db *DB) GetByIndex(ctx context.Context, field, value string) ([]*models.QueueItem, error) {
	var column string
	switch field {
	case "status":
		column = "status"
	case "type":
		column = "type"
	default:
		return nil, fmt.Errorf("index %q: %w", field, errs.ErrUnsupportedIndex)
	}

	query := `SELECT ` + queueColumns + ` FROM queue_items WHERE ` + column + ` = ? ORDER BY seq ASC`
	return db.queryQueueItems(ctx, query, value)
}

func (db *DB) Delete(ctx context.Context, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete queue item %s: %w", id, err)
	}
	return nil
}

// DeleteExpired removes completed items whose retention window has elapsed.
func (db *DB) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	query := `DELETE FROM queue_items
              WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?`
	result, err := db.ExecContext(ctx, query, string(models.StatusCompleted), now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired queue items: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

func (db *DB) queryQueueItems(ctx context.Context, query string, args ...interface{}) ([]*models.QueueItem, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.QueueItem, 0)
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue items: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQueueItem(row rowScanner) (*models.QueueItem, error) {
	var (
		item                 models.QueueItem
		itemType, action     string
		status               string
		data                 []byte
		timestamp, updatedAt int64
		expiresAt            sql.NullInt64
	)

	err := row.Scan(
		&item.ID, &itemType, &action, &data, &timestamp, &item.RetryCount, &status, &item.LastError, &updatedAt, &expiresAt,
	)
	if err != nil {
		return nil, err
	}

	item.Type = models.ItemType(itemType)
	item.Action = models.Action(action)
	item.Status = models.Status(status)
	item.Data = data
	item.Timestamp = fromNanos(timestamp)
	item.UpdatedAt = fromNanos(updatedAt)
	if expiresAt.Valid {
		t := fromNanos(expiresAt.Int64)
		item.ExpiresAt = &t
	}
	return &item, nil
}
