package database

import (
	"context"
	"fmt"
	"time"
)

// AcquireLock takes the named advisory lock for owner. A lock held by another
// owner is taken over once it is older than ttl.
func (db *DB) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := time.Now()
	query := `INSERT INTO sync_lock (name, owner, acquired_at) VALUES (?, ?, ?)
              ON CONFLICT(name) DO UPDATE SET owner = excluded.owner, acquired_at = excluded.acquired_at
              WHERE sync_lock.owner = excluded.owner OR sync_lock.acquired_at <= ?`

	result, err := db.ExecContext(ctx, query, name, owner, now.UnixNano(), now.Add(-ttl).UnixNano())
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ReleaseLock drops the lock only if owner still holds it.
func (db *DB) ReleaseLock(ctx context.Context, name, owner string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM sync_lock WHERE name = ? AND owner = ?`, name, owner); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}
