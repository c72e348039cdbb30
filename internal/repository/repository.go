package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrNoTransition reports a soft-delete or restore applied to a row already
// in the requested state.
var ErrNoTransition = errors.New("entity already in requested state")

// IsUniqueViolation reports whether err stems from a Postgres unique
// constraint. Concurrent duplicate writes race to the store; the loser
// surfaces here and is mapped to a conflict by the caller.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// setActiveFlag performs the guarded soft-delete/restore transition shared by
// every primary entity. The UPDATE intentionally touches only the flag and
// updated_at so unrelated required-field validation cannot block it.
func setActiveFlag(ctx context.Context, db *sqlx.DB, table, id string, active bool) error {
	q := fmt.Sprintf("UPDATE %s SET active = $2, updated_at = $3 WHERE id = $1 AND active = NOT $2", table)
	res, err := db.ExecContext(ctx, q, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set active on %s: %w", table, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set active on %s: %w", table, err)
	}
	if rows > 0 {
		return nil
	}

	var exists int
	if err := db.GetContext(ctx, &exists, fmt.Sprintf("SELECT 1 FROM %s WHERE id = $1", table), id); err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("check %s existence: %w", table, err)
	}
	return ErrNoTransition
}
