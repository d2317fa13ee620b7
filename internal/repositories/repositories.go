// package repositories is the sqlite persistence layer: session tokens,
// conversation turns, recommendation batches, and the resolved-track cache.
//
// Each repository wraps one table behind a small typed API. Writes validate
// the model first, ids come from shared.GenerateID, and deletes are soft
// except where a row is genuinely disposable (sessions).
package repositories

import (
	"database/sql"
	"fmt"
)

// NextSequence increments and returns the per-table counter inside one
// transaction. Sequences give rows a stable insertion order that survives
// uuid primary keys; the recommendation history and track cache both sort
// by them.
func NextSequence(db *sql.DB, table string) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	counter := table + "_sequence"

	if _, err := tx.Exec(fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", counter)); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	if err := tx.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE id = 1", counter)).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to read sequence value: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}

	return sequence, nil
}
