package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/shared"
)

// SessionRepository stores OAuth sessions. Sessions are the only hard-deleted
// entity: an expired row holds a dead credential and has no audit value.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save inserts or replaces a session. Re-authenticating under the same
// session id overwrites the old token.
func (r *SessionRepository) Save(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO sessions (session_id, token_info, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, session.ID(), session.TokenInfo(), session.ExpiresAt(), session.CreatedAt())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get retrieves a live session by id. An expired row is deleted on the way
// out and reported as [shared.ErrSessionNotFound].
func (r *SessionRepository) Get(sessionID string) (*models.Session, error) {
	query := `
		SELECT session_id, token_info, expires_at, created_at
		FROM sessions
		WHERE session_id = ?
	`

	var (
		id        string
		tokenInfo string
		expiresAt time.Time
		createdAt time.Time
	)

	err := r.db.QueryRow(query, sessionID).Scan(&id, &tokenInfo, &expiresAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", sessionID, shared.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	session := models.NewSession(id, tokenInfo, expiresAt)
	session.SetCreatedAt(createdAt)

	if session.Expired() {
		_ = r.Delete(sessionID)
		return nil, fmt.Errorf("%s: %w", sessionID, shared.ErrSessionNotFound)
	}
	return session, nil
}

// Delete removes a session outright.
func (r *SessionRepository) Delete(sessionID string) error {
	_, err := r.db.Exec("DELETE FROM sessions WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes all sessions past their TTL and returns how many were
// dropped. Called opportunistically from the server.
func (r *SessionRepository) PurgeExpired() (int, error) {
	result, err := r.db.Exec("DELETE FROM sessions WHERE expires_at < ?", time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}
