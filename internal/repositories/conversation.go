package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/shared"
)

// ConversationRepository persists prompt/response turns per session.
type ConversationRepository struct {
	db *sql.DB
}

// NewConversationRepository creates a ConversationRepository with the given database connection
func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Append inserts a new [models.Conversation] turn with generated ID and sequence.
func (r *ConversationRepository) Append(turn *models.Conversation) error {
	if err := turn.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "conversations")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	turn.SetID(id)

	query := `
		INSERT INTO conversations (id, sequence, session_id, role, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, id, sequence, turn.SessionID(), turn.Role(), turn.Content(), turn.CreatedAt(), turn.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert conversation turn: %w", err)
	}
	return nil
}

// History returns the most recent limit turns for a session in chronological
// order. The window keeps model context bounded across long conversations.
func (r *ConversationRepository) History(sessionID string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		limit = 10
	}

	// Fetch newest-first then reverse so the cap applies to the tail.
	query := `
		SELECT role, content
		FROM conversations
		WHERE session_id = ? AND deleted_at IS NULL
		ORDER BY sequence DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation history: %w", err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var turn models.ConversationTurn
		if err := rows.Scan(&turn.Role, &turn.Content); err != nil {
			return nil, fmt.Errorf("failed to scan conversation turn: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Clear soft-deletes all turns for a session.
func (r *ConversationRepository) Clear(sessionID string) error {
	query := `
		UPDATE conversations
		SET deleted_at = ?
		WHERE session_id = ? AND deleted_at IS NULL
	`

	if _, err := r.db.Exec(query, time.Now(), sessionID); err != nil {
		return fmt.Errorf("failed to clear conversation: %w", err)
	}
	return nil
}
