package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/shared"
)

// RecommendationRepository persists finished pipeline runs and their ranked
// tracks. Its recent window backs duplicate detection across runs.
type RecommendationRepository struct {
	db *sql.DB
}

// NewRecommendationRepository creates a RecommendationRepository with the given database connection
func NewRecommendationRepository(db *sql.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

// Create inserts a recommendation and its track rows in one transaction.
func (r *RecommendationRepository) Create(rec *models.Recommendation) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "recommendations")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	rec.SetID(id)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO recommendations (id, sequence, session_id, request_text, intro_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query, id, sequence, rec.SessionID(), rec.RequestText(), rec.IntroText(), rec.CreatedAt(), rec.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert recommendation: %w", err)
	}

	trackQuery := `
		INSERT INTO recommendation_tracks (id, recommendation_id, track_id, position, title, artist, combined_score)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for _, track := range rec.Tracks() {
		_, err = tx.Exec(trackQuery, shared.GenerateID(), id, track.TrackID, track.Position, track.Title, track.Artist, track.CombinedScore)
		if err != nil {
			return fmt.Errorf("failed to insert recommendation track: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recommendation: %w", err)
	}
	return nil
}

// PastRequests returns the most recent limit runs for a session, newest
// first, in the pipeline's duplicate-window shape.
func (r *RecommendationRepository) PastRequests(sessionID string, limit int) ([]models.PastRequest, error) {
	if limit <= 0 {
		limit = 5
	}

	recs, err := r.recent(sessionID, limit)
	if err != nil {
		return nil, err
	}

	past := make([]models.PastRequest, len(recs))
	for i, rec := range recs {
		past[i] = rec.PastRequest()
	}
	return past, nil
}

// Recent returns the most recent limit runs for a session, newest first,
// with their ranked tracks attached.
func (r *RecommendationRepository) Recent(sessionID string, limit int) ([]*models.Recommendation, error) {
	if limit <= 0 {
		limit = 5
	}
	return r.recent(sessionID, limit)
}

func (r *RecommendationRepository) recent(sessionID string, limit int) ([]*models.Recommendation, error) {
	query := `
		SELECT id, sequence, session_id, request_text, intro_text, created_at, updated_at
		FROM recommendations
		WHERE session_id = ? AND deleted_at IS NULL
		ORDER BY sequence DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []*models.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for _, rec := range recs {
		tracks, err := r.tracksFor(rec.ID())
		if err != nil {
			return nil, err
		}
		rec.SetTracks(tracks)
	}
	return recs, nil
}

func (r *RecommendationRepository) tracksFor(recommendationID string) ([]models.RecommendedTrack, error) {
	query := `
		SELECT track_id, position, title, artist, combined_score
		FROM recommendation_tracks
		WHERE recommendation_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, recommendationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendation tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.RecommendedTrack
	for rows.Next() {
		var track models.RecommendedTrack
		if err := rows.Scan(&track.TrackID, &track.Position, &track.Title, &track.Artist, &track.CombinedScore); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation track: %w", err)
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

func scanRecommendation(rows *sql.Rows) (*models.Recommendation, error) {
	var (
		id          string
		sequence    int
		sessionID   string
		requestText string
		introText   string
		createdAt   sql.NullTime
		updatedAt   sql.NullTime
	)

	if err := rows.Scan(&id, &sequence, &sessionID, &requestText, &introText, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan recommendation: %w", err)
	}

	rec := models.NewRecommendation(sequence, sessionID, &models.RecommendationBatch{
		IntroText:     introText,
		SourceRequest: requestText,
	})
	rec.SetID(id)
	if createdAt.Valid {
		rec.SetCreatedAt(createdAt.Time)
	}
	if updatedAt.Valid {
		rec.SetUpdatedAt(updatedAt.Time)
	}
	return rec, nil
}
