package repositories

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/shared"
)

// historicalProfileSize bounds the track and artist lists rebuilt from the
// cache.
const historicalProfileSize = 10

// TrackCacheRepository persists resolved catalog tracks. Every successful
// resolution upserts here so feature vectors and preview URLs survive across
// runs and feed historical profile building.
type TrackCacheRepository struct {
	db *sql.DB
}

// NewTrackCacheRepository creates a TrackCacheRepository with the given database connection
func NewTrackCacheRepository(db *sql.DB) *TrackCacheRepository {
	return &TrackCacheRepository{db: db}
}

// Upsert inserts a cached track or refreshes the existing row for the same
// (service, service_id) pair.
func (r *TrackCacheRepository) Upsert(track *models.CachedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	track.SetID(id)

	var energy, danceability, valence sql.NullFloat64
	if f := track.Features(); f != nil {
		energy = sql.NullFloat64{Float64: f.Energy, Valid: true}
		danceability = sql.NullFloat64{Float64: f.Danceability, Valid: true}
		valence = sql.NullFloat64{Float64: f.Valence, Valid: true}
	}

	query := `
		INSERT INTO tracks (id, sequence, service, service_id, title, artist, album, popularity, preview_url, energy, danceability, valence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(service, service_id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			popularity = excluded.popularity,
			preview_url = excluded.preview_url,
			energy = COALESCE(excluded.energy, energy),
			danceability = COALESCE(excluded.danceability, danceability),
			valence = COALESCE(excluded.valence, valence),
			updated_at = excluded.updated_at,
			deleted_at = NULL
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		track.Service(),
		track.ServiceID(),
		track.Title(),
		track.Artist(),
		track.Album(),
		track.Popularity(),
		track.PreviewURL(),
		energy,
		danceability,
		valence,
		track.CreatedAt(),
		track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert track: %w", err)
	}
	return nil
}

// GetByServiceID retrieves a cached track by service and catalog id.
func (r *TrackCacheRepository) GetByServiceID(service, serviceID string) (*models.CachedTrack, error) {
	query := `
		SELECT id, sequence, service, service_id, title, artist, album, popularity, preview_url, energy, danceability, valence, created_at, updated_at
		FROM tracks
		WHERE service = ? AND service_id = ? AND deleted_at IS NULL
	`

	rows, err := r.db.Query(query, service, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query track: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("row iteration error: %w", err)
		}
		return nil, fmt.Errorf("%s/%s: %w", service, serviceID, shared.ErrTrackNotFound)
	}
	return scanCachedTrack(rows)
}

// List retrieves all live cached tracks for a service in insertion order.
func (r *TrackCacheRepository) List(service string) ([]*models.CachedTrack, error) {
	query := `
		SELECT id, sequence, service, service_id, title, artist, album, popularity, preview_url, energy, danceability, valence, created_at, updated_at
		FROM tracks
		WHERE service = ? AND deleted_at IS NULL
		ORDER BY sequence ASC
	`

	rows, err := r.db.Query(query, service)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.CachedTrack
	for rows.Next() {
		track, err := scanCachedTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// HistoricalProfile rebuilds a listener profile from cached resolutions,
// the fallback when the live catalog profile cannot be built. Newest cache
// entries count first, catalog casing variants collapse to one track, and
// the feature average covers only rows cached with a vector. Genres never
// survive into the cache, so the rebuilt profile carries none.
func (r *TrackCacheRepository) HistoricalProfile(service string) (*models.ListenerProfile, error) {
	cached, err := r.List(service)
	if err != nil {
		return nil, err
	}
	if len(cached) == 0 {
		return nil, fmt.Errorf("no cached tracks for %s: %w", service, shared.ErrTrackNotFound)
	}

	profile := &models.ListenerProfile{Source: models.ProfileSourceHistorical}

	seen := map[string]bool{}
	artistCount := map[string]int{}
	artistPop := map[string]int{}
	var artistOrder []string
	var sum models.AudioFeatures
	vectors := 0

	for i := len(cached) - 1; i >= 0; i-- {
		track := cached[i]
		key := shared.NormalizeTrackKey(track.Title(), track.Artist())
		if seen[key] {
			continue
		}
		seen[key] = true

		if len(profile.TopTracks) < historicalProfileSize {
			profile.TopTracks = append(profile.TopTracks, models.ProfileTrack{
				Name:   track.Title(),
				Artist: track.Artist(),
			})
		}

		if artistCount[track.Artist()] == 0 {
			artistOrder = append(artistOrder, track.Artist())
		}
		artistCount[track.Artist()]++
		if track.Popularity() > artistPop[track.Artist()] {
			artistPop[track.Artist()] = track.Popularity()
		}

		if f := track.Features(); f != nil {
			sum.Energy += f.Energy
			sum.Danceability += f.Danceability
			sum.Valence += f.Valence
			vectors++
		}
	}

	// Most-cached artists first; recency breaks ties via the insertion scan.
	sort.SliceStable(artistOrder, func(i, j int) bool {
		return artistCount[artistOrder[i]] > artistCount[artistOrder[j]]
	})
	for _, name := range artistOrder {
		if len(profile.TopArtists) >= historicalProfileSize {
			break
		}
		profile.TopArtists = append(profile.TopArtists, models.ProfileArtist{
			Name:       name,
			Popularity: artistPop[name],
		})
	}

	if vectors > 0 {
		profile.AudioFeatureAvg = &models.AudioFeatures{
			Energy:       sum.Energy / float64(vectors),
			Danceability: sum.Danceability / float64(vectors),
			Valence:      sum.Valence / float64(vectors),
		}
	}

	return profile, nil
}

// Delete soft-deletes a cached track by its row id.
func (r *TrackCacheRepository) Delete(id string) error {
	query := `
		UPDATE tracks
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("track not found or already deleted: %s", id)
	}
	return nil
}

func scanCachedTrack(rows *sql.Rows) (*models.CachedTrack, error) {
	var (
		id           string
		sequence     int
		service      string
		serviceID    string
		title        string
		artist       string
		album        sql.NullString
		popularity   int
		previewURL   sql.NullString
		energy       sql.NullFloat64
		danceability sql.NullFloat64
		valence      sql.NullFloat64
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := rows.Scan(&id, &sequence, &service, &serviceID, &title, &artist, &album, &popularity, &previewURL, &energy, &danceability, &valence, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	resolved := models.ResolvedTrack{
		CatalogID:  serviceID,
		Title:      title,
		Artist:     artist,
		Album:      album.String,
		Popularity: popularity,
		PreviewURL: previewURL.String,
	}
	if energy.Valid && danceability.Valid && valence.Valid {
		resolved.AudioFeatures = &models.AudioFeatures{
			Energy:       energy.Float64,
			Danceability: danceability.Float64,
			Valence:      valence.Float64,
		}
	}

	track := models.NewCachedTrack(sequence, service, resolved)
	track.SetID(id)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)
	return track, nil
}
