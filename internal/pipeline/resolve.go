package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/shared"
)

// resolve verifies candidates against the catalog in suggestion order.
// Candidates that miss are dropped; repeats of an already resolved catalog
// id pass through untouched, final truncation drops the weaker copy. The
// surviving order becomes the ranking tiebreaker.
func (e *Engine) resolve(ctx context.Context, candidates []models.CandidateSuggestion) []models.ScoredTrack {
	var tracks []models.ScoredTrack

	for _, c := range candidates {
		title := strings.TrimSpace(c.Title)
		artist := strings.TrimSpace(c.Artist)
		if title == "" || artist == "" {
			continue
		}

		resolved, err := e.catalog.SearchTrack(ctx, title, artist)
		if err != nil {
			if errors.Is(err, shared.ErrTrackNotFound) {
				e.logger.Debug("candidate not in catalog", "title", title, "artist", artist)
			} else {
				e.logger.Warn("catalog search failed", "title", title, "error", err)
			}
			continue
		}
		if resolved.PreviewURL == "" && e.preview != nil {
			if preview, err := e.preview.PreviewURL(ctx, resolved.Title, resolved.Artist); err == nil {
				resolved.PreviewURL = preview
			}
		}

		tracks = append(tracks, models.ScoredTrack{
			ResolvedTrack: *resolved,
			Position:      len(tracks) + 1,
		})
	}
	return tracks
}

// attachFeatures fetches feature vectors for all resolved tracks in one
// batch. Tracks the catalog has no vector for keep a nil AudioFeatures and
// later take the worst-case audio score.
func (e *Engine) attachFeatures(ctx context.Context, tracks []models.ScoredTrack) {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.CatalogID
	}

	features, err := e.catalog.AudioFeaturesBatch(ctx, ids)
	if err != nil {
		e.logger.Warn("audio features unavailable", "tracks", len(ids), "error", err)
		return
	}

	for i := range tracks {
		if f, ok := features[tracks[i].CatalogID]; ok {
			vector := f
			tracks[i].AudioFeatures = &vector
		}
	}
}

// cacheTracks persists every resolution so vectors and preview URLs can be
// reused across runs. Cache failures only cost future reuse.
func (e *Engine) cacheTracks(tracks []models.ScoredTrack) {
	if e.cache == nil {
		return
	}
	for i := range tracks {
		cached := models.NewCachedTrack(0, "spotify", tracks[i].ResolvedTrack)
		if err := e.cache.Upsert(cached); err != nil {
			e.logger.Debug("track cache upsert failed", "track", tracks[i].Title, "error", err)
		}
	}
}
