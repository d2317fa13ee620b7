package models

import "time"

// CandidateSuggestion is a raw, unverified (title, artist) pair emitted by
// the recommender model. It has no identity beyond the pair and may repeat.
type CandidateSuggestion struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// AudioFeatures holds the catalog's audio analysis vector for a track.
// All dimensions are in [0, 1].
type AudioFeatures struct {
	Energy       float64 `json:"energy"`
	Danceability float64 `json:"danceability"`
	Valence      float64 `json:"valence"`
}

// ResolvedTrack is a candidate successfully matched to a catalog entry.
type ResolvedTrack struct {
	CatalogID     string         `json:"id"`
	Title         string         `json:"name"`
	Artist        string         `json:"artist"` // Comma-joined display string
	Album         string         `json:"album"`
	AlbumImageURL string         `json:"album_image_url,omitempty"`
	PreviewURL    string         `json:"preview_url,omitempty"`
	ExternalURL   string         `json:"external_url,omitempty"`
	DurationMS    int            `json:"duration_ms"`
	Popularity    int            `json:"popularity"`
	AudioFeatures *AudioFeatures `json:"audio_features,omitempty"`
}

// ScoredTrack is a ResolvedTrack with all ranking side-signals attached.
//
// CombinedScore is a pure function of AudioScore and LyricsRelevance and is
// recomputed whenever either changes.
type ScoredTrack struct {
	ResolvedTrack

	Position         int      `json:"position"`
	AudioScore       float64  `json:"audio_match_score"` // 0-10, higher is better
	LyricsRelevance  int      `json:"lyrics_relevance"`  // Bounded integer, 1..scale
	CombinedScore    float64  `json:"combined_score"`
	Lyrics           string   `json:"lyrics,omitempty"`          // English text (translated when needed)
	LyricsOriginal   string   `json:"lyrics_original,omitempty"` // Source-language text when it differs
	Language         string   `json:"language,omitempty"`        // Detected ISO 639-1 code
	Explanation      string   `json:"explanation,omitempty"`
	HighlightedTerms []string `json:"highlighted_terms,omitempty"`
	OriginalTerms    []string `json:"original_terms,omitempty"` // Highlights against the original-language text
	Duplicate        bool     `json:"duplicate,omitempty"`      // Penalized as recently recommended
}

// RecommendationBatch is the output of one pipeline run. It is never mutated
// after being returned to the caller.
type RecommendationBatch struct {
	IntroText     string        `json:"dj_response"`
	Tracks        []ScoredTrack `json:"tracks"`
	SourceRequest string        `json:"source_request"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Count returns the number of ranked tracks in the batch.
func (b *RecommendationBatch) Count() int {
	return len(b.Tracks)
}

// TrackIDs returns the catalog ids of the ranked tracks in order.
func (b *RecommendationBatch) TrackIDs() []string {
	ids := make([]string, len(b.Tracks))
	for i, t := range b.Tracks {
		ids[i] = t.CatalogID
	}
	return ids
}

// WeatherContext is an optional contextual signal forwarded to the
// recommender model.
type WeatherContext struct {
	Description string  `json:"description"`
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
}

// ConversationTurn is one prior exchange replayed into the model prompt.
type ConversationTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// PastRequest pairs a previous request's text with the catalog ids it
// produced. The pipeline consumes these to build the duplicate window.
type PastRequest struct {
	RequestText string
	TrackIDs    []string
	CreatedAt   time.Time
}
