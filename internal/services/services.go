// package services defines capability interfaces for the external
// collaborators of the recommendation pipeline
//
// Spotify (catalog + profile), Groq (recommender model), lrclib (lyrics),
// iTunes (preview fallback), OpenWeather (context signal)
package services

import (
	"context"

	"github.com/desertthunder/aidj/internal/models"
)

// CatalogClient resolves (title, artist) pairs to verifiable catalog entries
// and supplies audio-feature vectors.
type CatalogClient interface {
	// SearchTrack attempts an exact title+artist lookup, retrying with a
	// title-only lookup on an empty result. Returns shared.ErrTrackNotFound
	// when both lookups come back empty.
	SearchTrack(ctx context.Context, title, artist string) (*models.ResolvedTrack, error)

	// AudioFeaturesBatch fetches feature vectors for up to 100 track ids in
	// one call. Tracks missing from the response are absent from the map.
	AudioFeaturesBatch(ctx context.Context, trackIDs []string) (map[string]models.AudioFeatures, error)
}

// RecommendRequest carries everything the recommender model sees for one run.
type RecommendRequest struct {
	Message        string
	Profile        *models.ListenerProfile
	History        []models.ConversationTurn
	Weather        *models.WeatherContext
	CandidateCount int
}

// Recommender produces an unstructured shortlist of candidate songs plus an
// introductory blurb, as raw model output. Parsing is the caller's concern.
type Recommender interface {
	Recommend(ctx context.Context, req RecommendRequest) (string, error)
}

// LyricsProvider resolves (title, artist) to raw lyric text, possibly
// non-English. Returns shared.ErrLyricsNotFound when nothing matches.
type LyricsProvider interface {
	SearchLyrics(ctx context.Context, title, artist string) (string, error)
}

// TranslationItem is one lyric text submitted for batch translation.
type TranslationItem struct {
	TrackID string `json:"id"`
	Text    string `json:"text"`
	Hint    string `json:"hint,omitempty"` // Heuristic language pre-guess
}

// TranslationResult is the translator's verdict for one item.
type TranslationResult struct {
	TrackID  string `json:"id"`
	Language string `json:"language"` // ISO 639-1 code
	Text     string `json:"text"`     // English text; empty when already English
}

// Translator batch-detects language and translates non-English text to
// English in a single call covering all items.
type Translator interface {
	TranslateBatch(ctx context.Context, items []TranslationItem) ([]TranslationResult, error)
}

// RelevanceItem is one (lyrics, track) pair submitted for batch scoring.
type RelevanceItem struct {
	TrackID string
	Title   string
	Artist  string
	Lyrics  string
}

// RelevanceScorer batch-scores lyric relevance against a request on a 1..scale
// integer range. Items missing from the returned map take the caller's
// default; the scorer never fails the whole batch for one item.
type RelevanceScorer interface {
	ScoreBatch(ctx context.Context, request string, scale int, items []RelevanceItem) (map[string]int, error)
}

// ExplainRequest is the input for one explanation call.
type ExplainRequest struct {
	Title   string
	Artist  string
	Request string
	Lyrics  string
}

// Explanation is a short natural-language justification plus exact-quote
// highlighted terms.
type Explanation struct {
	Text  string   `json:"explanation"`
	Terms []string `json:"highlighted_terms"`
}

// ExplanationGenerator produces an explanation for a single selected track.
type ExplanationGenerator interface {
	Explain(ctx context.Context, req ExplainRequest) (*Explanation, error)
}

// ProfileAnalyzer produces a short natural-language summary of a listener's
// taste.
type ProfileAnalyzer interface {
	AnalyzeProfile(ctx context.Context, profile *models.ListenerProfile) (string, error)
}

// PreviewProvider supplies fallback preview-audio URLs when the catalog has
// none.
type PreviewProvider interface {
	PreviewURL(ctx context.Context, title, artist string) (string, error)
}

// WeatherProvider supplies current conditions as an optional contextual
// signal for the recommender.
type WeatherProvider interface {
	Current(ctx context.Context, city string) (*models.WeatherContext, error)
}
