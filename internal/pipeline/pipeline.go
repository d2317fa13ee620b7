package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/services"
	"github.com/desertthunder/aidj/internal/shared"
	"golang.org/x/time/rate"
)

// TrackCache persists resolved tracks across runs. Satisfied by
// repositories.TrackCacheRepository; nil disables caching.
type TrackCache interface {
	Upsert(track *models.CachedTrack) error
}

// Deps are the external collaborators of a pipeline run. Catalog,
// Recommender, Lyrics, Translator, Scorer, and Explainer are required;
// Preview and Cache are optional enrichments.
type Deps struct {
	Catalog     services.CatalogClient
	Recommender services.Recommender
	Lyrics      services.LyricsProvider
	Translator  services.Translator
	Scorer      services.RelevanceScorer
	Explainer   services.ExplanationGenerator
	Preview     services.PreviewProvider
	Cache       TrackCache
}

// Request is one recommendation request with its session context.
type Request struct {
	Message string
	Profile *models.ListenerProfile
	History []models.ConversationTurn
	Weather *models.WeatherContext
	Past    []models.PastRequest
}

// Engine runs the ranking pipeline. Engines are safe for concurrent runs;
// per-run state lives on the stack and the shared limiter paces all
// per-track fan-out calls process-wide.
type Engine struct {
	catalog     services.CatalogClient
	recommender services.Recommender
	lyrics      services.LyricsProvider
	translator  services.Translator
	scorer      services.RelevanceScorer
	explainer   services.ExplanationGenerator
	preview     services.PreviewProvider
	cache       TrackCache

	limiter *rate.Limiter
	logger  *log.Logger
	cfg     shared.PipelineConfig
}

// NewEngine creates an Engine, normalizing unset configuration to defaults.
func NewEngine(deps Deps, cfg shared.PipelineConfig, logger *log.Logger) *Engine {
	if cfg.FinalSize <= 0 {
		cfg.FinalSize = 10
	}
	if cfg.CandidateCount <= 0 {
		cfg.CandidateCount = 20
	}
	if cfg.MinResolved <= 0 {
		cfg.MinResolved = 5
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.8
	}
	if cfg.DuplicatePenalty < 0 {
		cfg.DuplicatePenalty = 2.0
	}
	if cfg.LyricWorkers <= 0 {
		cfg.LyricWorkers = 5
	}
	if cfg.ExplainWorkers <= 0 {
		cfg.ExplainWorkers = 5
	}
	if cfg.TranslationMaxChars <= 0 {
		cfg.TranslationMaxChars = 1200
	}
	if cfg.RelevanceScale <= 1 {
		cfg.RelevanceScale = 5
	}
	if cfg.FanoutRate <= 0 {
		cfg.FanoutRate = 5.0
	}

	return &Engine{
		catalog:     deps.Catalog,
		recommender: deps.Recommender,
		lyrics:      deps.Lyrics,
		translator:  deps.Translator,
		scorer:      deps.Scorer,
		explainer:   deps.Explainer,
		preview:     deps.Preview,
		cache:       deps.Cache,
		limiter:     rate.NewLimiter(rate.Limit(cfg.FanoutRate), 1),
		logger:      logger,
		cfg:         cfg,
	}
}

// Run executes one full pipeline pass. The returned batch is ranked, scored,
// and explained. Only two failures abort a run: an unusable model response
// and a shortlist that resolves to nothing. Every other signal degrades to
// a neutral default.
func (e *Engine) Run(ctx context.Context, req Request) (*models.RecommendationBatch, error) {
	started := time.Now()

	raw, err := e.recommender.Recommend(ctx, services.RecommendRequest{
		Message:        req.Message,
		Profile:        req.Profile,
		History:        req.History,
		Weather:        req.Weather,
		CandidateCount: e.cfg.CandidateCount,
	})
	if err != nil {
		return nil, err
	}

	parsed, err := parseShortlist(raw)
	if err != nil {
		return nil, err
	}
	e.logger.Info("shortlist received", "songs", len(parsed.Songs))

	tracks := e.resolve(ctx, parsed.Songs)
	if len(tracks) == 0 {
		return nil, shared.ErrNoResolvedTracks
	}
	if len(tracks) < e.cfg.MinResolved {
		e.logger.Warn("thin resolution set", "resolved", len(tracks), "suggested", len(parsed.Songs))
	}

	e.attachFeatures(ctx, tracks)
	e.cacheTracks(tracks)

	e.fetchLyrics(ctx, tracks)
	e.translateLyrics(ctx, tracks)

	relevance := e.scoreRelevance(ctx, req.Message, tracks)

	var profileVector *models.AudioFeatures
	if req.Profile.HasAudioFeatures() {
		profileVector = req.Profile.AudioFeatureAvg
	}
	for i := range tracks {
		tracks[i].AudioScore = audioScore(tracks[i].AudioFeatures, profileVector)
		tracks[i].LyricsRelevance = relevance[tracks[i].CatalogID]
		tracks[i].CombinedScore = combinedScore(tracks[i].AudioScore, tracks[i].LyricsRelevance, e.cfg.RelevanceScale)
	}

	recent := recentTrackIDs(req.Message, req.Past, e.cfg.SimilarityThreshold, started)
	applyDuplicatePenalty(tracks, recent, e.cfg.DuplicatePenalty)

	rank(tracks)
	if len(tracks) > e.cfg.FinalSize {
		tracks = tracks[:e.cfg.FinalSize]
	}

	e.explainTracks(ctx, tracks, req.Message)

	intro := parsed.Intro
	if intro == "" {
		intro = "Check out these amazing tracks!"
	}

	e.logger.Info("pipeline run complete",
		"tracks", len(tracks),
		"duration", time.Since(started).Round(time.Millisecond))

	return &models.RecommendationBatch{
		IntroText:     intro,
		Tracks:        tracks,
		SourceRequest: req.Message,
		Timestamp:     started,
	}, nil
}

// scoreRelevance rates every track's lyrics against the request in one
// batched call. Tracks without lyrics, and the whole set when the call
// fails, default to the scale midpoint: unknown relevance should neither
// sink nor boost a track.
func (e *Engine) scoreRelevance(ctx context.Context, request string, tracks []models.ScoredTrack) map[string]int {
	midpoint := relevanceMidpoint(e.cfg.RelevanceScale)

	scores := make(map[string]int, len(tracks))
	for i := range tracks {
		scores[tracks[i].CatalogID] = midpoint
	}

	var items []services.RelevanceItem
	for i := range tracks {
		if tracks[i].Lyrics == "" {
			continue
		}
		items = append(items, services.RelevanceItem{
			TrackID: tracks[i].CatalogID,
			Title:   tracks[i].Title,
			Artist:  tracks[i].Artist,
			Lyrics:  tracks[i].Lyrics,
		})
	}
	if len(items) == 0 {
		return scores
	}

	rated, err := e.scorer.ScoreBatch(ctx, request, e.cfg.RelevanceScale, items)
	if err != nil {
		e.logger.Warn("relevance scoring failed", "tracks", len(items), "error", err)
		return scores
	}

	for id, score := range rated {
		if _, ok := scores[id]; !ok {
			continue
		}
		if score < 1 {
			score = 1
		}
		if score > e.cfg.RelevanceScale {
			score = e.cfg.RelevanceScale
		}
		scores[id] = score
	}
	return scores
}
